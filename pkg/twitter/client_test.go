package twitter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"describer/internal/httpclient"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...httpclient.Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.TwitterConfig{
		ConsumerKey:        "ck",
		ConsumerSecret:     "cs",
		AccessToken:        "at",
		AccessSecret:       "as",
		APIBaseURL:         server.URL + "/1.1",
		UploadBaseURL:      server.URL + "/upload/1.1/",
		DisplayCoordinates: true,
	}
	return NewClient(context.Background(), cfg, 5*time.Second, logger.NewNopLogger(), opts...)
}

func assertSigned(t *testing.T, r *http.Request) {
	t.Helper()
	auth := r.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(auth, "OAuth "), "missing oauth header: %q", auth)
	assert.Contains(t, auth, `oauth_consumer_key="ck"`)
	assert.Contains(t, auth, `oauth_token="at"`)
}

func TestVerifyCredentials(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/account/verify_credentials.json", r.URL.Path)
		assertSigned(t, r)
		_, _ = w.Write([]byte(`{"id":42,"id_str":"42","screen_name":"citybot","statuses_count":7}`))
	}))

	user, err := c.VerifyCredentials(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "citybot", user.ScreenName)
	assert.Equal(t, 7, user.StatusesCount)
}

func TestVerifyCredentialsUnauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"errors":[{"code":32,"message":"Could not authenticate you."}]}`))
	}))

	_, err := c.VerifyCredentials(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsPermanent(err))
	assert.Contains(t, err.Error(), "Could not authenticate you")
}

func TestUploadMedia(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload/1.1/media/upload.json", r.URL.Path)
		assertSigned(t, r)

		file, header, err := r.FormFile("media")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "image-bytes", string(data))
		assert.Equal(t, "t3_a.jpg", header.Filename)

		_, _ = w.Write([]byte(`{"media_id":710511363345354753,"media_id_string":"710511363345354753","size":11}`))
	}))

	id, err := c.UploadMedia(context.Background(), []byte("image-bytes"), "t3_a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "710511363345354753", id)
}

func TestPostUpdateWithLocation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/1.1/statuses/update.json", r.URL.Path)
		assertSigned(t, r)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "A city at night", r.PostForm.Get("status"))
		assert.Equal(t, "1,2", r.PostForm.Get("media_ids"))
		assert.Equal(t, "48.8566", r.PostForm.Get("lat"))
		assert.Equal(t, "2.3522", r.PostForm.Get("long"))
		assert.Equal(t, "true", r.PostForm.Get("display_coordinates"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id_str": "99", "text": "A city at night", "created_at": "Mon Oct 19 10:00:00 +0000 2026"})
	}))

	tweet, err := c.PostUpdate(context.Background(), Update{
		Status:   "A city at night",
		MediaIDs: []string{"1", "2"},
		Location: &models.Location{Name: "Paris, France", Latitude: 48.8566, Longitude: 2.3522},
	})
	require.NoError(t, err)
	assert.Equal(t, "99", tweet.IDStr)
}

func TestPostUpdateWithoutLocation(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		_, hasLat := r.PostForm["lat"]
		_, hasLong := r.PostForm["long"]
		assert.False(t, hasLat)
		assert.False(t, hasLong)
		_, _ = w.Write([]byte(`{"id_str":"100"}`))
	}))

	_, err := c.PostUpdate(context.Background(), Update{Status: "hello"})
	require.NoError(t, err)
}

func TestPostUpdateIsNotRetried(t *testing.T) {
	var hits int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}), httpclient.WithAttempts(3))

	_, err := c.PostUpdate(context.Background(), Update{Status: "hello"})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetUserTimeline(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/1.1/statuses/user_timeline.json", r.URL.Path)
		assert.Equal(t, "cursedimages", q.Get("screen_name"))
		assert.Equal(t, "200", q.Get("count"))
		assert.Equal(t, "500", q.Get("max_id"))
		assert.Equal(t, "extended", q.Get("tweet_mode"))
		_, _ = w.Write([]byte(`[
			{"id":500,"id_str":"500","extended_entities":{"media":[
				{"id":1,"id_str":"1","type":"photo","media_url_https":"https://pbs.example.com/1.jpg"},
				{"id":2,"id_str":"2","type":"video","media_url_https":"https://pbs.example.com/2.jpg"}
			]}},
			{"id":499,"id_str":"499"}
		]`))
	}))

	tweets, err := c.GetUserTimeline(context.Background(), "cursedimages", 1000, 500)
	require.NoError(t, err)
	require.Len(t, tweets, 2)

	photos := tweets[0].Photos()
	require.Len(t, photos, 1)
	assert.Equal(t, "https://pbs.example.com/1.jpg", photos[0].MediaURLHTTPS)
	assert.Empty(t, tweets[1].Photos())
}

func TestGetUser(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cursedimages", r.URL.Query().Get("screen_name"))
		_, _ = w.Write([]byte(`{"id_str":"1","screen_name":"cursedimages","statuses_count":3200}`))
	}))

	user, err := c.GetUser(context.Background(), "cursedimages")
	require.NoError(t, err)
	assert.Equal(t, 3200, user.StatusesCount)
}
