package source

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"describer/internal/httpclient"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seenSet map[string]bool

func (s seenSet) Contains(id string) bool { return s[id] }

type staticSource struct {
	batches [][]models.Candidate
	calls   int
}

func (s *staticSource) Name() string { return "static" }

func (s *staticSource) NextBatch(ctx context.Context) ([]models.Candidate, error) {
	i := s.calls
	s.calls++
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i], nil
}

func redditListing(posts ...map[string]interface{}) []byte {
	children := make([]map[string]interface{}, len(posts))
	for i, p := range posts {
		children[i] = map[string]interface{}{"kind": "t3", "data": p}
	}
	b, _ := json.Marshal(map[string]interface{}{"data": map[string]interface{}{"children": children}})
	return b
}

func TestFilter(t *testing.T) {
	f := NewFilter([]string{"jpg", ".PNG"}, seenSet{"t1": true}, nil)

	batch := []models.Candidate{
		{ID: "t1", Locator: "https://i.redd.it/a.jpg"},
		{ID: "t2", Locator: "https://i.redd.it/b.jpg"},
		{ID: "t3", Locator: "https://i.redd.it/c.gif"},
		{ID: "t4", Locator: "https://i.redd.it/d.png?width=640"},
		{ID: "t5", Locator: "https://v.redd.it/e"},
	}

	got := f.Apply(batch)
	want := []models.Candidate{batch[1], batch[3]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestSupplierHistoryScenario(t *testing.T) {
	src := &staticSource{batches: [][]models.Candidate{{
		{ID: "t1", Locator: "y.jpg"},
		{ID: "t2", Locator: "x.jpg"},
	}}}
	s := NewSupplier(src, NewFilter([]string{"jpg", "png"}, seenSet{"t1": true}, nil), nil)

	c, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "t2", c.ID)

	_, err = s.Next(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsFatal(err))
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 1, s.Tried())
}

func TestSupplierRefetchesNewCandidates(t *testing.T) {
	src := &staticSource{batches: [][]models.Candidate{
		{{ID: "u1", Locator: "https://images.example.com/1?fm=jpg"}},
		{{ID: "u2", Locator: "https://images.example.com/2?fm=jpg"}},
	}}
	s := NewSupplier(src, NewFilter([]string{"jpg"}, nil, nil), nil)

	first, err := s.Next(context.Background())
	require.NoError(t, err)
	second, err := s.Next(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "u1", first.ID)
	assert.Equal(t, "u2", second.ID)
}

func TestSupplierEmptySource(t *testing.T) {
	src := &staticSource{batches: [][]models.Candidate{{}}}
	s := NewSupplier(src, NewFilter([]string{"jpg"}, nil, nil), logger.NewNopLogger())

	_, err := s.Next(context.Background())
	var noCandidates *errs.NoCandidatesError
	require.ErrorAs(t, err, &noCandidates)
	assert.Equal(t, "static", noCandidates.Source)
}

func TestRedditNextBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/cityporn/top.json", r.URL.Path)
		assert.Equal(t, "describer-test", r.Header.Get("User-Agent"))
		_, _ = w.Write(redditListing(
			map[string]interface{}{"name": "t3_a", "title": "Paris [OC] (4000x3000)", "url": "https://i.redd.it/a.jpg", "permalink": "/r/cityporn/comments/a/"},
			map[string]interface{}{"name": "t3_b", "title": "Clip", "url": "https://v.redd.it/b", "is_video": true},
			map[string]interface{}{"name": "t3_c", "title": "Rome &amp; stuff", "url": "https://i.redd.it/c.png"},
		))
	}))
	defer server.Close()

	client := httpclient.New("reddit", time.Second, logger.NewNopLogger(), httpclient.WithHeader("User-Agent", "describer-test"))
	r := NewReddit(config.RedditConfig{BaseURL: server.URL + "/", Subreddit: "cityporn"}, client)

	got, err := r.NextBatch(context.Background())
	require.NoError(t, err)

	want := []models.Candidate{
		{ID: "t3_a", Locator: "https://i.redd.it/a.jpg", Title: "Paris [OC] (4000x3000)", Source: "reddit", PostURL: server.URL + "/r/cityporn/comments/a/"},
		{ID: "t3_c", Locator: "https://i.redd.it/c.png", Title: "Rome & stuff", Source: "reddit"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextBatch() mismatch (-want +got):\n%s", diff)
	}
}

func TestRedditError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	r := NewReddit(config.RedditConfig{BaseURL: server.URL, Subreddit: "cityporn"}, httpclient.New("reddit", time.Second, nil))
	_, err := r.NextBatch(context.Background())
	require.Error(t, err)
	assert.True(t, errs.IsPermanent(err))
}

func TestUnsplashFollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/random", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		http.Redirect(w, r, "/photo-123?ixid=abc&fm=jpg&w=1080", http.StatusFound)
	})
	mux.HandleFunc("/photo-123", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	u := NewUnsplash(config.UnsplashConfig{RandomURL: server.URL + "/random"}, httpclient.New("unsplash", time.Second, nil))
	got, err := u.NextBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, server.URL+"/photo-123?ixid=abc&fm=jpg&w=1080", got[0].ID)
	assert.Equal(t, got[0].ID, got[0].Locator)
	assert.Equal(t, "jpg", got[0].Extension())
}

func TestFolderNextBatch(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"cursedimages-111-222.jpg", "loose.png", ".DS_Store"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))

	f := NewFolder(config.FolderConfig{Directory: dir, StatusURLFormat: "https://twitter.com/%s/status/%s"})
	f.shuffle = func(int, func(i, j int)) {}

	got, err := f.NextBatch(context.Background())
	require.NoError(t, err)

	want := []models.Candidate{
		{ID: "cursedimages-111-222.jpg", Locator: filepath.Join(dir, "cursedimages-111-222.jpg"), Source: "folder", PostURL: "https://twitter.com/cursedimages/status/111"},
		{ID: "loose.png", Locator: filepath.Join(dir, "loose.png"), Source: "folder"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NextBatch() mismatch (-want +got):\n%s", diff)
	}
}

func TestFolderMissing(t *testing.T) {
	f := NewFolder(config.FolderConfig{Directory: filepath.Join(t.TempDir(), "nope")})
	_, err := f.NextBatch(context.Background())
	assert.Error(t, err)
}

func TestMediaFileNameRoundTrip(t *testing.T) {
	name := MediaFileName("cursedimages_2", "987", "654", "jpg")
	assert.Equal(t, "cursedimages_2-987-654.jpg", name)

	screen, status, ok := ParseMediaFileName(name)
	require.True(t, ok)
	assert.Equal(t, "cursedimages_2", screen)
	assert.Equal(t, "987", status)

	_, _, ok = ParseMediaFileName("holiday.jpg")
	assert.False(t, ok)
}
