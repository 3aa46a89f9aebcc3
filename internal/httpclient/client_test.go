package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	errs "describer/pkg/errors"
	"describer/pkg/logger"
	"describer/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLimiter struct{ waits int32 }

func (l *countingLimiter) Allow() bool { return true }
func (l *countingLimiter) Wait(ctx context.Context) error {
	atomic.AddInt32(&l.waits, 1)
	return nil
}

func TestGetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "describer-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"t3_abc","score":42}`))
	}))
	defer server.Close()

	limiter := &countingLimiter{}
	c := New("reddit", 5*time.Second, logger.NewNopLogger(),
		WithHeader("User-Agent", "describer-test"),
		WithLimiter(limiter))

	var out struct {
		Name  string `json:"name"`
		Score int    `json:"score"`
	}
	require.NoError(t, c.GetJSON(context.Background(), server.URL, &out))
	assert.Equal(t, "t3_abc", out.Name)
	assert.Equal(t, 42, out.Score)
	assert.Equal(t, int32(1), atomic.LoadInt32(&limiter.waits))
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			c := New("vision", time.Second, logger.NewNopLogger())
			err := c.GetJSON(context.Background(), server.URL, &struct{}{})

			var apiErr *errs.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.want, apiErr.Type)
			assert.Equal(t, tt.status, apiErr.Code)
			assert.Equal(t, "vision", apiErr.Service)
			assert.Contains(t, apiErr.Message, "nope")
		})
	}
}

func TestParsingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	tl := logger.NewTestLogger()
	c := New("geocode", time.Second, tl)
	err := c.GetJSON(context.Background(), server.URL, &struct{}{})

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
	assert.True(t, tl.HasMessage("failed to parse JSON response"))
}

func TestRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	c := New("download", time.Second, logger.NewNopLogger(),
		WithAttempts(2),
		WithBackoff(&retry.ConstantBackoff{Delay: time.Millisecond}))
	data, err := c.GetBytes(context.Background(), server.URL, 0)
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestNoRetryOnAuth(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := New("twitter", time.Second, logger.NewNopLogger(), WithAttempts(3))
	_, err := c.GetBytes(context.Background(), server.URL, 0)
	require.Error(t, err)
	assert.True(t, errs.IsPermanent(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestGetBytesLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(make([]byte, 2048))
	}))
	defer server.Close()

	c := New("download", time.Second, logger.NewNopLogger())
	_, err := c.GetBytes(context.Background(), server.URL, 1024)
	assert.Error(t, err)

	data, err := c.GetBytes(context.Background(), server.URL, 4096)
	require.NoError(t, err)
	assert.Len(t, data, 2048)
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c := New("unsplash", time.Second, logger.NewNopLogger())
	_, err := c.GetBytes(context.Background(), url, 0)

	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeNetwork, apiErr.Type)
}

func TestRedactHidesQuery(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://maps.example.com/geocode/json?address=paris&key=secret", nil)
	assert.NotContains(t, redact(req), "secret")
}
