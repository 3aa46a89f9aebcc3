package vision

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"describer/internal/httpclient"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func azureServer(t *testing.T, check func(r *http.Request, body []byte), reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		check(r, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)
	return server
}

func newAzure(endpoint string) *AzureClient {
	cfg := config.DefaultConfig().Vision
	cfg.Endpoint = endpoint
	cfg.APIKey = "secret-key"
	return NewAzureClient(cfg, httpclient.New("vision", time.Second, logger.NewNopLogger()), nil)
}

func TestAzureDescribeBytes(t *testing.T) {
	server := azureServer(t, func(r *http.Request, body []byte) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "secret-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		assert.Equal(t, "Description", r.URL.Query().Get("visualFeatures"))
		assert.Equal(t, "Landmarks", r.URL.Query().Get("details"))
		assert.Equal(t, "en", r.URL.Query().Get("language"))
		assert.Equal(t, []byte("jpeg-bytes"), body)
	}, `{"description":{"tags":["city"],"captions":[{"text":"a city at night","confidence":0.93},{"text":"second","confidence":0.4}]},"requestId":"r1"}`)

	caption, err := newAzure(server.URL).Describe(context.Background(), Image{Data: []byte("jpeg-bytes")})
	require.NoError(t, err)
	assert.Equal(t, "a city at night", caption)
}

func TestAzureDescribeURL(t *testing.T) {
	server := azureServer(t, func(r *http.Request, body []byte) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var payload map[string]string
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, "https://images.example.com/p.jpg", payload["url"])
	}, `{"description":{"captions":[{"text":"a mountain","confidence":0.8}]}}`)

	caption, err := newAzure(server.URL).Describe(context.Background(), Image{URL: "https://images.example.com/p.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "a mountain", caption)
}

func TestAzureNoCaption(t *testing.T) {
	server := azureServer(t, func(*http.Request, []byte) {}, `{"description":{"captions":[]}}`)

	_, err := newAzure(server.URL).Describe(context.Background(), Image{Data: []byte("x")})
	var apiErr *errs.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, errs.ErrorTypeParsing, apiErr.Type)
}

func TestAzureAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":"401","message":"Access denied"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := newAzure(server.URL).Describe(context.Background(), Image{Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, errs.IsPermanent(err))
}

func TestAzureEmptyImage(t *testing.T) {
	_, err := newAzure("http://unused").Describe(context.Background(), Image{})
	assert.Error(t, err)
}

func TestGeminiDescribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "gemini-test:generateContent")
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), "inlineData")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"A cat asleep on a keyboard."}]}}]}`))
	}))
	defer server.Close()

	cfg := config.VisionConfig{Provider: config.VisionGemini, Endpoint: server.URL + "/", APIKey: "k", GeminiModel: "gemini-test"}
	c, err := newGeminiClient(context.Background(), cfg, server.Client(), nil)
	require.NoError(t, err)

	caption, err := c.Describe(context.Background(), Image{Data: []byte("png"), MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, "A cat asleep on a keyboard", caption)
}

func TestGeminiNeedsBytes(t *testing.T) {
	cfg := config.VisionConfig{Provider: config.VisionGemini, APIKey: "k", GeminiModel: "gemini-test"}
	c, err := NewGeminiClient(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = c.Describe(context.Background(), Image{URL: "https://example.com/a.jpg"})
	assert.Error(t, err)
}

func TestNewSelectsProvider(t *testing.T) {
	client := httpclient.New("vision", time.Second, nil)

	c, err := New(context.Background(), config.VisionConfig{Provider: "azure"}, client, nil)
	require.NoError(t, err)
	assert.IsType(t, &AzureClient{}, c)

	_, err = New(context.Background(), config.VisionConfig{Provider: "clip"}, client, nil)
	assert.Error(t, err)
}

func TestSentence(t *testing.T) {
	assert.Equal(t, "A dog wearing a hat.", Sentence("a dog wearing a hat"))
	assert.Equal(t, "Already done.", Sentence("Already done."))
	assert.Equal(t, "", Sentence("  "))
}
