package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"describer/internal/httpclient"
	"describer/pkg/config"
	errs "describer/pkg/errors"
	"describer/pkg/logger"
)

// analyzeResponse is the part of the Computer Vision analyze response we read
type analyzeResponse struct {
	Description struct {
		Tags     []string `json:"tags"`
		Captions []struct {
			Text       string  `json:"text"`
			Confidence float64 `json:"confidence"`
		} `json:"captions"`
	} `json:"description"`
	RequestID string `json:"requestId"`
}

// AzureClient calls the Azure Computer Vision analyze endpoint
type AzureClient struct {
	client   *httpclient.Client
	endpoint string
	apiKey   string
	language string
	details  string
	logger   logger.Logger
}

// NewAzureClient creates an Azure captioner
func NewAzureClient(cfg config.VisionConfig, client *httpclient.Client, log logger.Logger) *AzureClient {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &AzureClient{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		language: cfg.Language,
		details:  cfg.Details,
		logger:   log.WithField("provider", "azure"),
	}
}

func (c *AzureClient) analyzeURL() string {
	params := url.Values{}
	params.Set("visualFeatures", "Description")
	if c.details != "" {
		params.Set("details", c.details)
	}
	if c.language != "" {
		params.Set("language", c.language)
	}
	return c.endpoint + "?" + params.Encode()
}

// Describe returns the first caption. Raw bytes are sent as an octet stream,
// a bare URL as {"url": ...}.
func (c *AzureClient) Describe(ctx context.Context, img Image) (string, error) {
	var (
		body        []byte
		contentType string
	)
	switch {
	case len(img.Data) > 0:
		body, contentType = img.Data, "application/octet-stream"
	case img.URL != "":
		body, _ = json.Marshal(map[string]string{"url": img.URL})
		contentType = "application/json"
	default:
		return "", fmt.Errorf("image has neither data nor url")
	}

	resp, err := c.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.analyzeURL(), bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
		return req, nil
	})
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}
	defer resp.Body.Close()

	var out analyzeResponse
	if err := c.client.DecodeJSON(resp, &out); err != nil {
		return "", err
	}

	for _, caption := range out.Description.Captions {
		if text := strings.TrimSpace(caption.Text); text != "" {
			c.logger.DebugWithFields("caption received", map[string]interface{}{
				"caption":    text,
				"confidence": caption.Confidence,
				"request_id": out.RequestID,
			})
			return text, nil
		}
	}
	return "", errs.New(c.client.Service(), errs.ErrorTypeParsing, resp.StatusCode, ErrNoCaption.Error())
}
