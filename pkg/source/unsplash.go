package source

import (
	"context"
	"fmt"
	"net/http"

	"describer/internal/httpclient"
	"describer/pkg/config"
	"describer/pkg/models"
)

// Unsplash resolves the random photo endpoint to a concrete image URL. The
// endpoint redirects; the final URL is both the candidate's id and locator.
type Unsplash struct {
	client    *httpclient.Client
	randomURL string
}

// NewUnsplash creates an unsplash source
func NewUnsplash(cfg config.UnsplashConfig, client *httpclient.Client) *Unsplash {
	return &Unsplash{client: client, randomURL: cfg.RandomURL}
}

func (u *Unsplash) Name() string { return config.SourceUnsplash }

// NextBatch returns a single random photo
func (u *Unsplash) NextBatch(ctx context.Context) ([]models.Candidate, error) {
	resp, err := u.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodHead, u.randomURL, nil)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve random photo: %w", err)
	}
	resp.Body.Close()

	final := resp.Request.URL.String()
	return []models.Candidate{{
		ID:      final,
		Locator: final,
		Source:  u.Name(),
	}}, nil
}
