// Package vision turns an image into a one line natural language caption
// using a cloud captioning service.
package vision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"describer/internal/httpclient"
	"describer/pkg/config"
	"describer/pkg/logger"
)

// ErrNoCaption is returned when the service answered but produced no caption
var ErrNoCaption = errors.New("no caption returned")

// Image is what a captioner looks at. Data wins over URL when both are set.
type Image struct {
	Data     []byte
	URL      string
	MIMEType string
}

// Captioner describes an image
type Captioner interface {
	Describe(ctx context.Context, img Image) (string, error)
}

// New builds the captioner selected by cfg.Provider
func New(ctx context.Context, cfg config.VisionConfig, client *httpclient.Client, log logger.Logger) (Captioner, error) {
	switch strings.ToLower(cfg.Provider) {
	case config.VisionAzure, "":
		return NewAzureClient(cfg, client, log), nil
	case config.VisionGemini:
		return NewGeminiClient(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown vision provider %q", cfg.Provider)
	}
}

// Sentence capitalizes the first letter of a caption and ends it with a period
func Sentence(caption string) string {
	caption = strings.TrimSpace(caption)
	if caption == "" {
		return ""
	}
	caption = strings.ToUpper(caption[:1]) + caption[1:]
	if !strings.HasSuffix(caption, ".") {
		caption += "."
	}
	return caption
}
