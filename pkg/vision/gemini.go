package vision

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"describer/pkg/config"
	"describer/pkg/logger"
)

const captionPrompt = "Describe this image in one short plain sentence, the way an image caption would. " +
	"Mention a well known landmark by name if one is visible. Reply with the sentence only."

// GeminiClient captions images with a Gemini model
type GeminiClient struct {
	models *genai.Models
	model  string
	logger logger.Logger
}

// NewGeminiClient creates a Gemini captioner. An empty API key falls back to
// the GEMINI_API_KEY / GOOGLE_API_KEY environment variables read by genai.
func NewGeminiClient(ctx context.Context, cfg config.VisionConfig, log logger.Logger) (*GeminiClient, error) {
	return newGeminiClient(ctx, cfg, nil, log)
}

func newGeminiClient(ctx context.Context, cfg config.VisionConfig, hc *http.Client, log logger.Logger) (*GeminiClient, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	// the azure endpoint default is meaningless here
	if cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "cognitive.microsoft.com") {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}

	cli, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{models: cli.Models, model: cfg.GeminiModel, logger: log.WithField("provider", "gemini")}, nil
}

// Describe sends the image inline with a captioning prompt
func (c *GeminiClient) Describe(ctx context.Context, img Image) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("gemini captioning needs image bytes")
	}
	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mime, Data: img.Data}},
			{Text: captionPrompt},
		},
	}}

	resp, err := c.models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("caption request failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrNoCaption
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	caption := strings.TrimSpace(sb.String())
	if caption == "" {
		return "", ErrNoCaption
	}
	caption = strings.TrimSuffix(caption, ".")

	c.logger.DebugWithFields("caption received", map[string]interface{}{
		"caption": caption,
		"model":   c.model,
	})
	return caption, nil
}
