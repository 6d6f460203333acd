package imagegen

import (
	"context"
	"errors"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const providerNameGemini = "gemini-images"

// GeminiImageProvider renders illustrations through Google's Imagen
// models.
type GeminiImageProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiImageProvider(ctx context.Context, apiKey, model string) (*GeminiImageProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiImageProvider{client: client, model: model}, nil
}

// Name returns the provider name.
func (p *GeminiImageProvider) Name() string {
	return providerNameGemini
}

// GenerateImage renders a single image and returns the raw bytes.
// Imagen picks its own dimensions; size is ignored.
func (p *GeminiImageProvider) GenerateImage(ctx context.Context, prompt, _ string) ([]byte, error) {
	start := time.Now()

	config := &genai.GenerateImagesConfig{
		NumberOfImages: 1,
	}
	resp, err := p.client.Models.GenerateImages(ctx, p.model, prompt, config)
	if err != nil {
		classified := p.classify(err)
		logger.Error("Gemini image generation failed", classified, logger.Fields{
			"model":       p.model,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		sentry.CaptureException(classified)
		return nil, classified
	}

	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil {
		return nil, llm.Transient(providerNameGemini, errors.New("response contained no images"))
	}

	data := resp.GeneratedImages[0].Image.ImageBytes
	logger.Debug("Gemini image generated", logger.Fields{
		"model":       p.model,
		"bytes":       len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return data, nil
}

func (p *GeminiImageProvider) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return llm.ClassifyHTTP(providerNameGemini, apiErr.Code, err)
	}
	return llm.ClassifyErr(providerNameGemini, err)
}
