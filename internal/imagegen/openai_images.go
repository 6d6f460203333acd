package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerNameOpenAI = "openai-images"

// OpenAIImageProvider renders illustrations through OpenAI's Images
// API (DALL-E and gpt-image models).
type OpenAIImageProvider struct {
	client *openai.Client
	model  string
}

func NewOpenAIImageProvider(apiKey, model string) *OpenAIImageProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIImageProvider{client: &client, model: model}
}

// Name returns the provider name.
func (p *OpenAIImageProvider) Name() string {
	return providerNameOpenAI
}

// GenerateImage renders a single image and returns the decoded PNG
// bytes.
func (p *OpenAIImageProvider) GenerateImage(ctx context.Context, prompt, size string) ([]byte, error) {
	start := time.Now()

	params := openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(p.model),
		N:              openai.Int(1),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}

	resp, err := p.client.Images.Generate(ctx, params)
	if err != nil {
		classified := p.classify(err)
		logger.Error("OpenAI image generation failed", classified, logger.Fields{
			"model":       p.model,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		sentry.CaptureException(classified)
		return nil, classified
	}

	if len(resp.Data) == 0 {
		return nil, llm.Transient(providerNameOpenAI, errors.New("response contained no images"))
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, llm.Transient(providerNameOpenAI, fmt.Errorf("failed to decode image payload: %w", err))
	}

	logger.Debug("OpenAI image generated", logger.Fields{
		"model":       p.model,
		"bytes":       len(data),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return data, nil
}

func (p *OpenAIImageProvider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return llm.ClassifyHTTP(providerNameOpenAI, apiErr.StatusCode, err)
	}
	return llm.ClassifyErr(providerNameOpenAI, err)
}
