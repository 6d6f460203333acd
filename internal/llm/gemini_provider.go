package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fableforge/fableforge/internal/logger"
	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

const providerNameGemini = "gemini"

// GeminiProvider implements the Provider interface using Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return providerNameGemini
}

// Complete runs a single content generation call.
func (p *GeminiProvider) Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	temperature := float32(request.Temperature)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: request.SystemPrompt}},
		},
		Temperature: &temperature,
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: request.UserPrompt}}},
	}

	result, err := p.client.Models.GenerateContent(ctx, request.Model, contents, config)
	if err != nil {
		classified := p.classify(err)
		logger.Error("Gemini completion failed", classified, logger.Fields{
			"model":       request.Model,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		sentry.CaptureException(classified)
		return nil, classified
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, Transient(providerNameGemini, errors.New("response contained no candidates"))
	}

	text := strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text)

	usage := Usage{}
	if result.UsageMetadata != nil {
		usage = Usage{
			InputTokens:  int64(result.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(result.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(result.UsageMetadata.TotalTokenCount),
		}
	}

	logger.Debug("Gemini completion finished", logger.Fields{
		"model":        request.Model,
		"duration_ms":  time.Since(start).Milliseconds(),
		"total_tokens": usage.TotalTokens,
	})

	return &CompletionResponse{Text: text, Usage: usage}, nil
}

// classify maps a genai error to the transient/rejected taxonomy.
func (p *GeminiProvider) classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ClassifyHTTP(providerNameGemini, apiErr.Code, fmt.Errorf("gemini api error: %w", err))
	}
	return ClassifyErr(providerNameGemini, err)
}
