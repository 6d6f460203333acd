package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fableforge/fableforge/internal/logger"
	"github.com/getsentry/sentry-go"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const providerNameOpenAI = "openai"

// OpenAIProvider implements the Provider interface using OpenAI's Chat
// Completions API.
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(apiKey string) *OpenAIProvider {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAIProvider{client: &client}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return providerNameOpenAI
}

// Complete runs a single chat completion.
func (p *OpenAIProvider) Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(request.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(request.SystemPrompt),
			openai.UserMessage(request.UserPrompt),
		},
		Temperature: openai.Float(request.Temperature),
	}
	if request.MaxTokens > 0 {
		params.MaxTokens = openai.Int(request.MaxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		classified := p.classify(err)
		logger.Error("OpenAI completion failed", classified, logger.Fields{
			"model":       request.Model,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		sentry.CaptureException(classified)
		return nil, classified
	}

	if len(resp.Choices) == 0 {
		return nil, Transient(providerNameOpenAI, errors.New("response contained no choices"))
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	logger.Debug("OpenAI completion finished", logger.Fields{
		"model":        request.Model,
		"duration_ms":  time.Since(start).Milliseconds(),
		"total_tokens": resp.Usage.TotalTokens,
	})

	return &CompletionResponse{
		Text: text,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// classify maps an SDK error to the transient/rejected taxonomy.
func (p *OpenAIProvider) classify(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return ClassifyHTTP(providerNameOpenAI, apiErr.StatusCode, fmt.Errorf("openai api error: %w", err))
	}
	return ClassifyErr(providerNameOpenAI, err)
}
