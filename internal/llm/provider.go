package llm

import "context"

// Provider defines the interface for text-generation providers. Providers
// classify failures as transient or rejected via UpstreamError so the retry
// layer can decide whether another attempt is worthwhile.
type Provider interface {
	// Complete runs a single completion and returns the trimmed text output.
	Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider name (e.g., "openai", "gemini").
	Name() string
}

// CompletionRequest contains all parameters for one text-generation call.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	// Temperature in [0,1]; mapped directly to the upstream sampling knob.
	Temperature float64
	// MaxTokens bounds the output length; zero means provider default.
	MaxTokens int64
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// CompletionResponse contains the result from the language service.
type CompletionResponse struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}
