package imagegen

import (
	"context"
	"fmt"
	"strings"
)

// Provider generates a single illustration from a text prompt and
// returns the raw PNG bytes.
type Provider interface {
	GenerateImage(ctx context.Context, prompt, size string) ([]byte, error)
	Name() string
}

// ProviderFactory creates image providers on demand, keyed by model
// name. Imagen models route to Gemini, everything else to OpenAI.
type ProviderFactory struct {
	openaiAPIKey string
	geminiAPIKey string
}

func NewProviderFactory(openaiAPIKey, geminiAPIKey string) *ProviderFactory {
	return &ProviderFactory{
		openaiAPIKey: openaiAPIKey,
		geminiAPIKey: geminiAPIKey,
	}
}

// GetProvider returns the image provider responsible for the given
// model name.
func (f *ProviderFactory) GetProvider(ctx context.Context, model string) (Provider, error) {
	if strings.HasPrefix(model, "imagen-") {
		if f.geminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for model %s", model)
		}
		return NewGeminiImageProvider(ctx, f.geminiAPIKey, model)
	}
	if f.openaiAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required for model %s", model)
	}
	return NewOpenAIImageProvider(f.openaiAPIKey, model), nil
}
