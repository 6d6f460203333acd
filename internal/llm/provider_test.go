package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockProvider is a test implementation of the Provider interface
type MockProvider struct {
	name         string
	completeFunc func(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error)
}

func (m *MockProvider) Name() string {
	return m.name
}

func (m *MockProvider) Complete(ctx context.Context, request *CompletionRequest) (*CompletionResponse, error) {
	if m.completeFunc != nil {
		return m.completeFunc(ctx, request)
	}
	return &CompletionResponse{}, nil
}

func TestProviderInterface(t *testing.T) {
	mock := &MockProvider{name: "mock"}
	assert.Equal(t, "mock", mock.Name())
}

func TestCompletionRequest(t *testing.T) {
	req := &CompletionRequest{
		Model:        "test-model",
		SystemPrompt: "system",
		UserPrompt:   "user",
		Temperature:  0.7,
		MaxTokens:    2000,
	}

	assert.Equal(t, "test-model", req.Model)
	assert.InDelta(t, 0.7, req.Temperature, 0.001)
	assert.Equal(t, int64(2000), req.MaxTokens)
}

func TestMockProviderComplete(t *testing.T) {
	callCount := 0
	mock := &MockProvider{
		name: "test",
		completeFunc: func(_ context.Context, request *CompletionRequest) (*CompletionResponse, error) {
			callCount++
			require.Equal(t, "test-model", request.Model)
			return &CompletionResponse{
				Text:  "once upon a time",
				Usage: Usage{TotalTokens: 42},
			}, nil
		},
	}

	resp, err := mock.Complete(context.Background(), &CompletionRequest{Model: "test-model"})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 1, callCount)
	assert.Equal(t, "once upon a time", resp.Text)
	assert.Equal(t, int64(42), resp.Usage.TotalTokens)
}

func TestNewOpenAIProvider(t *testing.T) {
	provider := NewOpenAIProvider("test-api-key")
	require.NotNil(t, provider)
	assert.Equal(t, "openai", provider.Name())
	assert.NotNil(t, provider.client)
}

func TestProviderFactory(t *testing.T) {
	factory := NewProviderFactory("openai-key", "gemini-key")

	tests := []struct {
		name         string
		model        string
		providerName string
		want         string
		wantErr      bool
	}{
		{name: "explicit openai", providerName: "openai", want: "openai"},
		{name: "gpt model infers openai", model: "gpt-4o", want: "openai"},
		{name: "gemini model infers gemini", model: "gemini-2.0-flash", want: "gemini"},
		{name: "unknown model defaults to openai", model: "mystery-model", want: "openai"},
		{name: "unknown provider name", providerName: "anthropic", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, err := factory.GetProvider(context.Background(), tt.model, tt.providerName)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, provider.Name())
		})
	}
}

func TestProviderFactoryMissingKeys(t *testing.T) {
	factory := NewProviderFactory("", "")

	_, err := factory.GetProvider(context.Background(), "gpt-4o", "")
	require.Error(t, err)

	_, err = factory.GetProvider(context.Background(), "", "gemini")
	require.Error(t, err)
}
