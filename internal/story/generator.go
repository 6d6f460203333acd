// Package story wraps the external language service to produce story drafts
// from a user prompt, with bounded retry on transient upstream failures.
package story

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/fableforge/fableforge/internal/prompt"
	"github.com/fableforge/fableforge/internal/retry"
)

var (
	// ErrUpstreamUnavailable marks an exhausted transient-retry budget.
	ErrUpstreamUnavailable = errors.New("language service unavailable")
	// ErrUpstreamRejected marks a non-retryable upstream rejection.
	ErrUpstreamRejected = errors.New("language service rejected the request")
)

// TokenRecorder receives token usage after each successful completion.
type TokenRecorder interface {
	RecordTokenUsage(model string, totalTokens, inputTokens, outputTokens int64)
}

// Generator produces story drafts via a text-generation provider.
type Generator struct {
	provider    llm.Provider
	model       string
	loader      *prompt.Loader
	builder     *prompt.Builder
	policy      retry.Policy
	tokens      TokenRecorder
	callTimeout time.Duration
}

// NewGenerator creates a story generator. The default retry policy is
// 3 attempts with 1s/2s/4s backoff.
func NewGenerator(provider llm.Provider, model string) *Generator {
	return &Generator{
		provider: provider,
		model:    model,
		loader:   prompt.NewLoader(),
		builder:  prompt.NewBuilder(),
		policy:   retry.NewPolicy(3, time.Second).WithRetryable(llm.IsTransient),
	}
}

// WithRetryPolicy overrides the retry policy. The transient-only predicate
// is preserved.
func (g *Generator) WithRetryPolicy(policy retry.Policy) *Generator {
	g.policy = policy.WithRetryable(llm.IsTransient)
	return g
}

// WithTokenRecorder publishes token usage for every successful call.
func (g *Generator) WithTokenRecorder(r TokenRecorder) *Generator {
	g.tokens = r
	return g
}

// WithCallTimeout bounds each individual provider call. Zero disables
// the per-call deadline.
func (g *Generator) WithCallTimeout(d time.Duration) *Generator {
	g.callTimeout = d
	return g
}

func (g *Generator) complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if g.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.callTimeout)
		defer cancel()
	}
	return g.provider.Complete(ctx, req)
}

// Generate produces a story draft for the user's idea. Empty upstream
// output counts as a transient failure; exhausting the retry budget
// surfaces ErrUpstreamUnavailable, a non-retryable rejection surfaces
// ErrUpstreamRejected.
func (g *Generator) Generate(ctx context.Context, idea string, creativity float64, maxTokens int64) (*Draft, error) {
	var text string
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := g.complete(ctx, &llm.CompletionRequest{
			Model:        g.model,
			SystemPrompt: g.loader.GetStorySystemPrompt(),
			UserPrompt:   g.builder.BuildStoryPrompt(idea),
			Temperature:  creativity,
			MaxTokens:    maxTokens,
		})
		if err != nil {
			return err
		}
		if resp.Text == "" {
			return llm.Transient(g.provider.Name(), errors.New("empty story output"))
		}
		text = resp.Text
		g.recordTokens(resp.Usage)
		return nil
	})
	if err != nil {
		return nil, g.wrap(err)
	}

	draft := &Draft{
		Text:         ensureTitle(text),
		SourcePrompt: idea,
	}
	logger.Info("Story draft generated", logger.Fields{
		"model":      g.model,
		"title":      draft.Title(),
		"paragraphs": len(draft.Paragraphs()),
	})
	return draft, nil
}

// Rewrite regenerates only the flagged passages of a draft and returns the
// next revision. The caller keeps the previous revision if the rewrite
// fails.
func (g *Generator) Rewrite(ctx context.Context, draft *Draft, issues []string) (*Draft, error) {
	var text string
	err := g.policy.Do(ctx, func(ctx context.Context) error {
		resp, err := g.complete(ctx, &llm.CompletionRequest{
			Model:        g.model,
			SystemPrompt: g.loader.GetRewritePrompt(),
			UserPrompt:   g.builder.BuildRewritePrompt(draft.Text, issues),
			Temperature:  0.3, // rewrites should stay close to the original
		})
		if err != nil {
			return err
		}
		if resp.Text == "" {
			return llm.Transient(g.provider.Name(), errors.New("empty rewrite output"))
		}
		text = resp.Text
		g.recordTokens(resp.Usage)
		return nil
	})
	if err != nil {
		return nil, g.wrap(err)
	}
	return draft.Revised(ensureTitle(text)), nil
}

func (g *Generator) recordTokens(usage llm.Usage) {
	if g.tokens == nil || usage.TotalTokens == 0 {
		return
	}
	g.tokens.RecordTokenUsage(g.model, usage.TotalTokens, usage.InputTokens, usage.OutputTokens)
}

func (g *Generator) wrap(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case llm.IsRejected(err):
		return fmt.Errorf("%w: %w", ErrUpstreamRejected, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err)
	}
}
