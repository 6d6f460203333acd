package imagegen

import (
	"context"
	"sync"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/fableforge/fableforge/internal/retry"
	"github.com/fableforge/fableforge/internal/safety"
	"github.com/fableforge/fableforge/internal/scenes"
)

// Status reports whether an illustration was rendered.
type Status string

const (
	StatusReady  Status = "ready"
	StatusFailed Status = "failed"
)

// Illustration is the outcome of rendering one scene. Failed
// illustrations carry the error that exhausted their retries; the rest
// of the batch is unaffected.
type Illustration struct {
	SceneIndex int
	Prompt     string
	Bytes      []byte
	Status     Status
	Err        error
}

// Generator renders a batch of scenes concurrently through a bounded
// worker pool. Each scene gets its own retry budget and call timeout;
// a scene that exhausts its retries is marked failed and the batch
// continues.
type Generator struct {
	provider    Provider
	size        string
	workers     int
	callTimeout time.Duration
	policy      retry.Policy
}

func NewGenerator(provider Provider, size string, workers int) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{
		provider: provider,
		size:     size,
		workers:  workers,
		policy:   retry.NewPolicy(3, 2*time.Second).WithRetryable(llm.IsTransient),
	}
}

// WithRetryPolicy overrides the retry schedule, keeping the transient
// classification predicate.
func (g *Generator) WithRetryPolicy(policy retry.Policy) *Generator {
	g.policy = policy.WithRetryable(llm.IsTransient)
	return g
}

// WithCallTimeout bounds each individual provider call. Zero disables
// the per-call deadline.
func (g *Generator) WithCallTimeout(d time.Duration) *Generator {
	g.callTimeout = d
	return g
}

// GenerateAll renders every scene and returns one Illustration per
// scene, ordered by scene index. Prompts are passed through the image
// safety filter before reaching the provider.
func (g *Generator) GenerateAll(ctx context.Context, batch []scenes.Scene) []Illustration {
	results := make([]Illustration, len(batch))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < g.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = g.renderScene(ctx, batch[i])
			}
		}()
	}

	for i := range batch {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

func (g *Generator) renderScene(ctx context.Context, scene scenes.Scene) Illustration {
	prompt := safety.FilterImagePrompt(scene.Description)
	result := Illustration{
		SceneIndex: scene.Index,
		Prompt:     prompt,
		Status:     StatusFailed,
	}

	err := g.policy.Do(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if g.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.callTimeout)
			defer cancel()
		}
		data, err := g.provider.GenerateImage(callCtx, prompt, g.size)
		if err != nil {
			return err
		}
		result.Bytes = data
		return nil
	})
	if err != nil {
		result.Err = err
		logger.Warn("Illustration failed, continuing without it", logger.Fields{
			"scene": scene.Index,
			"error": err.Error(),
		})
		return result
	}

	result.Status = StatusReady
	return result
}
