package imagegen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/retry"
	"github.com/fableforge/fableforge/internal/scenes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubImageProvider struct {
	mu       sync.Mutex
	calls    int
	prompts  []string
	generate func(call int, prompt string) ([]byte, error)
}

func (s *stubImageProvider) Name() string { return "stub" }

func (s *stubImageProvider) GenerateImage(_ context.Context, prompt, _ string) ([]byte, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.mu.Unlock()
	return s.generate(call, prompt)
}

type instantClock struct{}

func (instantClock) Sleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func fastPolicy(attempts int) retry.Policy {
	return retry.NewPolicy(attempts, time.Millisecond).WithClock(instantClock{})
}

func sceneBatch(n int) []scenes.Scene {
	batch := make([]scenes.Scene, n)
	for i := range batch {
		batch[i] = scenes.Scene{
			Index:       i,
			Description: fmt.Sprintf("A fox in a meadow, scene %d", i),
			Anchor:      i,
		}
	}
	return batch
}

func TestGenerateAllOrdersResultsByScene(t *testing.T) {
	stub := &stubImageProvider{generate: func(_ int, prompt string) ([]byte, error) {
		return []byte(prompt), nil
	}}
	g := NewGenerator(stub, "1024x1024", 3).WithRetryPolicy(fastPolicy(3))

	results := g.GenerateAll(context.Background(), sceneBatch(5))
	require.Len(t, results, 5)
	for i, r := range results {
		assert.Equal(t, i, r.SceneIndex)
		assert.Equal(t, StatusReady, r.Status)
		assert.NotEmpty(t, r.Bytes)
	}
}

func TestGenerateAllPartialFailure(t *testing.T) {
	stub := &stubImageProvider{generate: func(_ int, prompt string) ([]byte, error) {
		if strings.Contains(prompt, "scene 1") || strings.Contains(prompt, "scene 3") {
			return nil, llm.Transient("stub", errors.New("overloaded"))
		}
		return []byte("png"), nil
	}}
	g := NewGenerator(stub, "1024x1024", 2).WithRetryPolicy(fastPolicy(2))

	results := g.GenerateAll(context.Background(), sceneBatch(4))
	require.Len(t, results, 4)
	assert.Equal(t, StatusReady, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Equal(t, StatusReady, results[2].Status)
	assert.Equal(t, StatusFailed, results[3].Status)
	assert.Error(t, results[1].Err)
	assert.Nil(t, results[1].Bytes)
}

func TestGenerateAllRetriesTransientFailures(t *testing.T) {
	var failedOnce atomic.Bool
	stub := &stubImageProvider{generate: func(_ int, _ string) ([]byte, error) {
		if failedOnce.CompareAndSwap(false, true) {
			return nil, llm.Transient("stub", errors.New("blip"))
		}
		return []byte("png"), nil
	}}
	g := NewGenerator(stub, "1024x1024", 1).WithRetryPolicy(fastPolicy(3))

	results := g.GenerateAll(context.Background(), sceneBatch(1))
	require.Len(t, results, 1)
	assert.Equal(t, StatusReady, results[0].Status)
	assert.Equal(t, 2, stub.calls)
}

func TestGenerateAllDoesNotRetryRejections(t *testing.T) {
	stub := &stubImageProvider{generate: func(_ int, _ string) ([]byte, error) {
		return nil, llm.Rejected("stub", errors.New("policy violation"))
	}}
	g := NewGenerator(stub, "1024x1024", 1).WithRetryPolicy(fastPolicy(3))

	results := g.GenerateAll(context.Background(), sceneBatch(1))
	require.Len(t, results, 1)
	assert.Equal(t, StatusFailed, results[0].Status)
	assert.Equal(t, 1, stub.calls)
}

func TestGenerateAllFiltersPrompts(t *testing.T) {
	stub := &stubImageProvider{generate: func(_ int, _ string) ([]byte, error) {
		return []byte("png"), nil
	}}
	g := NewGenerator(stub, "1024x1024", 1).WithRetryPolicy(fastPolicy(1))

	batch := []scenes.Scene{{Index: 0, Description: "A chef with a knife chops vegetables"}}
	results := g.GenerateAll(context.Background(), batch)
	require.Len(t, results, 1)

	sent := stub.prompts[0]
	assert.NotContains(t, strings.ToLower(sent), "knife")
	assert.Contains(t, sent, "child-friendly")
	assert.Equal(t, sent, results[0].Prompt)
}

func TestGenerateAllBoundsConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	stub := &stubImageProvider{generate: func(_ int, _ string) ([]byte, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		return []byte("png"), nil
	}}
	g := NewGenerator(stub, "1024x1024", 2).WithRetryPolicy(fastPolicy(1))

	g.GenerateAll(context.Background(), sceneBatch(8))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}
