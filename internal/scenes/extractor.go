package scenes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/fableforge/fableforge/internal/prompt"
	"github.com/fableforge/fableforge/internal/retry"
	"github.com/fableforge/fableforge/internal/story"
)

// Scene is a single illustratable moment in a story. Anchor is the
// zero-based index of the paragraph the scene belongs to, counting
// body paragraphs only (the title line is not a paragraph).
type Scene struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
	Anchor      int    `json:"anchor"`
}

// Extractor picks illustratable scenes out of a finished draft. The
// primary path asks a language model for structured JSON; when the
// model is unavailable or returns garbage the extractor degrades to a
// deterministic paragraph-based split so the pipeline can continue.
type Extractor struct {
	provider    llm.Provider
	model       string
	loader      *prompt.Loader
	builder     *prompt.Builder
	policy      retry.Policy
	callTimeout time.Duration
}

// NewExtractor creates a scene extractor. The default retry policy
// matches the story generator's: 3 attempts with 1s/2s/4s backoff.
func NewExtractor(provider llm.Provider, model string) *Extractor {
	return &Extractor{
		provider: provider,
		model:    model,
		loader:   prompt.NewLoader(),
		builder:  prompt.NewBuilder(),
		policy:   retry.NewPolicy(3, time.Second).WithRetryable(llm.IsTransient),
	}
}

// WithRetryPolicy overrides the retry schedule, keeping the transient
// classification predicate.
func (e *Extractor) WithRetryPolicy(policy retry.Policy) *Extractor {
	e.policy = policy.WithRetryable(llm.IsTransient)
	return e
}

// WithCallTimeout bounds each individual provider call. Zero disables
// the per-call deadline.
func (e *Extractor) WithCallTimeout(d time.Duration) *Extractor {
	e.callTimeout = d
	return e
}

// Extract returns exactly min(count, paragraphs) scenes with valid,
// strictly ascending anchors. It never fails on model trouble: the
// fallback split always produces a usable result.
func (e *Extractor) Extract(ctx context.Context, draft *story.Draft, count int) []Scene {
	paragraphs := draft.Paragraphs()
	if len(paragraphs) == 0 || count <= 0 {
		return nil
	}
	if count > len(paragraphs) {
		count = len(paragraphs)
	}

	extracted, err := e.extractWithModel(ctx, draft, count)
	if err != nil {
		logger.Warn("Scene extraction falling back to paragraph split", logger.Fields{
			"error": err.Error(),
			"count": count,
		})
		return fallbackScenes(draft, count)
	}

	scenes := normalize(extracted, count, len(paragraphs))
	if len(scenes) < count {
		logger.Warn("Model returned too few usable scenes, padding from paragraph split", logger.Fields{
			"usable": len(scenes),
			"count":  count,
		})
		scenes = pad(scenes, fallbackScenes(draft, count), count, len(paragraphs))
	}
	for i := range scenes {
		scenes[i].Index = i
	}
	return scenes
}

func (e *Extractor) extractWithModel(ctx context.Context, draft *story.Draft, count int) ([]Scene, error) {
	req := &llm.CompletionRequest{
		Model:        e.model,
		SystemPrompt: e.loader.GetSceneExtractionPrompt(),
		UserPrompt:   e.builder.BuildSceneExtractionPrompt(draft.Title(), draft.Text, count),
		Temperature:  0.2,
	}

	var parsed []Scene
	err := e.policy.Do(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if e.callTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.callTimeout)
			defer cancel()
		}
		resp, err := e.provider.Complete(callCtx, req)
		if err != nil {
			return err
		}
		scenes, err := parseScenes(resp.Text)
		if err != nil {
			// Malformed output is worth one more attempt.
			return llm.Transient(e.provider.Name(), err)
		}
		parsed = scenes
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parsed, nil
}

type sceneEnvelope struct {
	Scenes []Scene `json:"scenes"`
}

func parseScenes(raw string) ([]Scene, error) {
	cleaned := stripCodeFences(raw)
	var envelope sceneEnvelope
	if err := json.Unmarshal([]byte(cleaned), &envelope); err != nil {
		// Some models return the bare array without the wrapper object.
		var bare []Scene
		if errBare := json.Unmarshal([]byte(cleaned), &bare); errBare == nil {
			envelope.Scenes = bare
		} else {
			return nil, fmt.Errorf("failed to parse scene JSON: %w", err)
		}
	}
	if len(envelope.Scenes) == 0 {
		return nil, fmt.Errorf("scene JSON contained no scenes")
	}
	return envelope.Scenes, nil
}

// normalize clamps anchors into range, drops empty descriptions, bumps
// duplicate anchors forward to the next free paragraph, and sorts the
// result into ascending anchor order. Scenes whose duplicates cannot be
// bumped (all later paragraphs taken) are dropped.
func normalize(scenes []Scene, count, paragraphCount int) []Scene {
	taken := make(map[int]bool, count)
	var out []Scene
	for _, s := range scenes {
		if len(out) == count {
			break
		}
		desc := strings.TrimSpace(s.Description)
		if desc == "" {
			continue
		}
		anchor := s.Anchor
		if anchor < 0 {
			anchor = 0
		}
		if anchor >= paragraphCount {
			anchor = paragraphCount - 1
		}
		for taken[anchor] && anchor < paragraphCount-1 {
			anchor++
		}
		if taken[anchor] {
			continue
		}
		taken[anchor] = true
		out = append(out, Scene{Description: desc, Anchor: anchor})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Anchor < out[j].Anchor })
	return out
}

// pad fills a short scene list up to count using fallback scenes whose
// anchors are not already taken.
func pad(scenes, fallback []Scene, count, paragraphCount int) []Scene {
	taken := make(map[int]bool, count)
	for _, s := range scenes {
		taken[s.Anchor] = true
	}
	for _, f := range fallback {
		if len(scenes) == count {
			break
		}
		anchor := f.Anchor
		for taken[anchor] && anchor < paragraphCount-1 {
			anchor++
		}
		if taken[anchor] {
			continue
		}
		taken[anchor] = true
		scenes = append(scenes, Scene{Description: f.Description, Anchor: anchor})
	}
	sort.Slice(scenes, func(i, j int) bool { return scenes[i].Anchor < scenes[j].Anchor })
	return scenes
}

// fallbackScenes splits the body into count contiguous paragraph groups
// and describes each group by its first sentence. The result is
// deterministic for a given draft.
func fallbackScenes(draft *story.Draft, count int) []Scene {
	paragraphs := draft.Paragraphs()
	if count > len(paragraphs) {
		count = len(paragraphs)
	}
	if count <= 0 {
		return nil
	}

	title := draft.Title()
	scenes := make([]Scene, 0, count)
	groupSize := len(paragraphs) / count
	remainder := len(paragraphs) % count
	start := 0
	for i := 0; i < count; i++ {
		size := groupSize
		if i < remainder {
			size++
		}
		desc := firstSentence(paragraphs[start])
		if desc == "" {
			desc = fmt.Sprintf("An illustration for part %d of %q", i+1, title)
		}
		scenes = append(scenes, Scene{Index: i, Description: desc, Anchor: start})
		start += size
	}
	return scenes
}

func firstSentence(paragraph string) string {
	trimmed := strings.TrimSpace(paragraph)
	for i, r := range trimmed {
		if r == '.' || r == '!' || r == '?' {
			return trimmed[:i+1]
		}
	}
	return trimmed
}

func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
