package pipeline

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fableforge/fableforge/internal/artifact"
	"github.com/fableforge/fableforge/internal/imagegen"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/fableforge/fableforge/internal/perf"
	"github.com/fableforge/fableforge/internal/safety"
	"github.com/fableforge/fableforge/internal/scenes"
	"github.com/fableforge/fableforge/internal/story"
	"github.com/google/uuid"
)

// StoryGenerator produces and revises story drafts.
type StoryGenerator interface {
	Generate(ctx context.Context, idea string, creativity float64, maxTokens int64) (*story.Draft, error)
	Rewrite(ctx context.Context, draft *story.Draft, issues []string) (*story.Draft, error)
}

// Classifier decides whether a draft is appropriate for children.
type Classifier interface {
	Classify(ctx context.Context, text string) (safety.Verdict, error)
}

// SceneExtractor picks illustratable scenes from a finished draft.
type SceneExtractor interface {
	Extract(ctx context.Context, draft *story.Draft, count int) []scenes.Scene
}

// Illustrator renders a batch of scenes.
type Illustrator interface {
	GenerateAll(ctx context.Context, batch []scenes.Scene) []imagegen.Illustration
}

// Assembler writes the final artifact folder.
type Assembler interface {
	Assemble(draft *story.Draft, batch []scenes.Scene, illustrations []imagegen.Illustration, warnings []string) (*artifact.StoryArtifact, error)
}

// Options tunes one pipeline run.
type Options struct {
	Creativity         float64
	MaxTokens          int64
	ScenesPerStory     int
	MaxRewriteAttempts int
}

// Overrides tunes a single run. Unset values fall back to the
// orchestrator's configured options. Creativity is a pointer so an
// explicit zero is distinguishable from "not set".
type Overrides struct {
	ScenesPerStory int
	Creativity     *float64
	SkipFilter     bool
}

// Result is the outcome of a completed or aborted run.
type Result struct {
	RunID               string
	State               State
	FilterOutcome       FilterOutcome
	Draft               *story.Draft
	Scenes              []scenes.Scene
	Artifact            *artifact.StoryArtifact
	Warnings            []string
	FailedIllustrations int
	Report              perf.Report
}

// Orchestrator drives one story from prompt to artifact folder. Runs
// are independent; the orchestrator itself is safe to reuse across
// runs.
type Orchestrator struct {
	generator   StoryGenerator
	classifier  Classifier
	extractor   SceneExtractor
	illustrator Illustrator
	assembler   Assembler
	opts        Options
}

func NewOrchestrator(generator StoryGenerator, classifier Classifier, extractor SceneExtractor, illustrator Illustrator, assembler Assembler, opts Options) *Orchestrator {
	if opts.ScenesPerStory <= 0 {
		opts.ScenesPerStory = 4
	}
	if opts.MaxRewriteAttempts < 0 {
		opts.MaxRewriteAttempts = 0
	}
	return &Orchestrator{
		generator:   generator,
		classifier:  classifier,
		extractor:   extractor,
		illustrator: illustrator,
		assembler:   assembler,
		opts:        opts,
	}
}

// Run executes the full pipeline for one prompt with the configured
// options.
func (o *Orchestrator) Run(ctx context.Context, idea string) (*Result, error) {
	return o.RunWith(ctx, idea, Overrides{})
}

// RunWith executes the full pipeline for one prompt. Generation and
// assembly failures abort the run; filtering and illustration trouble
// degrade into warnings on a still-complete artifact.
func (o *Orchestrator) RunWith(ctx context.Context, idea string, ov Overrides) (*Result, error) {
	opts := o.opts
	if ov.ScenesPerStory > 0 {
		opts.ScenesPerStory = ov.ScenesPerStory
	}
	if ov.Creativity != nil {
		opts.Creativity = *ov.Creativity
	}

	recorder := perf.NewRecorder()
	result := &Result{RunID: uuid.New().String(), State: StateReceived}

	logger.Info("Pipeline run started", logger.Fields{
		"run_id":       result.RunID,
		"prompt_chars": len(idea),
	})

	result.State = StateGenerating
	draft, err := o.generateStage(ctx, recorder, idea, opts)
	if err != nil {
		result.State = StateAborted
		result.Report = recorder.Report()
		return result, fmt.Errorf("story generation failed: %w", err)
	}
	result.Draft = draft

	result.State = StateFiltering
	if ov.SkipFilter {
		result.FilterOutcome = FilterClean
		result.Warnings = append(result.Warnings, "content filter was disabled for this run")
	} else {
		filtered, outcome, warnings, err := o.filterStage(ctx, recorder, draft, opts)
		if err != nil {
			result.State = StateAborted
			result.Report = recorder.Report()
			return result, err
		}
		draft = filtered
		result.Draft = draft
		result.FilterOutcome = outcome
		result.Warnings = append(result.Warnings, warnings...)
	}

	result.State = StateExtractingScenes
	batch := o.extractStage(ctx, recorder, draft, opts)
	if err := ctx.Err(); err != nil {
		result.State = StateAborted
		result.Report = recorder.Report()
		return result, err
	}
	if len(batch) == 0 && len(draft.Paragraphs()) == 0 {
		result.State = StateAborted
		result.Report = recorder.Report()
		return result, fmt.Errorf("draft has no paragraphs to illustrate")
	}
	result.Scenes = batch

	result.State = StateIllustrating
	illustrations := o.illustrateStage(ctx, recorder, batch)
	if err := ctx.Err(); err != nil {
		result.State = StateAborted
		result.Report = recorder.Report()
		return result, err
	}
	for _, ill := range illustrations {
		if ill.Status == imagegen.StatusFailed {
			result.FailedIllustrations++
		}
	}
	if result.FailedIllustrations > 0 {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d of %d illustrations could not be rendered", result.FailedIllustrations, len(illustrations)))
	}

	result.State = StateAssembling
	art, err := o.assembleStage(recorder, draft, batch, illustrations, result.Warnings)
	if err != nil {
		result.State = StateAborted
		result.Report = recorder.Report()
		return result, fmt.Errorf("artifact assembly failed: %w", err)
	}
	result.Artifact = art

	if _, err := recorder.WriteJSON(filepath.Join(art.FolderPath, "performance")); err != nil {
		logger.Warn("Failed to write performance report", logger.Fields{
			"error": err.Error(),
		})
	}

	result.State = StateCompleted
	result.Report = recorder.Report()
	logger.Info("Pipeline run completed", logger.Fields{
		"run_id":               result.RunID,
		"title":                art.Title,
		"folder":               art.FolderPath,
		"filter_outcome":       string(result.FilterOutcome),
		"failed_illustrations": result.FailedIllustrations,
	})
	return result, nil
}

func (o *Orchestrator) generateStage(ctx context.Context, recorder *perf.Recorder, idea string, opts Options) (*story.Draft, error) {
	done := recorder.Start("generate_story")
	draft, err := o.generator.Generate(ctx, idea, opts.Creativity, opts.MaxTokens)
	done(err != nil)
	return draft, err
}

// filterStage runs the bounded classify-rewrite loop. It only returns
// an error on context cancellation; every other failure degrades to
// FilterWithWarning.
func (o *Orchestrator) filterStage(ctx context.Context, recorder *perf.Recorder, draft *story.Draft, opts Options) (*story.Draft, FilterOutcome, []string, error) {
	done := recorder.Start("filter_content")
	current := draft
	var lastIssues []string

	for attempt := 0; ; attempt++ {
		verdict, err := o.classifier.Classify(ctx, current.Text)
		if err != nil {
			done(true)
			return current, "", nil, err
		}
		if verdict.Clean {
			done(false)
			if attempt > 0 {
				return current, FilterClean, []string{
					fmt.Sprintf("story was revised %d time(s) for content before passing", attempt),
				}, nil
			}
			return current, FilterClean, nil, nil
		}

		lastIssues = verdict.Issues
		if attempt >= opts.MaxRewriteAttempts {
			break
		}

		logger.Warn("Story flagged, requesting rewrite", logger.Fields{
			"attempt": attempt + 1,
			"issues":  len(verdict.Issues),
		})
		revised, err := o.generator.Rewrite(ctx, current, verdict.Issues)
		if err != nil {
			if ctx.Err() != nil {
				done(true)
				return current, "", nil, ctx.Err()
			}
			// Rewrite unavailable: deliver the flagged draft with a
			// warning rather than failing the run.
			logger.Warn("Rewrite unavailable, keeping flagged draft", logger.Fields{
				"error": err.Error(),
			})
			break
		}
		current = revised
	}

	done(false)
	warnings := []string{"story did not pass the content check; review before sharing"}
	warnings = append(warnings, lastIssues...)
	return current, FilterWithWarning, warnings, nil
}

func (o *Orchestrator) extractStage(ctx context.Context, recorder *perf.Recorder, draft *story.Draft, opts Options) []scenes.Scene {
	done := recorder.Start("extract_scenes")
	batch := o.extractor.Extract(ctx, draft, opts.ScenesPerStory)
	done(len(batch) == 0)
	return batch
}

func (o *Orchestrator) illustrateStage(ctx context.Context, recorder *perf.Recorder, batch []scenes.Scene) []imagegen.Illustration {
	done := recorder.Start("generate_images")
	illustrations := o.illustrator.GenerateAll(ctx, batch)
	failed := false
	for _, ill := range illustrations {
		if ill.Status == imagegen.StatusFailed {
			failed = true
		}
	}
	done(failed)
	return illustrations
}

func (o *Orchestrator) assembleStage(recorder *perf.Recorder, draft *story.Draft, batch []scenes.Scene, illustrations []imagegen.Illustration, warnings []string) (*artifact.StoryArtifact, error) {
	done := recorder.Start("assemble_artifact")
	art, err := o.assembler.Assemble(draft, batch, illustrations, warnings)
	done(err != nil)
	return art, err
}
