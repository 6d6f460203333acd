package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fableforge/fableforge/internal/metrics"
	"github.com/fableforge/fableforge/internal/perf"
	"github.com/fableforge/fableforge/internal/pipeline"
	"github.com/fableforge/fableforge/internal/story"
	"github.com/gin-gonic/gin"
)

const maxPromptChars = 2000

// Runner executes one pipeline run per request.
type Runner interface {
	RunWith(ctx context.Context, idea string, ov pipeline.Overrides) (*pipeline.Result, error)
}

type StoryHandler struct {
	runner     Runner
	cloudwatch *metrics.Client
	sentry     *metrics.SentryMetrics
}

func NewStoryHandler(runner Runner, cloudwatch *metrics.Client) *StoryHandler {
	return &StoryHandler{
		runner:     runner,
		cloudwatch: cloudwatch,
		sentry:     metrics.NewSentryMetrics(),
	}
}

type CreateStoryRequest struct {
	Prompt     string `json:"prompt" binding:"required"`
	SceneCount int    `json:"scene_count"`
	// Creativity is a pointer so an explicit 0 (fully deterministic
	// output) is distinguishable from the field being omitted.
	Creativity *float64 `json:"creativity"`
	// ContentFilter defaults to enabled when omitted.
	ContentFilter *bool `json:"content_filter"`
}

type StoryResponse struct {
	RunID               string      `json:"run_id"`
	Title               string      `json:"title"`
	State               string      `json:"state"`
	FilterOutcome       string      `json:"filter_outcome"`
	FolderPath          string      `json:"folder_path"`
	MarkdownPath        string      `json:"markdown_path"`
	ImagePaths          []string    `json:"image_paths"`
	Warnings            []string    `json:"warnings,omitempty"`
	FailedIllustrations int         `json:"failed_illustrations"`
	Performance         perf.Report `json:"performance,omitempty"`
}

// CreateStory runs the full pipeline for one prompt and returns the
// artifact layout.
func (h *StoryHandler) CreateStory(c *gin.Context) {
	var req CreateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Prompt) > maxPromptChars {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt too long"})
		return
	}
	if req.Creativity != nil && (*req.Creativity < 0 || *req.Creativity > 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "creativity must be between 0 and 1"})
		return
	}

	overrides := pipeline.Overrides{
		ScenesPerStory: req.SceneCount,
		Creativity:     req.Creativity,
		SkipFilter:     req.ContentFilter != nil && !*req.ContentFilter,
	}

	start := time.Now()
	result, err := h.runner.RunWith(c.Request.Context(), req.Prompt, overrides)
	state := pipeline.StateAborted
	if result != nil {
		state = result.State
	}
	if h.sentry != nil {
		h.sentry.RecordPipelineRun(c.Request.Context(), string(state), time.Since(start), failureCount(result))
	}
	if h.cloudwatch != nil {
		h.cloudwatch.RecordPipelineDuration(time.Since(start), err == nil)
		if result != nil {
			h.cloudwatch.RecordIllustrationFailures(result.FailedIllustrations, len(result.Scenes))
			for stage, stats := range result.Report {
				h.cloudwatch.RecordStageDuration(stage, stats.Total, stats.Failures > 0)
			}
		}
	}
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, story.ErrUpstreamRejected):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, story.ErrUpstreamUnavailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"error":      err.Error(),
			"state":      string(pipeline.StateAborted),
			"request_id": c.GetString("request_id"),
		})
		return
	}

	resp := StoryResponse{
		RunID:               result.RunID,
		Title:               result.Artifact.Title,
		State:               string(result.State),
		FilterOutcome:       string(result.FilterOutcome),
		FolderPath:          result.Artifact.FolderPath,
		MarkdownPath:        result.Artifact.MarkdownPath,
		ImagePaths:          result.Artifact.ImagePaths,
		Warnings:            result.Warnings,
		FailedIllustrations: result.FailedIllustrations,
		Performance:         result.Report,
	}
	c.JSON(http.StatusCreated, resp)
}

func failureCount(result *pipeline.Result) int {
	if result == nil {
		return 0
	}
	return result.FailedIllustrations
}
