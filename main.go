package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/fableforge/fableforge/internal/api"
	"github.com/fableforge/fableforge/internal/artifact"
	"github.com/fableforge/fableforge/internal/config"
	"github.com/fableforge/fableforge/internal/imagegen"
	"github.com/fableforge/fableforge/internal/llm"
	"github.com/fableforge/fableforge/internal/metrics"
	"github.com/fableforge/fableforge/internal/pipeline"
	"github.com/fableforge/fableforge/internal/retry"
	"github.com/fableforge/fableforge/internal/safety"
	"github.com/fableforge/fableforge/internal/scenes"
	"github.com/fableforge/fableforge/internal/story"
	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	sentryFlushTimeout    = 2 * time.Second
	environmentProduction = "production"
)

// releaseVersion is set via ldflags during build
var releaseVersion = "dev"

// GetVersion returns the current release version
func GetVersion() string {
	return releaseVersion
}

func main() {
	promptFlag := flag.String("prompt", "", "Story idea to generate from")
	scenesFlag := flag.Int("scenes", 0, "Number of scenes to illustrate (default from config)")
	outputFlag := flag.String("output", "", "Output directory override")
	serveFlag := flag.Bool("serve", false, "Run as an HTTP API server")
	noFilterFlag := flag.Bool("no-filter", false, "Disable the content filter for this run")
	listFlag := flag.Bool("list", false, "List previously generated stories and exit")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Println("fableforge " + releaseVersion)
		return
	}

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}
	if *outputFlag != "" {
		cfg.OutputDir = *outputFlag
	}
	if *scenesFlag > 0 {
		cfg.ScenesPerStory = *scenesFlag
	}

	if *listFlag {
		if err := listStories(cfg.OutputDir); err != nil {
			log.Fatal("Failed to list stories: ", err)
		}
		return
	}

	// Initialize Sentry
	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.Environment,
			Release:          "fableforge@" + releaseVersion,
			EnableTracing:    true,
			TracesSampleRate: 1.0,
			Debug:            cfg.Environment != environmentProduction,
			BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
				// Filter out sensitive data
				if event.Request != nil {
					event.Request.Headers = filterSensitiveHeaders(event.Request.Headers)
				}
				return event
			},
		}); err != nil {
			log.Printf("Failed to initialize Sentry: %v", err)
		} else {
			log.Printf("✅ Sentry initialized (environment: %s, release: %s)", cfg.Environment, releaseVersion)
			defer sentry.Flush(sentryFlushTimeout)
		}
	} else {
		log.Println("⚠️  Sentry not configured (SENTRY_DSN not set)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cloudwatch, err := metrics.NewClient(ctx, cfg.Environment)
	if err != nil {
		log.Printf("CloudWatch metrics unavailable: %v", err)
	}

	orchestrator, err := buildOrchestrator(ctx, cfg, cloudwatch)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to initialize pipeline: ", err)
	}

	if *serveFlag {
		runServer(cfg, orchestrator, cloudwatch)
		return
	}

	if *promptFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: fableforge -prompt \"a story idea\" [-scenes N] [-output DIR]")
		fmt.Fprintln(os.Stderr, "       fableforge -serve")
		fmt.Fprintln(os.Stderr, "       fableforge -list")
		os.Exit(2)
	}

	runOnce(ctx, orchestrator, cloudwatch, *promptFlag, pipeline.Overrides{SkipFilter: *noFilterFlag})
}

// buildOrchestrator wires every pipeline stage from configuration.
func buildOrchestrator(ctx context.Context, cfg *config.Config, cloudwatch *metrics.Client) (*pipeline.Orchestrator, error) {
	factory := llm.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)

	storyProvider, err := factory.GetProvider(ctx, cfg.StoryModel, "")
	if err != nil {
		return nil, fmt.Errorf("story provider: %w", err)
	}
	judgeProvider, err := factory.GetProvider(ctx, cfg.JudgeModel, "")
	if err != nil {
		return nil, fmt.Errorf("judge provider: %w", err)
	}

	imageFactory := imagegen.NewProviderFactory(cfg.OpenAIAPIKey, cfg.GeminiAPIKey)
	imageProvider, err := imageFactory.GetProvider(ctx, cfg.ImageModel)
	if err != nil {
		return nil, fmt.Errorf("image provider: %w", err)
	}

	generator := story.NewGenerator(storyProvider, cfg.StoryModel).
		WithRetryPolicy(retry.NewPolicy(cfg.StoryAttempts, cfg.StoryBackoff)).
		WithCallTimeout(cfg.CallTimeout)
	if cloudwatch != nil {
		generator = generator.WithTokenRecorder(cloudwatch)
	}

	classifierOpts := []safety.Option{safety.WithCallTimeout(cfg.CallTimeout)}
	if cfg.DenylistPath != "" {
		words, err := safety.LoadDenylistFile(cfg.DenylistPath)
		if err != nil {
			return nil, fmt.Errorf("denylist: %w", err)
		}
		classifierOpts = append(classifierOpts, safety.WithDenylist(words))
	}
	classifier := safety.NewClassifier(judgeProvider, cfg.JudgeModel, classifierOpts...)

	extractor := scenes.NewExtractor(judgeProvider, cfg.JudgeModel).
		WithRetryPolicy(retry.NewPolicy(cfg.StoryAttempts, cfg.StoryBackoff)).
		WithCallTimeout(cfg.CallTimeout)

	illustrator := imagegen.NewGenerator(imageProvider, cfg.ImageSize, cfg.ImageWorkers).
		WithRetryPolicy(retry.NewPolicy(cfg.ImageAttempts, cfg.ImageBackoff)).
		WithCallTimeout(cfg.CallTimeout)

	assembler := artifact.NewAssembler(cfg.OutputDir)

	return pipeline.NewOrchestrator(generator, classifier, extractor, illustrator, assembler, pipeline.Options{
		Creativity:         cfg.StoryTemperature,
		MaxTokens:          cfg.StoryMaxTokens,
		ScenesPerStory:     cfg.ScenesPerStory,
		MaxRewriteAttempts: cfg.MaxRewriteAttempts,
	}), nil
}

func runOnce(ctx context.Context, orchestrator *pipeline.Orchestrator, cloudwatch *metrics.Client, prompt string, ov pipeline.Overrides) {
	start := time.Now()
	result, err := orchestrator.RunWith(ctx, prompt, ov)
	if cloudwatch != nil {
		cloudwatch.RecordPipelineDuration(time.Since(start), err == nil)
		if result != nil {
			cloudwatch.RecordIllustrationFailures(result.FailedIllustrations, len(result.Scenes))
			for stage, stats := range result.Report {
				cloudwatch.RecordStageDuration(stage, stats.Total, stats.Failures > 0)
			}
		}
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal("Story generation failed: ", err)
	}

	fmt.Printf("📖 %s\n", result.Artifact.Title)
	fmt.Printf("   folder:   %s\n", result.Artifact.FolderPath)
	fmt.Printf("   markdown: %s\n", result.Artifact.MarkdownPath)
	fmt.Printf("   images:   %d\n", len(result.Artifact.ImagePaths))
	for _, w := range result.Warnings {
		fmt.Printf("   ⚠️  %s\n", w)
	}
}

func runServer(cfg *config.Config, orchestrator *pipeline.Orchestrator, cloudwatch *metrics.Client) {
	if cfg.Environment == environmentProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := api.SetupRouter(orchestrator, cloudwatch, GetVersion())

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("🚀 Starting server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		sentry.CaptureException(err)
		log.Fatal("Failed to start server: ", err)
	}
}

// listStories prints previously generated artifact folders, newest
// first.
func listStories(outputDir string) error {
	entries, err := os.ReadDir(outputDir)
	if os.IsNotExist(err) {
		fmt.Println("No stories generated yet.")
		return nil
	}
	if err != nil {
		return err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if len(names) == 0 {
		fmt.Println("No stories generated yet.")
		return nil
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func filterSensitiveHeaders(headers map[string]string) map[string]string {
	filtered := make(map[string]string)
	sensitiveKeys := map[string]bool{
		"authorization": true,
		"cookie":        true,
		"x-api-key":     true,
	}

	for k, v := range headers {
		if sensitiveKeys[k] {
			filtered[k] = "[REDACTED]"
		} else {
			filtered[k] = v
		}
	}
	return filtered
}
