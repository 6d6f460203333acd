package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration. Values come from the
// environment (optionally seeded from a .env file in main).
type Config struct {
	// Environment
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Port        string `env:"PORT" envDefault:"8080"`

	// LLM API keys
	OpenAIAPIKey string `env:"OPENAI_API_KEY"`
	GeminiAPIKey string `env:"GEMINI_API_KEY"`

	// Story generation
	StoryModel       string        `env:"STORY_MODEL" envDefault:"gpt-4o"`
	StoryMaxTokens   int64         `env:"STORY_MAX_TOKENS" envDefault:"2000"`
	StoryTemperature float64       `env:"STORY_TEMPERATURE" envDefault:"0.7"`
	StoryAttempts    int           `env:"STORY_ATTEMPTS" envDefault:"3"`
	StoryBackoff     time.Duration `env:"STORY_BACKOFF" envDefault:"1s"`

	// Content safety
	JudgeModel         string `env:"JUDGE_MODEL" envDefault:"gpt-4o-mini"`
	MaxRewriteAttempts int    `env:"MAX_REWRITE_ATTEMPTS" envDefault:"2"`
	DenylistPath       string `env:"DENYLIST_PATH"`

	// Image generation
	ImageModel    string        `env:"IMAGE_MODEL" envDefault:"dall-e-3"`
	ImageSize     string        `env:"IMAGE_SIZE" envDefault:"1024x1024"`
	ImageWorkers  int           `env:"IMAGE_WORKERS" envDefault:"3"`
	ImageAttempts int           `env:"IMAGE_ATTEMPTS" envDefault:"3"`
	ImageBackoff  time.Duration `env:"IMAGE_BACKOFF" envDefault:"2s"`

	// Per-call timeout for every external service call
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"90s"`

	// Output
	OutputDir      string `env:"OUTPUT_DIR" envDefault:"output"`
	ScenesPerStory int    `env:"SCENES_PER_STORY" envDefault:"4"`

	// Observability
	SentryDSN string `env:"SENTRY_DSN"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse config from environment: %w", err)
	}
	return &cfg, nil
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
