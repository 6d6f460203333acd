package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "gpt-4o", cfg.StoryModel)
	assert.Equal(t, int64(2000), cfg.StoryMaxTokens)
	assert.InDelta(t, 0.7, cfg.StoryTemperature, 0.001)
	assert.Equal(t, 3, cfg.StoryAttempts)
	assert.Equal(t, time.Second, cfg.StoryBackoff)
	assert.Equal(t, "dall-e-3", cfg.ImageModel)
	assert.Equal(t, 3, cfg.ImageWorkers)
	assert.Equal(t, 2, cfg.MaxRewriteAttempts)
	assert.Equal(t, 4, cfg.ScenesPerStory)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("STORY_MODEL", "gemini-2.0-flash")
	t.Setenv("IMAGE_WORKERS", "5")
	t.Setenv("CALL_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "gemini-2.0-flash", cfg.StoryModel)
	assert.Equal(t, 5, cfg.ImageWorkers)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
}
