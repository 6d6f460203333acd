package prompt

import (
	"strings"

	"github.com/fableforge/fableforge/pkg/embedded"
)

type Loader struct{}

func NewLoader() *Loader {
	return &Loader{}
}

// GetStorySystemPrompt loads the fixed system framing for story generation
func (l *Loader) GetStorySystemPrompt() string {
	return strings.TrimSpace(string(embedded.StorySystemPromptTxt))
}

// GetSceneExtractionPrompt loads the scene extraction system prompt
func (l *Loader) GetSceneExtractionPrompt() string {
	return strings.TrimSpace(string(embedded.SceneExtractionPromptTxt))
}

// GetModerationPrompt loads the content moderation system prompt
func (l *Loader) GetModerationPrompt() string {
	return strings.TrimSpace(string(embedded.ModerationPromptTxt))
}

// GetRewritePrompt loads the flagged-span rewrite system prompt
func (l *Loader) GetRewritePrompt() string {
	return strings.TrimSpace(string(embedded.RewritePromptTxt))
}

// GetDefaultDenylist returns the built-in denylist words, comments stripped
func (l *Loader) GetDefaultDenylist() []string {
	var words []string
	for _, line := range strings.Split(string(embedded.DefaultDenylistTxt), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, strings.ToLower(line))
	}
	return words
}
