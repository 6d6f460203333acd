package prompt

import (
	"fmt"
	"strings"
)

// Builder assembles user prompts for each pipeline stage.
type Builder struct{}

// NewBuilder creates a new prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// BuildStoryPrompt wraps the user's idea with the fixed framing asking for
// illustratable scenes.
func (b *Builder) BuildStoryPrompt(idea string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create a children's story based on this idea: %q\n\n", idea)
	sb.WriteString("Make the story whimsical, educational, and engaging for young readers.\n")
	sb.WriteString("Include descriptive scenes that would work well as illustrations.")
	return sb.String()
}

// BuildSceneExtractionPrompt asks for exactly count scenes from the story.
func (b *Builder) BuildSceneExtractionPrompt(title, storyText string, count int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story Title: %s\n\n", title)
	fmt.Fprintf(&sb, "Story Text:\n%s\n\n", storyText)
	fmt.Fprintf(&sb, "Identify exactly %d key scenes from this story that would make good illustrations. ", count)
	sb.WriteString(`Return them as a JSON object {"scenes": [{"anchor": <paragraph index>, "description": "<image prompt>"}]}.`)
	return sb.String()
}

// BuildModerationPrompt asks the judge model to assess a story.
func (b *Builder) BuildModerationPrompt(storyText string) string {
	return fmt.Sprintf("Please analyze this children's story for age-appropriateness:\n\n%s", storyText)
}

// BuildRewritePrompt asks for a targeted rewrite of the flagged passages.
func (b *Builder) BuildRewritePrompt(storyText string, issues []string) string {
	var sb strings.Builder
	sb.WriteString("Please rewrite this children's story to make it age-appropriate for children ages 4-10.\n\n")
	if len(issues) > 0 {
		sb.WriteString("The following issues need to be addressed:\n")
		for _, issue := range issues {
			fmt.Fprintf(&sb, "- %s\n", issue)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Original story:\n%s", storyText)
	return sb.String()
}
