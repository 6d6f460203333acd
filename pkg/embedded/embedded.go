package embedded

import (
	_ "embed"
)

// Embed all prompt data files
//
//go:embed prompts/story_system_prompt.txt
var StorySystemPromptTxt []byte

//go:embed prompts/scene_extraction_prompt.txt
var SceneExtractionPromptTxt []byte

//go:embed prompts/moderation_prompt.txt
var ModerationPromptTxt []byte

//go:embed prompts/rewrite_prompt.txt
var RewritePromptTxt []byte

//go:embed prompts/default_denylist.txt
var DefaultDenylistTxt []byte
