package safety

import (
	"regexp"
	"strings"
)

// replacements maps denied words to child-friendly substitutes applied
// before any prompt leaves the process.
var replacements = map[string]string{
	"kill":   "stop",
	"die":    "go away",
	"dead":   "gone",
	"blood":  "water",
	"gun":    "tool",
	"weapon": "item",
	"knife":  "utensil",
	"shoot":  "point",
	"hell":   "heck",
	"damn":   "darn",
	"crap":   "stuff",
}

var replacementRes = func() map[*regexp.Regexp]string {
	res := make(map[*regexp.Regexp]string, len(replacements))
	for word, sub := range replacements {
		res[regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(word)+`\b`)] = sub
	}
	return res
}()

const safetyQualifiers = "Create a child-friendly, G-rated illustration suitable for young children. " +
	"Use bright, cheerful colors and a non-threatening style. " +
	"Ensure all content is age-appropriate for children ages 4-10. "

const defaultStyleSuffix = " Style: children's book illustration, colorful, whimsical."

// ReplaceDeniedWords substitutes denied words with child-friendly
// alternatives. Deterministic, no external call.
func ReplaceDeniedWords(text string) string {
	for re, sub := range replacementRes {
		text = re.ReplaceAllString(text, sub)
	}
	return text
}

// FilterImagePrompt sanitizes and augments an image-generation prompt with
// safety qualifiers. It never fails and makes no external call. When the
// prompt already carries a "Style:" section the qualifiers are spliced in
// before it; otherwise a default style suffix is appended.
func FilterImagePrompt(imagePrompt string) string {
	filtered := ReplaceDeniedWords(imagePrompt)

	if idx := styleIndex(filtered); idx >= 0 {
		return filtered[:idx] + safetyQualifiers + filtered[idx:]
	}
	return safetyQualifiers + filtered + defaultStyleSuffix
}

func styleIndex(s string) int {
	lower := strings.ToLower(s)
	for _, marker := range []string{"style:", "style="} {
		if idx := strings.Index(lower, marker); idx >= 0 {
			return idx
		}
	}
	return -1
}
