package safety

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplaceDeniedWords(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "single replacement",
			in:   "She used the knife to cut the bandage",
			want: "She used the utensil to cut the bandage",
		},
		{
			name: "case insensitive",
			in:   "There was Blood on its wing",
			want: "There was water on its wing",
		},
		{
			name: "word boundaries respected",
			in:   "the killdeer sang", // "kill" inside a word must not match
			want: "the killdeer sang",
		},
		{
			name: "untouched text",
			in:   "a cheerful picnic in the meadow",
			want: "a cheerful picnic in the meadow",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceDeniedWords(tt.in))
		})
	}
}

func TestFilterImagePromptAppendsStyle(t *testing.T) {
	got := FilterImagePrompt("A robot playing in a park")

	assert.True(t, strings.HasPrefix(got, safetyQualifiers))
	assert.Contains(t, got, "A robot playing in a park")
	assert.True(t, strings.HasSuffix(got, defaultStyleSuffix))
}

func TestFilterImagePromptSplicesBeforeExistingStyle(t *testing.T) {
	got := FilterImagePrompt("A robot playing. Style: watercolor.")

	styleIdx := strings.Index(got, "Style: watercolor")
	safetyIdx := strings.Index(got, "G-rated")
	assert.Greater(t, styleIdx, safetyIdx, "qualifiers must precede the style section")
	assert.Equal(t, 1, strings.Count(got, "Style:"), "no duplicate style suffix")
}

func TestFilterImagePromptSanitizes(t *testing.T) {
	got := FilterImagePrompt("A pirate waving a knife")

	assert.NotContains(t, got, "knife")
	assert.Contains(t, got, "utensil")
}

func TestFilterImagePromptDeterministic(t *testing.T) {
	a := FilterImagePrompt("A fox under a gun-metal sky")
	b := FilterImagePrompt("A fox under a gun-metal sky")
	assert.Equal(t, a, b)
}
