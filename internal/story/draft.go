package story

import (
	"regexp"
	"strings"
)

const fallbackTitle = "My Children's Story"

var (
	titleRe     = regexp.MustCompile(`(?m)^#\s+(.+)$`)
	paragraphRe = regexp.MustCompile(`\n\s*\n`)
)

// Draft is one revision of the generated story text. It is owned by the
// pipeline for the duration of a run; only the content-filtering loop
// produces new revisions.
type Draft struct {
	Text         string `json:"text"`
	SourcePrompt string `json:"source_prompt"`
	Revision     int    `json:"revision"`
}

// Title extracts the markdown title, falling back to the first line.
func (d *Draft) Title() string {
	if m := titleRe.FindStringSubmatch(d.Text); m != nil {
		return strings.TrimSpace(m[1])
	}
	if first := firstLine(d.Text); first != "" {
		return first
	}
	return fallbackTitle
}

// Paragraphs returns the body paragraphs in order, excluding the title
// line. Scene anchors index into this slice.
func (d *Draft) Paragraphs() []string {
	var paragraphs []string
	for _, block := range paragraphRe.Split(d.Text, -1) {
		block = strings.TrimSpace(block)
		if block == "" || strings.HasPrefix(block, "# ") {
			continue
		}
		paragraphs = append(paragraphs, block)
	}
	return paragraphs
}

// Revised returns a new draft with the given text and a bumped revision.
func (d *Draft) Revised(text string) *Draft {
	return &Draft{
		Text:         text,
		SourcePrompt: d.SourcePrompt,
		Revision:     d.Revision + 1,
	}
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}

// ensureTitle guarantees the draft text starts with a markdown title,
// deriving one from the first line when the model omitted it.
func ensureTitle(text string) string {
	if strings.HasPrefix(text, "# ") {
		return text
	}
	title := firstLine(text)
	if title == "" || len(title) >= 50 {
		title = fallbackTitle
	}
	return "# " + title + "\n\n" + text
}
