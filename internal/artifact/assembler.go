package artifact

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fableforge/fableforge/internal/imagegen"
	"github.com/fableforge/fableforge/internal/logger"
	"github.com/fableforge/fableforge/internal/scenes"
	"github.com/fableforge/fableforge/internal/story"
	"github.com/yuin/goldmark"
)

// StoryArtifact describes everything written to disk for one run.
type StoryArtifact struct {
	Title        string
	FolderPath   string
	MarkdownPath string
	HTMLPath     string
	ImagePaths   []string
	Warnings     []string
}

// Assembler writes the finished story, its illustrations, and an HTML
// preview into a per-run folder under the output directory.
type Assembler struct {
	outputDir string
	now       func() time.Time
}

func NewAssembler(outputDir string) *Assembler {
	return &Assembler{outputDir: outputDir, now: time.Now}
}

// WithClock overrides the timestamp source used for folder names.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

var unsafePathChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Assemble writes the artifact folder and returns its layout. Images
// whose illustration failed get a placeholder note in the markdown
// instead of an image link.
func (a *Assembler) Assemble(draft *story.Draft, batch []scenes.Scene, illustrations []imagegen.Illustration, warnings []string) (*StoryArtifact, error) {
	title := draft.Title()
	folder := filepath.Join(a.outputDir, folderName(title, a.now()))
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact folder: %w", err)
	}

	artifact := &StoryArtifact{
		Title:      title,
		FolderPath: folder,
		Warnings:   warnings,
	}

	imageFiles := make(map[int]string, len(illustrations))
	for _, ill := range illustrations {
		if ill.Status != imagegen.StatusReady {
			continue
		}
		name := fmt.Sprintf("image_%02d.png", ill.SceneIndex+1)
		path := filepath.Join(folder, name)
		if err := writeFileAtomic(path, ill.Bytes); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		imageFiles[ill.SceneIndex] = name
		artifact.ImagePaths = append(artifact.ImagePaths, path)
	}

	markdown := renderMarkdown(draft, batch, imageFiles, warnings)
	mdPath := filepath.Join(folder, "story.md")
	if err := writeFileAtomic(mdPath, []byte(markdown)); err != nil {
		return nil, fmt.Errorf("failed to write story.md: %w", err)
	}
	artifact.MarkdownPath = mdPath

	html, err := mdToHTML(markdown)
	if err != nil {
		return nil, fmt.Errorf("failed to render HTML preview: %w", err)
	}
	htmlPath := filepath.Join(folder, "story.html")
	if err := writeFileAtomic(htmlPath, []byte(html)); err != nil {
		return nil, fmt.Errorf("failed to write story.html: %w", err)
	}
	artifact.HTMLPath = htmlPath

	logger.Info("Artifact assembled", logger.Fields{
		"folder": folder,
		"images": len(artifact.ImagePaths),
	})
	return artifact, nil
}

// folderName sanitizes the title and suffixes a timestamp so repeated
// runs never collide.
func folderName(title string, now time.Time) string {
	slug := unsafePathChars.ReplaceAllString(strings.ReplaceAll(title, " ", "_"), "")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "story"
	}
	if len(slug) > 60 {
		slug = slug[:60]
	}
	return fmt.Sprintf("%s_%s", slug, now.Format("20060102_150405"))
}

// renderMarkdown interleaves images into the story body at their
// scene anchors. Anchors past the last paragraph attach to the final
// one.
func renderMarkdown(draft *story.Draft, batch []scenes.Scene, imageFiles map[int]string, warnings []string) string {
	paragraphs := draft.Paragraphs()

	byAnchor := make(map[int][]scenes.Scene)
	for _, s := range batch {
		anchor := s.Anchor
		if anchor >= len(paragraphs) {
			anchor = len(paragraphs) - 1
		}
		if anchor < 0 {
			anchor = 0
		}
		byAnchor[anchor] = append(byAnchor[anchor], s)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", draft.Title())
	for i, paragraph := range paragraphs {
		b.WriteString("\n")
		b.WriteString(paragraph)
		b.WriteString("\n")
		for _, s := range byAnchor[i] {
			b.WriteString("\n")
			if name, ok := imageFiles[s.Index]; ok {
				fmt.Fprintf(&b, "![%s](%s)\n", s.Description, name)
			} else {
				fmt.Fprintf(&b, "*Illustration unavailable: %s*\n", s.Description)
			}
		}
	}

	if len(warnings) > 0 {
		b.WriteString("\n---\n\n## Notes\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "\n- %s\n", w)
		}
	}
	return b.String()
}

func mdToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// writeFileAtomic writes to a temp file in the target directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
