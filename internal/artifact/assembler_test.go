package artifact

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fableforge/fableforge/internal/imagegen"
	"github.com/fableforge/fableforge/internal/scenes"
	"github.com/fableforge/fableforge/internal/story"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() func() time.Time {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return ts }
}

func sampleDraft() *story.Draft {
	return &story.Draft{Text: "# The Brave Little Boat\n\n" +
		"A little boat lived in the harbor.\n\n" +
		"One day a storm rolled in.\n\n" +
		"The boat sailed home safely."}
}

func TestAssembleWritesFolderAndFiles(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir).WithClock(fixedClock())

	batch := []scenes.Scene{
		{Index: 0, Description: "A little boat in a sunny harbor", Anchor: 0},
		{Index: 1, Description: "Dark storm clouds over the water", Anchor: 1},
	}
	illustrations := []imagegen.Illustration{
		{SceneIndex: 0, Bytes: []byte("png-0"), Status: imagegen.StatusReady},
		{SceneIndex: 1, Bytes: []byte("png-1"), Status: imagegen.StatusReady},
	}

	artifact, err := a.Assemble(sampleDraft(), batch, illustrations, nil)
	require.NoError(t, err)

	assert.Equal(t, "The Brave Little Boat", artifact.Title)
	assert.Equal(t, filepath.Join(dir, "The_Brave_Little_Boat_20260314_092653"), artifact.FolderPath)
	require.Len(t, artifact.ImagePaths, 2)

	data, err := os.ReadFile(artifact.ImagePaths[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("png-0"), data)
	assert.Equal(t, "image_01.png", filepath.Base(artifact.ImagePaths[0]))
	assert.Equal(t, "image_02.png", filepath.Base(artifact.ImagePaths[1]))

	md, err := os.ReadFile(artifact.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	assert.True(t, strings.HasPrefix(text, "# The Brave Little Boat\n"))
	assert.Contains(t, text, "![A little boat in a sunny harbor](image_01.png)")
	assert.Contains(t, text, "![Dark storm clouds over the water](image_02.png)")

	// Image for anchor 0 appears after the first paragraph, before the second.
	first := strings.Index(text, "A little boat lived in the harbor.")
	img := strings.Index(text, "image_01.png")
	second := strings.Index(text, "One day a storm rolled in.")
	assert.Less(t, first, img)
	assert.Less(t, img, second)

	html, err := os.ReadFile(artifact.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1>The Brave Little Boat</h1>")
	assert.Contains(t, string(html), "<img src=\"image_01.png\"")
}

func TestAssembleFailedIllustrationGetsPlaceholder(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir).WithClock(fixedClock())

	batch := []scenes.Scene{
		{Index: 0, Description: "Harbor at dawn", Anchor: 0},
		{Index: 1, Description: "Storm at sea", Anchor: 2},
	}
	illustrations := []imagegen.Illustration{
		{SceneIndex: 0, Bytes: []byte("png-0"), Status: imagegen.StatusReady},
		{SceneIndex: 1, Status: imagegen.StatusFailed},
	}

	artifact, err := a.Assemble(sampleDraft(), batch, illustrations, nil)
	require.NoError(t, err)
	require.Len(t, artifact.ImagePaths, 1)

	md, err := os.ReadFile(artifact.MarkdownPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "*Illustration unavailable: Storm at sea*")
	assert.NotContains(t, string(md), "image_02.png")
}

func TestAssembleClampsAnchorPastEnd(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir).WithClock(fixedClock())

	batch := []scenes.Scene{{Index: 0, Description: "Finale", Anchor: 99}}
	illustrations := []imagegen.Illustration{
		{SceneIndex: 0, Bytes: []byte("png"), Status: imagegen.StatusReady},
	}

	artifact, err := a.Assemble(sampleDraft(), batch, illustrations, nil)
	require.NoError(t, err)

	md, err := os.ReadFile(artifact.MarkdownPath)
	require.NoError(t, err)
	text := string(md)
	last := strings.Index(text, "The boat sailed home safely.")
	img := strings.Index(text, "image_01.png")
	assert.Less(t, last, img)
}

func TestAssembleSameInputsTwiceProducesIdenticalContent(t *testing.T) {
	dir := t.TempDir()

	batch := []scenes.Scene{
		{Index: 0, Description: "A little boat in a sunny harbor", Anchor: 0},
	}
	illustrations := []imagegen.Illustration{
		{SceneIndex: 0, Bytes: []byte("png-0"), Status: imagegen.StatusReady},
	}

	first, err := NewAssembler(dir).WithClock(fixedClock()).
		Assemble(sampleDraft(), batch, illustrations, nil)
	require.NoError(t, err)

	later := time.Date(2026, 3, 14, 9, 27, 12, 0, time.UTC)
	second, err := NewAssembler(dir).WithClock(func() time.Time { return later }).
		Assemble(sampleDraft(), batch, illustrations, nil)
	require.NoError(t, err)

	// Timestamped folder names keep reruns from clobbering each other.
	assert.NotEqual(t, first.FolderPath, second.FolderPath)

	firstMd, err := os.ReadFile(first.MarkdownPath)
	require.NoError(t, err)
	secondMd, err := os.ReadFile(second.MarkdownPath)
	require.NoError(t, err)
	assert.Equal(t, firstMd, secondMd)

	require.Len(t, first.ImagePaths, 1)
	require.Len(t, second.ImagePaths, 1)
	firstImg, err := os.ReadFile(first.ImagePaths[0])
	require.NoError(t, err)
	secondImg, err := os.ReadFile(second.ImagePaths[0])
	require.NoError(t, err)
	assert.Equal(t, firstImg, secondImg)
}

func TestAssembleWarningsSection(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir).WithClock(fixedClock())

	artifact, err := a.Assemble(sampleDraft(), nil, nil, []string{"story was revised for content"})
	require.NoError(t, err)

	md, err := os.ReadFile(artifact.MarkdownPath)
	require.NoError(t, err)
	assert.Contains(t, string(md), "## Notes")
	assert.Contains(t, string(md), "- story was revised for content")
	assert.Equal(t, []string{"story was revised for content"}, artifact.Warnings)
}

func TestFolderNameSanitization(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "Mias_Day_Out_20260102_030405", folderName("Mia's Day Out!", ts))
	assert.Equal(t, "story_20260102_030405", folderName("!!!", ts))

	long := strings.Repeat("Very Long Title ", 10)
	name := folderName(long, ts)
	assert.LessOrEqual(t, len(name), 60+1+15)
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	dir := t.TempDir()
	a := NewAssembler(dir).WithClock(fixedClock())

	artifact, err := a.Assemble(sampleDraft(), nil, nil, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(artifact.FolderPath)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".tmp-"), "stray temp file %s", e.Name())
	}
}
