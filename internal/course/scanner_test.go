package course

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files (relative path -> contents) below root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	}
}

func newTestScanner(root string) *Scanner {
	s := NewScanner(NewPaths(root))
	s.now = func() time.Time { return time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestScanBuildsLessons(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Go Basics/00_welcome.mp4":             "v",
		"Go Basics/README.md":                  "readme",
		"Go Basics/10 Advanced/01_generics.mp4": "v",
		"Go Basics/2 Types/02_structs.mp4":      "v",
		"Go Basics/2 Types/01_ints.mp4":         "v",
		"Go Basics/2 Types/01_ints.es.vtt":      "WEBVTT",
		"Go Basics/2 Types/01_ints_cc.srt":      "1\n00:00:01,000 --> 00:00:02,000\nhi\n",
		"Go Basics/2 Types/readme.txt":          "notes",
		"Go Basics/1 Setup/install.mp4":         "v",
		"Go Basics/Resources/slides.pdf":        "pdf",
		"Go Basics/.hidden/secret.mp4":          "v",
	})

	c, err := newTestScanner(root).Scan(context.Background(), "Go Basics")
	require.NoError(t, err)

	assert.Equal(t, "go-basics", c.ID)
	assert.Equal(t, "Go Basics", c.Title)
	assert.Equal(t, "Course: Go Basics", c.Description)
	assert.Equal(t, ThumbnailFile, c.Thumbnail)
	assert.Equal(t, DefaultCategory, c.Category)
	assert.Equal(t, "2024-03-09", c.ReleaseDate)
	assert.Equal(t, time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC).UnixMilli(), c.LastUpdate)

	require.Len(t, c.Lessons, 4)
	assert.Equal(t, "1-setup", c.Lessons[0].ID)
	assert.Equal(t, "2-types", c.Lessons[1].ID)
	assert.Equal(t, "10-advanced", c.Lessons[2].ID)
	assert.Equal(t, MainContentID, c.Lessons[3].ID)

	main := c.Lessons[3]
	assert.Equal(t, "", main.Folder)
	assert.Equal(t, "README.md", main.Readme)
	require.Len(t, main.Videos, 1)
	assert.Equal(t, "00 welcome", main.Videos[0].Title)

	types := c.Lessons[1]
	assert.Equal(t, "2 Types", types.Folder)
	assert.Equal(t, "readme.txt", types.Readme)
	require.Len(t, types.Videos, 2)
	assert.Equal(t, "01_ints.mp4", types.Videos[0].File)
	assert.Equal(t, "02 structs", types.Videos[1].Title)
	assert.Empty(t, types.Videos[1].Subtitles)

	subs := types.Videos[0].Subtitles
	require.Len(t, subs, 2)
	assert.Equal(t, Subtitle{Label: "Spanish Subtitles", Kind: KindSubtitles, SrcLang: "es", Src: "01_ints.es.vtt"}, subs[0])
	assert.Equal(t, Subtitle{Label: "English Captions", Kind: KindCaptions, SrcLang: "en", Src: "01_ints_cc.vtt"}, subs[1])

	_, err = os.Stat(filepath.Join(root, "Go Basics", "2 Types", "01_ints_cc.vtt"))
	assert.NoError(t, err, "srt sidecar should be written")
}

func TestScanCaptionsMarkerIgnoresVideoName(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Finance/1 Ledgers/Accounting.mp4":    "v",
		"Finance/1 Ledgers/Accounting.de.vtt": "WEBVTT",
	})

	doc, err := newTestScanner(root).Scan(context.Background(), "Finance")
	require.NoError(t, err)
	require.Len(t, doc.Lessons, 1)
	require.Len(t, doc.Lessons[0].Videos, 1)

	subs := doc.Lessons[0].Videos[0].Subtitles
	require.Len(t, subs, 1)
	assert.Equal(t, Subtitle{Label: "German Subtitles", Kind: KindSubtitles, SrcLang: "de", Src: "Accounting.de.vtt"}, subs[0])
}

func TestScanRoundTripIsStable(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Course/1 a/01.mp4":    "v",
		"Course/1 a/01.en.srt": "1\n00:00:01,000 --> 00:00:02,000\nhi\n",
		"Course/intro.mp4":     "v",
	})
	s := newTestScanner(root)

	first, err := s.Scan(context.Background(), "Course")
	require.NoError(t, err)

	s.now = func() time.Time { return time.Date(2024, 3, 9, 13, 0, 0, 0, time.UTC) }
	second, err := s.Scan(context.Background(), "Course")
	require.NoError(t, err)

	assert.NotEqual(t, first.LastUpdate, second.LastUpdate)
	second.LastUpdate = first.LastUpdate

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestScanEmptyCourse(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"Empty/notes/readme.md": "nothing to watch",
	})

	c, err := newTestScanner(root).Scan(context.Background(), "Empty")
	require.NoError(t, err)
	assert.NotNil(t, c.Lessons)
	assert.Empty(t, c.Lessons)

	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"lessons":[]`)
}

func TestScanErrors(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"file.txt": "x"})
	s := newTestScanner(root)

	_, err := s.Scan(context.Background(), "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = s.Scan(context.Background(), "file.txt")
	assert.ErrorIs(t, err, os.ErrInvalid)

	_, err = s.Scan(context.Background(), "???")
	assert.ErrorIs(t, err, ErrEmptyID)
}

func TestScanHonoursCancellation(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"C/1 a/a.mp4": "v"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestScanner(root).Scan(ctx, "C")
	assert.ErrorIs(t, err, context.Canceled)
}
