package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
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

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	root string
	db   *database.Database
	orch *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), database.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &fixture{root: root, db: db, orch: NewOrchestrator(db, course.NewPaths(root))}
}

func TestFullScanImportsCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{
		"Go Basics/01_intro.mp4":        "v",
		"Go Basics/1 Setup/install.mp4": "v",
		"Rust 101/2 Ownership/move.mp4": "v",
		".trash/old/video.mp4":          "v",
	})
	thumb := pngBytes(t, 64, 64)
	require.NoError(t, os.WriteFile(filepath.Join(f.root, "Go Basics", course.ThumbnailFile), thumb, 0o644))

	require.NoError(t, f.orch.FullScan(ctx, true, true))

	s := f.orch.Status().Snapshot()
	assert.True(t, s.Complete)
	assert.False(t, s.InProgress)
	assert.Equal(t, 2, s.TotalCourses)
	assert.Equal(t, 2, s.ProcessedCourses)
	assert.True(t, f.orch.Status().Ready())

	count, err := f.db.CourseCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	doc, err := f.db.GetCourse(ctx, "go-basics")
	require.NoError(t, err)
	require.Len(t, doc.Lessons, 2)

	folder, err := f.db.GetFolderName(ctx, "rust-101")
	require.NoError(t, err)
	assert.Equal(t, "Rust 101", folder)

	blob, err := f.db.GetThumbnail(ctx, "go-basics")
	require.NoError(t, err)
	assert.NotEmpty(t, blob, "thumbnail file should be imported")

	blob, err = f.db.GetThumbnail(ctx, "rust-101")
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestFullScanSkipsWhenCatalogPopulated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{"Go Basics/01_intro.mp4": "v"})
	require.NoError(t, f.orch.FullScan(ctx, true, true))

	// a course added now is not picked up by a non-forced scan
	writeTree(t, f.root, map[string]string{"Rust/01.mp4": "v"})
	require.NoError(t, f.orch.FullScan(ctx, false, true))

	s := f.orch.Status().Snapshot()
	assert.True(t, s.Complete)
	assert.True(t, s.Skipped)
	assert.Equal(t, 1, s.TotalCourses)

	_, err := f.db.GetCourse(ctx, "rust")
	assert.ErrorIs(t, err, database.ErrCourseNotFound)
}

func TestFullScanNonForcedOnEmptyCatalogRuns(t *testing.T) {
	f := newFixture(t)
	writeTree(t, f.root, map[string]string{"Go Basics/01_intro.mp4": "v"})

	require.NoError(t, f.orch.FullScan(context.Background(), false, true))

	s := f.orch.Status().Snapshot()
	assert.False(t, s.Skipped)
	assert.Equal(t, 1, s.ProcessedCourses)
}

func TestFullScanPreservesEditedMetadata(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{"go-basics/01_intro.mp4": "v"})
	require.NoError(t, f.orch.FullScan(ctx, true, true))

	doc, err := f.db.GetCourse(ctx, "go-basics")
	require.NoError(t, err)
	doc.Title = "Custom Title"
	doc.Category = "Programming"
	require.NoError(t, f.db.SaveEdit(ctx, doc, nil))

	writeTree(t, f.root, map[string]string{"go-basics/02_next.mp4": "v"})
	require.NoError(t, f.orch.FullScan(ctx, true, true))

	doc, err = f.db.GetCourse(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, "Custom Title", doc.Title)
	assert.Equal(t, "Programming", doc.Category)
	require.Len(t, doc.Lessons, 1)
	assert.Len(t, doc.Lessons[0].Videos, 2, "structure must follow the filesystem")

	// without preservation the scan resets the editable fields
	require.NoError(t, f.orch.FullScan(ctx, true, false))
	doc, err = f.db.GetCourse(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, "go-basics", doc.Title)
	assert.Equal(t, course.DefaultCategory, doc.Category)
}

func TestFullScanRoundTripIsStable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{
		"Go Basics/01_intro.mp4":         "v",
		"Go Basics/01_intro.en.vtt":      "WEBVTT",
		"Go Basics/2 Types/01_ints.mp4":  "v",
		"Go Basics/2 Types/01_ints.srt":  "1\n00:00:01,000 --> 00:00:02,000\nhi\n",
		"Go Basics/10 Extra/README.md":   "#",
		"Go Basics/10 Extra/generic.mp4": "v",
	})

	require.NoError(t, f.orch.FullScan(ctx, true, true))
	first, err := f.db.GetCourse(ctx, "go-basics")
	require.NoError(t, err)

	require.NoError(t, f.orch.FullScan(ctx, true, true))
	second, err := f.db.GetCourse(ctx, "go-basics")
	require.NoError(t, err)

	first.LastUpdate, second.LastUpdate = 0, 0
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.JSONEq(t, string(a), string(b))
}

func TestFullScanRemovesVanishedCourses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{
		"Go Basics/01_intro.mp4": "v",
		"Rust/01.mp4":            "v",
	})
	require.NoError(t, f.orch.FullScan(ctx, true, true))

	user, err := f.db.CreateUser(ctx, "alice", "", false)
	require.NoError(t, err)
	require.NoError(t, f.db.SetUserProgress(ctx, user.ID, json.RawMessage(`{"rust":{"01":true},"go-basics":{}}`)))

	require.NoError(t, os.RemoveAll(filepath.Join(f.root, "Rust")))
	require.NoError(t, f.orch.FullScan(ctx, true, true))

	_, err = f.db.GetCourse(ctx, "rust")
	assert.ErrorIs(t, err, database.ErrCourseNotFound)

	raw, err := f.db.GetUserProgress(ctx, user.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"go-basics":{}}`, string(raw))
}

func TestFullScanContinuesPastBrokenCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{
		"!!!/01.mp4":             "v", // derives an empty id
		"Go Basics/01_intro.mp4": "v",
	})

	require.NoError(t, f.orch.FullScan(ctx, true, true))

	s := f.orch.Status().Snapshot()
	assert.True(t, s.Complete)
	assert.Equal(t, 2, s.ProcessedCourses, "failed courses still count as processed")

	count, err := f.db.CourseCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFullScanFailsWithoutContentRoot(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.RemoveAll(f.root))

	err := f.orch.FullScan(context.Background(), true, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentRoot)

	s := f.orch.Status().Snapshot()
	assert.True(t, s.Failed())
	assert.False(t, s.InProgress)
	assert.False(t, s.Complete)
	assert.NotEmpty(t, s.Error)
}

func TestFullScanAfterFailureIsNotSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{"Go Basics/01_intro.mp4": "v"})
	require.NoError(t, f.orch.FullScan(ctx, true, true))

	moved := f.root + ".offline"
	require.NoError(t, os.Rename(f.root, moved))
	require.ErrorIs(t, f.orch.FullScan(ctx, true, true), ErrContentRoot)
	require.True(t, f.orch.Status().Snapshot().Failed())

	require.NoError(t, os.Rename(moved, f.root))
	writeTree(t, f.root, map[string]string{"Rust/01.mp4": "v"})
	require.NoError(t, f.orch.FullScan(ctx, false, true))

	s := f.orch.Status().Snapshot()
	assert.True(t, s.Complete)
	assert.False(t, s.Skipped, "a populated catalog does not hide the failed run")
	assert.Equal(t, 2, s.ProcessedCourses)

	_, err := f.db.GetCourse(ctx, "rust")
	assert.NoError(t, err)
}

func TestFullScanRefusedWhileRunning(t *testing.T) {
	f := newFixture(t)

	runID, ok := f.orch.Status().Start(false, true)
	require.True(t, ok)

	err := f.orch.FullScan(context.Background(), false, true)
	assert.True(t, errors.Is(err, ErrScanInProgress))

	f.orch.Status().Complete(runID)
}

func TestStartFullScanRunsInBackground(t *testing.T) {
	f := newFixture(t)
	writeTree(t, f.root, map[string]string{"Go Basics/01_intro.mp4": "v"})

	done := make(chan Status, 1)
	f.orch.SetOnScanComplete(func(s Status) { done <- s })

	snap, err := f.orch.StartFullScan(true, true)
	require.NoError(t, err)
	assert.NotEmpty(t, snap.RunID)

	s := <-done
	assert.True(t, s.Complete)
	assert.Equal(t, snap.RunID, s.RunID)
	f.orch.Stop()
}

func TestScanCourseAndRemoveCourse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	writeTree(t, f.root, map[string]string{"Go Basics/01_intro.mp4": "v"})

	doc, err := f.orch.ScanCourse(ctx, "Go Basics", false)
	require.NoError(t, err)
	assert.Equal(t, "go-basics", doc.ID)

	doc.Title = "Edited"
	require.NoError(t, f.db.SaveEdit(ctx, doc, nil))

	doc, err = f.orch.ScanCourse(ctx, "Go Basics", true)
	require.NoError(t, err)
	assert.Equal(t, "Edited", doc.Title)

	id, err := f.orch.RemoveCourse(ctx, "Go Basics")
	require.NoError(t, err)
	assert.Equal(t, "go-basics", id)

	_, err = f.orch.RemoveCourse(ctx, "Go Basics")
	assert.ErrorIs(t, err, database.ErrCourseNotFound)
}

func TestScanCourseMissingFolder(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.ScanCourse(context.Background(), "Nope", false)
	assert.Error(t, err)
}
