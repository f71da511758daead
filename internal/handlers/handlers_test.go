package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/delivery"
	"skillgoblin/internal/indexer"
)

// testEnv wires handlers over a real SQLite catalog and a temp content root.
type testEnv struct {
	h    *Handlers
	db   *database.Database
	orch *indexer.Orchestrator
	root string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tmp := t.TempDir()
	root := filepath.Join(tmp, "content")
	require.NoError(t, os.MkdirAll(root, 0o755))

	db, err := database.New(context.Background(), filepath.Join(tmp, database.FileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	paths := course.NewPaths(root)
	orch := indexer.NewOrchestrator(db, paths)
	t.Cleanup(orch.Stop)

	cfg := delivery.DefaultConfig()
	cfg.SweepInterval = 0
	cfg.PlaceholderPath = filepath.Join(tmp, "missing-placeholder.png")
	engine := delivery.New(cfg, db, paths, nil)
	t.Cleanup(engine.Stop)

	return &testEnv{h: New(db, orch, engine), db: db, orch: orch, root: root}
}

func (e *testEnv) writeFile(t *testing.T, rel string, data []byte) {
	t.Helper()
	full := filepath.Join(e.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

// addCourse creates a course folder with the given files and stores it.
func (e *testEnv) addCourse(t *testing.T, folder string, files ...string) *course.Course {
	t.Helper()
	for _, f := range files {
		e.writeFile(t, folder+"/"+f, []byte("data of "+f))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(e.root, folder), 0o755))
	doc, err := e.orch.ScanCourse(context.Background(), folder, false)
	require.NoError(t, err)
	return doc
}

func serve(handler http.HandlerFunc, req *http.Request, vars map[string]string) *httptest.ResponseRecorder {
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decodeBody(t, w, &body)
	return body["error"]
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func editRequest(t *testing.T, courseJSON string, thumb []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("course", courseJSON))
	if thumb != nil {
		part, err := mw.CreateFormFile("thumbnail", "cover.png")
		require.NoError(t, err)
		_, err = part.Write(thumb)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/courses/edit", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestListCourses(t *testing.T) {
	env := newTestEnv(t)

	w := serve(env.h.ListCourses, httptest.NewRequest(http.MethodGet, "/api/courses", http.NoBody), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	env.addCourse(t, "Rust", "01 intro.mp4")
	env.addCourse(t, "Go Basics", "01 hello.mp4")

	w = serve(env.h.ListCourses, httptest.NewRequest(http.MethodGet, "/api/courses", http.NoBody), nil)
	var courses []course.Course
	decodeBody(t, w, &courses)
	require.Len(t, courses, 2)
	assert.Equal(t, "go-basics", courses[0].ID)
	assert.Equal(t, "rust", courses[1].ID)
}

func TestGetCourse(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Go Basics", "01 hello.mp4")

	w := serve(env.h.GetCourse, httptest.NewRequest(http.MethodGet, "/api/courses/go-basics", http.NoBody),
		map[string]string{"id": "go-basics"})
	require.Equal(t, http.StatusOK, w.Code)

	var doc course.Course
	decodeBody(t, w, &doc)
	assert.Equal(t, "Go Basics", doc.Title)
	require.Len(t, doc.Lessons, 1)
	assert.Equal(t, course.MainContentID, doc.Lessons[0].ID)
}

func TestGetCourseDiscoversFolderOnMiss(t *testing.T) {
	env := newTestEnv(t)
	env.writeFile(t, "New Course!/01 start.mp4", []byte("v"))

	w := serve(env.h.GetCourse, httptest.NewRequest(http.MethodGet, "/api/courses/new-course", http.NoBody),
		map[string]string{"id": "new-course"})
	require.Equal(t, http.StatusOK, w.Code)

	var doc course.Course
	decodeBody(t, w, &doc)
	assert.Equal(t, "New Course!", doc.Title)

	stored, err := env.db.GetCourse(context.Background(), "new-course")
	require.NoError(t, err)
	assert.Equal(t, "New Course!", stored.Title)
}

func TestGetCourseNotFound(t *testing.T) {
	env := newTestEnv(t)

	w := serve(env.h.GetCourse, httptest.NewRequest(http.MethodGet, "/api/courses/nope", http.NoBody),
		map[string]string{"id": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Course not found", errorMessage(t, w))
}

func TestRefreshCoursePreservesEdits(t *testing.T) {
	env := newTestEnv(t)
	doc := env.addCourse(t, "Go Basics", "01 hello.mp4")

	doc.Title = "Go for Everyone"
	require.NoError(t, env.db.SaveEdit(context.Background(), doc, nil))
	env.writeFile(t, "Go Basics/02 more.mp4", []byte("v"))

	w := serve(env.h.RefreshCourse, httptest.NewRequest(http.MethodPost, "/api/courses/go-basics/refresh", http.NoBody),
		map[string]string{"id": "go-basics"})
	require.Equal(t, http.StatusOK, w.Code)

	var refreshed course.Course
	decodeBody(t, w, &refreshed)
	assert.Equal(t, "Go for Everyone", refreshed.Title)
	require.Len(t, refreshed.Lessons, 1)
	assert.Len(t, refreshed.Lessons[0].Videos, 2)
}

func TestRefreshCourseUnlinkedRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	doc := env.addCourse(t, "Go Basics", "01 hello.mp4")

	// rows from older catalogs have no folder name
	doc.Title = "Go for Everyone"
	_, err := env.db.UpsertCourse(ctx, doc, "", true)
	require.NoError(t, err)

	w := serve(env.h.RefreshCourse, httptest.NewRequest(http.MethodPost, "/api/courses/go-basics/refresh", http.NoBody),
		map[string]string{"id": "go-basics"})
	require.Equal(t, http.StatusOK, w.Code)

	var refreshed course.Course
	decodeBody(t, w, &refreshed)
	assert.Equal(t, "Go for Everyone", refreshed.Title)

	folder, err := env.db.GetFolderName(ctx, "go-basics")
	require.NoError(t, err)
	assert.Equal(t, "Go Basics", folder, "refresh links the row to its folder")

	// no folder derives the id of this row
	orphan := *doc
	orphan.ID = "orphan"
	_, err = env.db.UpsertCourse(ctx, &orphan, "", true)
	require.NoError(t, err)

	w = serve(env.h.RefreshCourse, httptest.NewRequest(http.MethodPost, "/", http.NoBody),
		map[string]string{"id": "orphan"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Course folder not found", errorMessage(t, w))
}

func TestRefreshCourseErrors(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Gone", "01 a.mp4")
	require.NoError(t, os.RemoveAll(filepath.Join(env.root, "Gone")))

	tests := []struct {
		name    string
		id      string
		message string
	}{
		{"unknown course", "nope", "Course not found"},
		{"folder deleted", "gone", "Course directory not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(env.h.RefreshCourse, httptest.NewRequest(http.MethodPost, "/", http.NoBody),
				map[string]string{"id": tt.id})
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Equal(t, tt.message, errorMessage(t, w))
		})
	}
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for folder, category := range map[string]string{"A": "Web", "B": "Systems", "C": "Web"} {
		doc := env.addCourse(t, folder, "01 x.mp4")
		doc.Category = category
		require.NoError(t, env.db.SaveEdit(ctx, doc, nil))
	}

	w := serve(env.h.ListCategories, httptest.NewRequest(http.MethodGet, "/api/categories", http.NoBody), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["Systems","Web"]`, w.Body.String())
}

func TestEditCourseWithThumbnail(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Go Basics", "01 hello.mp4")

	req := editRequest(t, `{"id":"go-basics","title":"Go, Properly","description":"d","category":"Systems","releaseDate":"2024-01-02"}`,
		pngBytes(t, 640, 640))
	w := serve(env.h.EditCourse, req, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp editResponse
	decodeBody(t, w, &resp)
	assert.True(t, resp.Success)
	assert.True(t, resp.DatabaseUpdated)
	assert.Equal(t, "Course saved successfully", resp.Message)
	assert.Equal(t, "Go, Properly", resp.Course.Title)
	assert.Equal(t, course.ThumbnailFile, resp.Course.Thumbnail)

	rec, err := env.db.GetCourseRecord(context.Background(), "go-basics")
	require.NoError(t, err)
	assert.Equal(t, "Systems", rec.Category)
	assert.Equal(t, "2024-01-02", rec.ReleaseDate)

	blob, err := env.db.GetThumbnail(context.Background(), "go-basics")
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(blob))
	require.NoError(t, err)
	assert.Equal(t, 480, cfg.Width)
	assert.Equal(t, 270, cfg.Height)

	onDisk, err := os.ReadFile(filepath.Join(env.root, "Go Basics", course.ThumbnailFile))
	require.NoError(t, err)
	assert.Equal(t, blob, onDisk)
}

func TestEditCourseKeepsThumbnailWhenNoneSent(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Rust", "01 a.mp4")
	require.NoError(t, env.db.SetThumbnail(context.Background(), "rust", []byte("existing")))

	w := serve(env.h.EditCourse, editRequest(t, `{"id":"rust","title":"Rust 2"}`, nil), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	blob, err := env.db.GetThumbnail(context.Background(), "rust")
	require.NoError(t, err)
	assert.Equal(t, "existing", string(blob))
}

func TestEditCourseRejects(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Rust", "01 a.mp4")

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"missing title", editRequest(t, `{"id":"rust"}`, nil), http.StatusBadRequest},
		{"missing id", editRequest(t, `{"title":"x"}`, nil), http.StatusBadRequest},
		{"bad json", editRequest(t, `{`, nil), http.StatusBadRequest},
		{"unknown course", editRequest(t, `{"id":"nope","title":"x"}`, nil), http.StatusNotFound},
		{"not an image", editRequest(t, `{"id":"rust","title":"x"}`, []byte("not a png")), http.StatusBadRequest},
		{"not multipart", httptest.NewRequest(http.MethodPost, "/api/courses/edit", bytes.NewBufferString("{}")), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(env.h.EditCourse, tt.req, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	doc, err := env.db.GetCourse(context.Background(), "rust")
	require.NoError(t, err)
	assert.Equal(t, "Rust", doc.Title)
}

func TestGetCourseThumbnail(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Rust", "01 a.mp4")

	w := serve(env.h.GetCourseThumbnail, httptest.NewRequest(http.MethodGet, "/api/course-thumbnail/rust", http.NoBody),
		map[string]string{"id": "rust"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	// an edit must not be hidden behind the cached placeholder
	w = serve(env.h.EditCourse, editRequest(t, `{"id":"rust","title":"Rust"}`, pngBytes(t, 100, 100)), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(env.h.GetCourseThumbnail, httptest.NewRequest(http.MethodGet, "/api/course-thumbnail/rust", http.NoBody),
		map[string]string{"id": "rust"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))

	blob, err := env.db.GetThumbnail(context.Background(), "rust")
	require.NoError(t, err)
	assert.Equal(t, blob, w.Body.Bytes())
}

func TestServeContent(t *testing.T) {
	env := newTestEnv(t)
	env.addCourse(t, "Go Basics", "01 hello world.mp4")

	req := httptest.NewRequest(http.MethodGet, "/api/content/go-basics/01%20hello%20world.mp4", http.NoBody)
	w := serve(env.h.ServeContent, req, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "data of 01 hello world.mp4", string(body))
	assert.Equal(t, "video/mp4", w.Header().Get("Content-Type"))

	req = httptest.NewRequest(http.MethodGet, "/api/content/go-basics/..%2F..%2Fetc%2Fpasswd", http.NoBody)
	w = serve(env.h.ServeContent, req, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
