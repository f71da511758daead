package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/thumbnail"
)

const (
	// maxThumbnailUpload is the largest accepted thumbnail file.
	maxThumbnailUpload = 10 << 20
	// maxEditBody leaves room for the form fields next to the thumbnail.
	maxEditBody = maxThumbnailUpload + 1<<20
)

// ListCourses returns every course document sorted by title.
func (h *Handlers) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.db.ListCourses(r.Context())
	if err != nil {
		logging.Error("Failed to list courses: %v", err)
		writeJSONError(w, "Failed to fetch courses", http.StatusInternalServerError)
		return
	}
	if courses == nil {
		courses = []*course.Course{}
	}
	writeJSONOK(w, courses)
}

// GetCourse returns one course document. A course that is on disk but not
// yet in the catalog is scanned and stored on the spot.
func (h *Handlers) GetCourse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	doc, err := h.db.GetCourse(ctx, id)
	if err == nil {
		writeJSONOK(w, doc)
		return
	}
	if !errors.Is(err, database.ErrCourseNotFound) {
		logging.Error("Failed to retrieve course %s: %v", id, err)
		writeJSONError(w, "Failed to retrieve course", http.StatusInternalServerError)
		return
	}

	folder, err := h.paths.FindFolderBySlug(id)
	if err != nil {
		if !errors.Is(err, course.ErrFolderNotFound) {
			logging.Warn("Slug lookup for %s failed: %v", id, err)
		}
		writeJSONError(w, "Course not found", http.StatusNotFound)
		return
	}

	doc, err = h.orch.ScanCourse(ctx, folder, false)
	if err != nil {
		logging.Error("Failed to scan course folder %q: %v", folder, err)
		writeJSONError(w, "Failed to retrieve course", http.StatusInternalServerError)
		return
	}
	logging.Info("Course %s discovered on request (folder %q)", id, folder)
	writeJSONOK(w, doc)
}

// RefreshCourse rescans one stored course, keeping its edited metadata.
func (h *Handlers) RefreshCourse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	folder, ok := h.lookupFolder(w, r, id)
	if !ok {
		return
	}

	info, err := filesystem.StatWithRetry(h.paths.CourseRoot(folder), h.retry)
	if err != nil || !info.IsDir() {
		writeJSONError(w, "Course directory not found", http.StatusNotFound)
		return
	}

	doc, err := h.orch.ScanCourse(ctx, folder, true)
	if err != nil {
		logging.Error("Failed to refresh course %s: %v", id, err)
		writeJSONError(w, "Failed to refresh course data", http.StatusInternalServerError)
		return
	}
	h.engine.InvalidateThumbnail(id)
	writeJSONOK(w, doc)
}

// ListCategories returns the distinct course categories.
func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.db.ListCategories(r.Context())
	if err != nil {
		logging.Error("Failed to list categories: %v", err)
		writeJSONError(w, "Failed to fetch categories", http.StatusInternalServerError)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	writeJSONOK(w, categories)
}

// GetCourseThumbnail serves the stored thumbnail of a course.
func (h *Handlers) GetCourseThumbnail(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeCourseThumbnail(w, r, mux.Vars(r)["id"])
}

type courseEdit struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ReleaseDate string `json:"releaseDate"`
}

type editResponse struct {
	Success         bool           `json:"success"`
	Message         string         `json:"message"`
	Course          *course.Course `json:"course"`
	DatabaseUpdated bool           `json:"databaseUpdated"`
}

// EditCourse applies edited metadata and an optional new thumbnail. The
// thumbnail is written to the catalog and the course folder together.
func (h *Handlers) EditCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, maxEditBody)

	if err := r.ParseMultipartForm(maxEditBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, "Upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		writeJSONError(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	var edit courseEdit
	if err := json.Unmarshal([]byte(r.FormValue("course")), &edit); err != nil {
		writeJSONError(w, "Invalid course data", http.StatusBadRequest)
		return
	}
	if edit.ID == "" || edit.Title == "" {
		writeJSONError(w, "Course ID and title are required", http.StatusBadRequest)
		return
	}

	thumb, err := readThumbnailUpload(r)
	if err != nil {
		logging.Warn("Rejected thumbnail for %s: %v", edit.ID, err)
		writeJSONError(w, "Invalid thumbnail image", http.StatusBadRequest)
		return
	}

	doc, err := h.db.GetCourse(ctx, edit.ID)
	if err != nil {
		if errors.Is(err, database.ErrCourseNotFound) {
			writeJSONError(w, "Course not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to load course %s for edit: %v", edit.ID, err)
		writeJSONError(w, "Failed to save course", http.StatusInternalServerError)
		return
	}

	doc.Title = edit.Title
	doc.Description = edit.Description
	doc.Category = edit.Category
	doc.ReleaseDate = edit.ReleaseDate
	doc.Thumbnail = course.ThumbnailFile
	doc.Touch(time.Now())

	if err := h.db.SaveEdit(ctx, doc, thumb); err != nil {
		logging.Error("Failed to save course %s: %v", edit.ID, err)
		writeJSONError(w, "Failed to save course", http.StatusInternalServerError)
		return
	}

	if thumb != nil {
		h.exportThumbnail(r, doc.ID, thumb)
	}
	h.engine.InvalidateThumbnail(doc.ID)

	logging.Info("Course %s edited (new thumbnail: %v)", doc.ID, thumb != nil)
	writeJSONOK(w, editResponse{
		Success:         true,
		Message:         "Course saved successfully",
		Course:          doc,
		DatabaseUpdated: true,
	})
}

// readThumbnailUpload returns the normalised thumbnail of the edit form, or
// nil when none was sent.
func readThumbnailUpload(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile("thumbnail")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if header.Size > maxThumbnailUpload {
		return nil, errors.New("thumbnail exceeds 10MB")
	}
	raw, err := io.ReadAll(io.LimitReader(file, maxThumbnailUpload+1))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return thumbnail.Normalize(raw)
}

// exportThumbnail mirrors an edited thumbnail into the course folder. The
// catalog already holds it, so a failed write is only logged.
func (h *Handlers) exportThumbnail(r *http.Request, id string, data []byte) {
	folder, err := h.db.GetFolderName(r.Context(), id)
	if err != nil || folder == "" {
		logging.Warn("No folder for course %s, thumbnail kept in catalog only", id)
		return
	}
	if err := h.thumbs.Export(folder, data); err != nil {
		logging.Warn("Failed to write thumbnail file for %s: %v", id, err)
	}
}

// lookupFolder resolves a course id to its folder, writing the error
// response itself when that fails. Rows without a folder name are matched
// to a folder by slug.
func (h *Handlers) lookupFolder(w http.ResponseWriter, r *http.Request, id string) (string, bool) {
	folder, err := h.db.GetFolderName(r.Context(), id)
	switch {
	case errors.Is(err, database.ErrCourseNotFound):
		writeJSONError(w, "Course not found", http.StatusNotFound)
		return "", false
	case err != nil:
		logging.Error("Failed to look up folder of %s: %v", id, err)
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return "", false
	case folder != "":
		return folder, true
	}

	folder, err = h.paths.FindFolderBySlug(id)
	switch {
	case errors.Is(err, course.ErrFolderNotFound):
		writeJSONError(w, "Course folder not found", http.StatusNotFound)
		return "", false
	case err != nil:
		logging.Error("Failed to find folder of %s by slug: %v", id, err)
		writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return "", false
	}
	return folder, true
}
