package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/mediatypes"
	"skillgoblin/internal/streaming"
)

const rootGroupName = "Root Files"

// ignoredFiles never show up as course materials (lowercase).
var ignoredFiles = map[string]bool{
	course.ThumbnailFile: true,
	"course.json":        true,
	".ds_store":          true,
	"thumbs.db":          true,
}

// CourseFile is one downloadable course material.
type CourseFile struct {
	Name          string `json:"name"`
	Size          int64  `json:"size"`
	FormattedSize string `json:"formattedSize"`
	Extension     string `json:"extension"`
	DownloadPath  string `json:"downloadPath"`
}

// FileGroup collects the materials of one folder.
type FileGroup struct {
	FolderName             string       `json:"folderName"`
	RelativePathForDisplay string       `json:"relativePathForDisplay"`
	Files                  []CourseFile `json:"files"`
}

// CourseFilesResponse is the list-files payload.
type CourseFilesResponse struct {
	Success       bool        `json:"success"`
	CourseTitle   string      `json:"courseTitle"`
	FilesByFolder []FileGroup `json:"filesByFolder"`
}

// hiddenExtensions are playable through the lesson player, not downloads.
var hiddenExtensions = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
	".webm": true, ".flv": true, ".wmv": true, ".srt": true,
}

func isMaterial(name string) bool {
	if strings.HasPrefix(name, ".") || ignoredFiles[strings.ToLower(name)] {
		return false
	}
	return !hiddenExtensions[mediatypes.Ext(name)]
}

// ListCourseFiles lists the non-video files of a course grouped by folder.
func (h *Handlers) ListCourseFiles(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ctx := r.Context()

	rec, err := h.db.GetCourseRecord(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrCourseNotFound) {
			writeJSONError(w, "Course not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to load course %s: %v", id, err)
		writeJSONError(w, "Failed to list course files", http.StatusInternalServerError)
		return
	}
	if rec.FolderName == "" {
		writeJSONError(w, "Course folder not found", http.StatusNotFound)
		return
	}

	groups, err := h.collectMaterials(h.paths.CourseRoot(rec.FolderName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, "Course folder not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to walk course %s: %v", id, err)
		writeJSONError(w, "Failed to list course files", http.StatusInternalServerError)
		return
	}

	writeJSONOK(w, CourseFilesResponse{
		Success:       true,
		CourseTitle:   rec.Title,
		FilesByFolder: groups,
	})
}

// collectMaterials walks root and groups materials by their parent folder.
// The root group comes first, the rest follow in natural order.
func (h *Handlers) collectMaterials(root string) ([]FileGroup, error) {
	byDir := make(map[string]*FileGroup)

	var walk func(dir, rel string) error
	walk = func(dir, rel string) error {
		entries, err := filesystem.ReadDirWithRetry(dir, h.retry)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") || ignoredFiles[strings.ToLower(name)] {
				continue
			}
			entryRel := path.Join(rel, name)

			if entry.IsDir() {
				if err := walk(filepath.Join(dir, name), entryRel); err != nil {
					return err
				}
				continue
			}
			if !entry.Type().IsRegular() || !isMaterial(name) {
				continue
			}

			info, err := entry.Info()
			if err != nil {
				logging.Debug("Skipping %s: %v", entryRel, err)
				continue
			}

			group := byDir[rel]
			if group == nil {
				group = &FileGroup{FolderName: rel, RelativePathForDisplay: rel, Files: []CourseFile{}}
				if rel == "" {
					group.FolderName = rootGroupName
					group.RelativePathForDisplay = "."
				}
				byDir[rel] = group
			}
			group.Files = append(group.Files, CourseFile{
				Name:          name,
				Size:          info.Size(),
				FormattedSize: humanize.IBytes(uint64(info.Size())),
				Extension:     strings.TrimPrefix(mediatypes.Ext(name), "."),
				DownloadPath:  entryRel,
			})
		}
		return nil
	}

	if err := walk(root, ""); err != nil {
		return nil, err
	}

	groups := make([]FileGroup, 0, len(byDir))
	for _, g := range byDir {
		sort.Slice(g.Files, func(i, j int) bool {
			return course.NaturalLess(g.Files[i].Name, g.Files[j].Name)
		})
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].RelativePathForDisplay == "." {
			return true
		}
		if groups[j].RelativePathForDisplay == "." {
			return false
		}
		return course.NaturalLess(groups[i].FolderName, groups[j].FolderName)
	})
	return groups, nil
}

// DownloadCourseFile sends one course file as an attachment.
func (h *Handlers) DownloadCourseFile(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rel := r.URL.Query().Get("path")
	if rel == "" {
		rel = r.URL.Query().Get("filePath")
	}
	if rel == "" {
		writeJSONError(w, "File path is required", http.StatusBadRequest)
		return
	}
	if strings.ContainsAny(rel, "\x00\\") {
		writeJSONError(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	folder, ok := h.lookupFolder(w, r, id)
	if !ok {
		return
	}

	target, err := h.paths.Resolve(folder, rel)
	if err != nil {
		if errors.Is(err, course.ErrOutsideRoot) {
			logging.Warn("Rejected download outside course %s: %q", id, rel)
			writeJSONError(w, "Access denied", http.StatusForbidden)
			return
		}
		writeJSONError(w, "Invalid file path", http.StatusBadRequest)
		return
	}

	info, err := filesystem.StatWithRetry(target, h.retry)
	if err != nil || !info.Mode().IsRegular() {
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.Warn("Failed to stat %s: %v", target, err)
		}
		writeJSONError(w, "File not found", http.StatusNotFound)
		return
	}

	f, err := filesystem.OpenWithRetry(target, h.retry)
	if err != nil {
		logging.Error("Failed to open %s: %v", target, err)
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	name := filepath.Base(target)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	w.Header().Set("Content-Disposition", contentDisposition(name))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}

	n, err := streaming.StreamWithTimeout(r.Context(), w, f, streaming.DefaultTimeoutWriterConfig())
	if err != nil && !streaming.IsDisconnect(err) {
		logging.Warn("Download of %s stopped after %s: %v", rel, humanize.IBytes(uint64(n)), err)
	}
}

// contentDisposition builds an attachment header that survives non-ASCII names.
func contentDisposition(name string) string {
	escaped := url.PathEscape(name)
	return `attachment; filename="` + escaped + `"; filename*=UTF-8''` + escaped
}
