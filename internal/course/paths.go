package course

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/logging"
)

var (
	// ErrOutsideRoot is returned when a resolved path escapes its base directory.
	ErrOutsideRoot = errors.New("path escapes base directory")
	// ErrFolderNotFound is returned when no course folder matches an id.
	ErrFolderNotFound = errors.New("course folder not found")
)

// Paths resolves locations under the content root.
type Paths struct {
	root  string
	retry filesystem.RetryConfig
}

// NewPaths creates a resolver rooted at contentRoot.
func NewPaths(contentRoot string) Paths {
	root, err := filepath.Abs(contentRoot)
	if err != nil {
		root = filepath.Clean(contentRoot)
	}
	return Paths{root: root, retry: filesystem.DefaultRetryConfig()}
}

// ContentRoot returns the absolute content root.
func (p Paths) ContentRoot() string {
	return p.root
}

// CourseRoot returns the directory of a course folder.
func (p Paths) CourseRoot(folderName string) string {
	return filepath.Join(p.root, folderName)
}

// ThumbnailPath returns the canonical thumbnail file of a course.
func (p Paths) ThumbnailPath(folderName string) string {
	return filepath.Join(p.root, folderName, ThumbnailFile)
}

// IsCourseDir reports whether dir is an immediate child of the content root.
func (p Paths) IsCourseDir(dir string) bool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == p.root && abs != p.root
}

// Resolve joins rel below the course folder and rejects results that leave it.
// rel is treated as slash separated and may contain "." and ".." elements.
func (p Paths) Resolve(folderName, rel string) (string, error) {
	base := p.CourseRoot(folderName)
	if !IsWithin(p.root, base) || base == p.root {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, folderName)
	}

	target := filepath.Join(base, filepath.FromSlash(rel))
	if !IsWithin(base, target) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return target, nil
}

// IsWithin reports whether target is base or lies below it, after cleaning.
func IsWithin(base, target string) bool {
	rel, err := filepath.Rel(filepath.Clean(base), filepath.Clean(target))
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ListCourseFolders returns the visible top-level directories of the content root.
func (p Paths) ListCourseFolders() ([]string, error) {
	entries, err := filesystem.ReadDirWithRetry(p.root, p.retry)
	if err != nil {
		return nil, err
	}

	folders := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		folders = append(folders, entry.Name())
	}
	SortStrings(folders)
	return folders, nil
}

// FindFolderBySlug scans the content root for a folder whose derived id is id.
// Sibling folders may collide on the same slug; the first in natural order wins.
func (p Paths) FindFolderBySlug(id string) (string, error) {
	if id == "" {
		return "", ErrFolderNotFound
	}

	folders, err := p.ListCourseFolders()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrFolderNotFound
		}
		return "", err
	}

	match := ""
	for _, folder := range folders {
		if DeriveID(folder) != id {
			continue
		}
		if match == "" {
			match = folder
			continue
		}
		logging.Warn("Course folders %q and %q share the id %s; using %q", match, folder, id, match)
	}
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	return match, nil
}
