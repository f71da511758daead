package course

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/mediatypes"
	"skillgoblin/internal/metrics"
)

// ErrEmptyID is returned for folders whose name yields no usable course id.
var ErrEmptyID = errors.New("folder name produces an empty course id")

// Scanner builds course documents from course folders.
type Scanner struct {
	paths Paths
	retry filesystem.RetryConfig
	log   logging.Logger

	// now is replaced in tests to pin releaseDate and lastUpdate.
	now func() time.Time
}

// NewScanner creates a Scanner for the content root described by paths.
func NewScanner(paths Paths) *Scanner {
	return &Scanner{
		paths: paths,
		retry: filesystem.DefaultRetryConfig(),
		log:   logging.For("scanner"),
		now:   time.Now,
	}
}

// Paths returns the resolver the scanner was built with.
func (s *Scanner) Paths() Paths {
	return s.paths
}

// Scan walks folderName and returns its course document with first-scan
// defaults. Any read error aborts the scan of this course.
func (s *Scanner) Scan(ctx context.Context, folderName string) (*Course, error) {
	if DeriveID(folderName) == "" {
		return nil, fmt.Errorf("%w: %q", ErrEmptyID, folderName)
	}

	coursePath := s.paths.CourseRoot(folderName)
	info, err := filesystem.StatWithRetry(coursePath, s.retry)
	if err != nil {
		return nil, fmt.Errorf("stat course %s: %w", folderName, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("course %s: %w", folderName, os.ErrInvalid)
	}

	lessons, err := s.scanLessons(ctx, coursePath)
	if err != nil {
		return nil, fmt.Errorf("scan course %s: %w", folderName, err)
	}

	c := NewCourse(folderName, lessons, s.now())
	s.log.Debug("Scanned %s: %d lessons", folderName, len(lessons))
	return c, nil
}

// folderContents splits a directory listing into visible subdirectories and files.
func (s *Scanner) folderContents(dir string) (dirs, files []string, err error) {
	entries, err := filesystem.ReadDirWithRetry(dir, s.retry)
	if err != nil {
		return nil, nil, err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() {
			dirs = append(dirs, name)
		} else {
			files = append(files, name)
		}
	}
	return dirs, files, nil
}

func (s *Scanner) scanLessons(ctx context.Context, coursePath string) ([]Lesson, error) {
	dirs, files, err := s.folderContents(coursePath)
	if err != nil {
		return nil, err
	}

	lessons := make([]Lesson, 0, len(dirs)+1)

	rootVideos, err := s.buildVideos(coursePath, files)
	if err != nil {
		return nil, err
	}
	if len(rootVideos) > 0 {
		lessons = append(lessons, Lesson{
			ID:     MainContentID,
			Title:  MainContentTitle,
			Folder: "",
			Videos: rootVideos,
			Readme: findReadme(files),
		})
	}

	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lessonPath := filepath.Join(coursePath, dir)
		_, lessonFiles, err := s.folderContents(lessonPath)
		if err != nil {
			return nil, err
		}

		videos, err := s.buildVideos(lessonPath, lessonFiles)
		if err != nil {
			return nil, err
		}
		if len(videos) == 0 {
			continue
		}

		lessons = append(lessons, Lesson{
			ID:     DeriveID(dir),
			Title:  dir,
			Folder: dir,
			Videos: videos,
			Readme: findReadme(lessonFiles),
		})
	}

	SortLessons(lessons)
	return lessons, nil
}

// buildVideos creates the sorted videos of one folder with their subtitles,
// converting SRT tracks to WebVTT sidecars on the way.
func (s *Scanner) buildVideos(dir string, files []string) ([]Video, error) {
	var names []string
	for _, name := range files {
		if mediatypes.IsVideo(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, nil
	}

	matched := matchSubtitles(names, subtitleFiles(files))

	videos := make([]Video, 0, len(names))
	for _, name := range names {
		base := stem(name)
		subtitles := []Subtitle{}
		seen := make(map[string]bool)

		for _, sub := range matched[name] {
			src := sub
			if mediatypes.Ext(sub) == ".srt" {
				vtt, converted, err := EnsureVTT(filepath.Join(dir, sub))
				if err != nil {
					return nil, err
				}
				if converted {
					metrics.SubtitlesConverted.Inc()
					s.log.Info("Converted %s to %s", sub, vtt)
				}
				src = vtt
			}
			if seen[src] {
				continue
			}
			seen[src] = true
			subtitles = append(subtitles, describeSubtitle(stem(sub)[len(base):], src))
		}

		videos = append(videos, Video{
			Title:     strings.ReplaceAll(base, "_", " "),
			File:      name,
			Subtitles: subtitles,
		})
	}

	SortVideos(videos)
	return videos, nil
}

// findReadme returns the first readme among files in natural order.
func findReadme(files []string) string {
	var readmes []string
	for _, name := range files {
		if mediatypes.IsReadme(name) {
			readmes = append(readmes, name)
		}
	}
	if len(readmes) == 0 {
		return ""
	}
	SortStrings(readmes)
	return readmes[0]
}
