package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"skillgoblin/internal/course"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/metrics"
)

// Action is what a synchronisation did.
type Action string

const (
	ActionNone     Action = "none"
	ActionImported Action = "imported"
	ActionExported Action = "exported"
	ActionDiverged Action = "diverged"
)

// Store is the part of the catalog the synchronizer needs.
type Store interface {
	GetThumbnail(ctx context.Context, id string) ([]byte, error)
	SetThumbnail(ctx context.Context, id string, data []byte) error
}

// Synchronizer reconciles thumbnail blobs with thumbnail files.
type Synchronizer struct {
	store Store
	paths course.Paths
	log   logging.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(store Store, paths course.Paths) *Synchronizer {
	return &Synchronizer{
		store: store,
		paths: paths,
		log:   logging.For("thumbnail"),
	}
}

// Sync applies the thumbnail policy to one course.
func (s *Synchronizer) Sync(ctx context.Context, courseID, folderName string) (action Action, err error) {
	defer func() {
		label := string(action)
		if err != nil {
			label = "error"
		}
		metrics.ThumbnailSyncTotal.WithLabelValues(label).Inc()
	}()

	blob, err := s.store.GetThumbnail(ctx, courseID)
	if err != nil {
		return ActionNone, fmt.Errorf("loading thumbnail blob for %s: %w", courseID, err)
	}

	filePath := s.paths.ThumbnailPath(folderName)
	file, err := os.ReadFile(filePath)
	fileExists := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ActionNone, fmt.Errorf("reading %s: %w", filePath, err)
	}

	switch {
	case blob == nil && fileExists:
		normalized, err := Normalize(file)
		if err != nil {
			return ActionNone, fmt.Errorf("normalizing %s: %w", filePath, err)
		}
		if err := s.store.SetThumbnail(ctx, courseID, normalized); err != nil {
			return ActionNone, err
		}
		s.log.Info("Imported thumbnail for %s from %s", courseID, filePath)
		return ActionImported, nil

	case blob == nil:
		return ActionNone, nil

	case !fileExists:
		if err := s.Export(folderName, blob); err != nil {
			return ActionNone, err
		}
		s.log.Info("Restored thumbnail file for %s at %s", courseID, filePath)
		return ActionExported, nil

	case !bytes.Equal(blob, file):
		s.log.Warn("Thumbnail for %s differs between catalog and %s; leaving both untouched", courseID, filePath)
		return ActionDiverged, nil

	default:
		return ActionNone, nil
	}
}

// Export writes data verbatim as the thumbnail file of folderName,
// creating the course directory when needed.
func (s *Synchronizer) Export(folderName string, data []byte) error {
	filePath := s.paths.ThumbnailPath(folderName)
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("creating course directory: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filePath, err)
	}
	return nil
}
