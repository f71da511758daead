package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/metrics"
)

// eventDebounce delays the poll that an fsnotify event triggers, so a copy
// that creates a folder and fills it is seen once.
const eventDebounce = 500 * time.Millisecond

// Watcher reacts to course folders appearing in or vanishing from the top
// level of the content root.
type Watcher struct {
	orch     *Orchestrator
	interval time.Duration
	log      logging.Logger

	mu    sync.Mutex
	known map[string]bool

	nudge    chan struct{}
	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
}

// NewWatcher creates a Watcher polling every interval. Zero disables it.
func NewWatcher(orch *Orchestrator, interval time.Duration) *Watcher {
	return &Watcher{
		orch:     orch,
		interval: interval,
		log:      logging.For("watcher"),
		nudge:    make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Enabled reports whether the watcher will run.
func (w *Watcher) Enabled() bool {
	return w.interval > 0
}

// Start seeds the known folders from the catalog and begins watching.
// Folders added or removed while the server was down are handled by the
// first poll.
func (w *Watcher) Start(ctx context.Context) error {
	if !w.Enabled() {
		w.log.Info("Watcher disabled (interval 0), only manual scans will update the catalog")
		return nil
	}

	if err := w.seed(ctx); err != nil {
		return err
	}

	var events *fsnotify.Watcher
	fw, err := fsnotify.NewWatcher()
	if err == nil {
		err = fw.Add(w.orch.Paths().ContentRoot())
		if err != nil {
			fw.Close()
		} else {
			events = fw
		}
	}
	if err != nil {
		w.log.Warn("Filesystem events unavailable, polling only: %v", err)
	}

	w.started.Store(true)
	go w.loop(events)

	w.log.Info("Watching %s (poll interval: %v)", w.orch.Paths().ContentRoot(), w.interval)
	return nil
}

// Stop stops the watcher and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.started.Load() {
			<-w.doneChan
		}
	})
}

// seed marks every folder the catalog already holds as known. Legacy rows
// carry no folder name; their folders are matched on disk by derived id so
// the first poll does not rescan them as new courses.
func (w *Watcher) seed(ctx context.Context) error {
	rows, err := w.orch.db.ListCourseFolders(ctx)
	if err != nil {
		return err
	}

	known := make(map[string]bool, len(rows))
	unlinked := make(map[string]bool)
	for _, row := range rows {
		if row.FolderName != "" {
			known[row.FolderName] = true
		} else {
			unlinked[row.ID] = true
		}
	}

	if len(unlinked) > 0 {
		folders, err := w.orch.Paths().ListCourseFolders()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		for _, folder := range folders {
			if unlinked[course.DeriveID(folder)] {
				known[folder] = true
			}
		}
	}

	w.mu.Lock()
	w.known = known
	w.mu.Unlock()
	return nil
}

func (w *Watcher) loop(events *fsnotify.Watcher) {
	defer close(w.doneChan)

	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if events != nil {
		defer events.Close()
		eventCh = events.Events
		errCh = events.Errors
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	w.Poll(context.Background())

	for {
		select {
		case <-ticker.C:
			w.Poll(context.Background())
		case <-w.nudge:
			w.Poll(context.Background())
		case ev, ok := <-eventCh:
			if !ok {
				eventCh = nil
				continue
			}
			if !w.relevant(ev) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(eventDebounce, w.trigger)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			metrics.WatcherErrors.Inc()
			w.log.Warn("Filesystem event error: %v", err)
		case <-w.stopChan:
			w.log.Info("Watcher stopped")
			return
		}
	}
}

// trigger asks the loop for an early poll.
func (w *Watcher) trigger() {
	select {
	case w.nudge <- struct{}{}:
	default:
	}
}

// relevant reports whether ev is a create, remove or rename of a visible
// direct child of the content root.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return w.orch.Paths().IsCourseDir(ev.Name)
}

// Poll diffs the top-level folders against the last poll and scans or
// removes the difference.
func (w *Watcher) Poll(ctx context.Context) {
	start := time.Now()
	defer func() {
		metrics.WatcherPollDuration.Observe(time.Since(start).Seconds())
	}()

	current, err := w.orch.Paths().ListCourseFolders()
	if err != nil {
		metrics.WatcherErrors.Inc()
		w.log.Error("Listing content root failed: %v", err)
		return
	}

	onDisk := make(map[string]bool, len(current))
	for _, folder := range current {
		onDisk[folder] = true
	}

	w.mu.Lock()
	var added, removed []string
	for _, folder := range current {
		if !w.known[folder] {
			added = append(added, folder)
		}
	}
	for folder := range w.known {
		if !onDisk[folder] {
			removed = append(removed, folder)
		}
	}
	w.known = onDisk
	w.mu.Unlock()

	for _, folder := range added {
		w.handleAdd(ctx, folder)
	}
	for _, folder := range removed {
		w.handleRemove(ctx, folder)
	}
}

func (w *Watcher) handleAdd(ctx context.Context, folder string) {
	metrics.WatcherEventsTotal.WithLabelValues("add").Inc()
	w.log.Info("New course directory detected: %s", folder)

	doc, err := w.orch.ScanCourse(ctx, folder, false)
	if err != nil {
		metrics.WatcherErrors.Inc()
		w.log.Warn("Scanning new course %q failed: %v", folder, err)
		return
	}
	w.log.Info("Course %s ready with %d lessons", doc.ID, len(doc.Lessons))
}

func (w *Watcher) handleRemove(ctx context.Context, folder string) {
	dir := filepath.Join(w.orch.Paths().ContentRoot(), folder)
	if !w.orch.Paths().IsCourseDir(dir) {
		w.log.Warn("Ignoring removal of %q: not a direct child of the content root", dir)
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues("remove").Inc()
	w.log.Info("Course directory removed: %s", folder)

	if _, err := w.orch.RemoveCourse(ctx, folder); err != nil {
		if errors.Is(err, database.ErrCourseNotFound) {
			w.log.Debug("Removed folder %q had no catalog entry", folder)
			return
		}
		metrics.WatcherErrors.Inc()
		w.log.Warn("Removing course for %q failed: %v", folder, err)
	}
}
