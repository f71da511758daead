package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/memory"
	"skillgoblin/internal/metrics"
	"skillgoblin/internal/thumbnail"
)

var (
	// ErrContentRoot means the content root itself could not be listed.
	ErrContentRoot = errors.New("content root unavailable")
	// ErrScanInProgress is returned for a non-forced scan while one runs.
	ErrScanInProgress = errors.New("scan already in progress")
	// errPausedStop ends a scan whose memory pause was cut short by shutdown.
	errPausedStop = errors.New("scan stopped while paused for memory")
)

// Orchestrator coordinates full and single-course scans.
type Orchestrator struct {
	db      *database.Database
	paths   course.Paths
	scanner *course.Scanner
	thumbs  *thumbnail.Synchronizer
	status  *StatusTracker
	monitor *memory.Monitor
	log     logging.Logger

	// courseMu serialises the read-reconcile-write of single courses so
	// watcher events and full scans never interleave on one row.
	courseMu sync.Mutex

	runMu  sync.Mutex
	cancel context.CancelFunc
	runs   sync.WaitGroup

	onScanComplete func(Status)
}

// NewOrchestrator creates an Orchestrator over db and the content root in paths.
func NewOrchestrator(db *database.Database, paths course.Paths) *Orchestrator {
	return &Orchestrator{
		db:      db,
		paths:   paths,
		scanner: course.NewScanner(paths),
		thumbs:  thumbnail.NewSynchronizer(db, paths),
		status:  NewStatusTracker(),
		log:     logging.For("scan"),
	}
}

// SetMemoryMonitor makes full scans wait between courses under memory pressure.
func (o *Orchestrator) SetMemoryMonitor(m *memory.Monitor) {
	o.monitor = m
}

// SetOnScanComplete sets a callback invoked after every finished full scan.
func (o *Orchestrator) SetOnScanComplete(callback func(Status)) {
	o.onScanComplete = callback
}

// Status returns the scan state tracker.
func (o *Orchestrator) Status() *StatusTracker {
	return o.status
}

// Paths returns the content root resolver.
func (o *Orchestrator) Paths() course.Paths {
	return o.paths
}

// FullScan runs a full scan and waits for it. A non-forced scan returns
// ErrScanInProgress while another scan runs and returns nil without touching
// the filesystem when the catalog already has courses.
func (o *Orchestrator) FullScan(ctx context.Context, force, preserve bool) error {
	runID, runCtx, err := o.begin(ctx, force, preserve)
	if err != nil || runID == "" {
		return err
	}
	defer o.release(runID)
	return o.run(runCtx, runID, preserve)
}

// StartFullScan accepts a full scan and runs it in the background. The
// returned snapshot reflects the state right after acceptance.
func (o *Orchestrator) StartFullScan(force, preserve bool) (Status, error) {
	runID, runCtx, err := o.begin(context.Background(), force, preserve)
	if err != nil {
		return o.status.Snapshot(), err
	}
	if runID != "" {
		o.runs.Add(1)
		go func() {
			defer o.runs.Done()
			defer o.release(runID)
			_ = o.run(runCtx, runID, preserve)
		}()
	}
	return o.status.Snapshot(), nil
}

// Stop cancels the running scan and waits for background scans to return.
func (o *Orchestrator) Stop() {
	o.runMu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.runMu.Unlock()
	o.runs.Wait()
}

// begin performs the state transition. An empty run id with a nil error
// means the scan was skipped.
func (o *Orchestrator) begin(ctx context.Context, force, preserve bool) (string, context.Context, error) {
	retry := o.status.Snapshot().Failed()
	runID, ok := o.status.Start(force, preserve)
	if !ok {
		o.log.Info("Scan already in progress, skipping")
		return "", nil, ErrScanInProgress
	}

	// after a failed run the catalog may be partial, so it is scanned again
	if !force && !retry {
		count, err := o.db.CourseCount(ctx)
		if err != nil {
			o.status.Fail(runID, err)
			metrics.ScanRunsTotal.WithLabelValues("failed").Inc()
			return "", nil, fmt.Errorf("counting courses: %w", err)
		}
		if count > 0 {
			o.log.Info("Catalog already holds %d courses, skipping initial scan", count)
			o.status.Skip(runID, count)
			metrics.ScanRunsTotal.WithLabelValues("skipped").Inc()
			o.notify()
			return "", nil, nil
		}
	}

	runCtx, cancel := context.WithCancel(ctx)

	o.runMu.Lock()
	if o.cancel != nil {
		o.log.Warn("Forced scan %s supersedes the running scan", runID)
		o.cancel()
	}
	o.cancel = cancel
	o.runMu.Unlock()

	return runID, runCtx, nil
}

func (o *Orchestrator) release(runID string) {
	o.runMu.Lock()
	defer o.runMu.Unlock()
	if o.status.Snapshot().RunID == runID && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) notify() {
	if o.onScanComplete != nil {
		o.onScanComplete(o.status.Snapshot())
	}
}

// run walks every course folder. Only content-root and snapshot failures
// are returned; per-course failures are logged and counted.
func (o *Orchestrator) run(ctx context.Context, runID string, preserve bool) (err error) {
	startTime := time.Now()
	metrics.ScanRunning.Set(1)

	defer func() {
		metrics.ScanRunning.Set(0)
		metrics.ScanLastDuration.Set(time.Since(startTime).Seconds())
		metrics.ScanLastTimestamp.Set(float64(time.Now().Unix()))
		if err != nil {
			o.log.Error("Scan %s failed: %v", runID, err)
			o.status.Fail(runID, err)
			metrics.ScanRunsTotal.WithLabelValues("failed").Inc()
		} else {
			o.status.Complete(runID)
			metrics.ScanRunsTotal.WithLabelValues("complete").Inc()
		}
		o.notify()
	}()

	o.log.Info("Starting full scan %s (preserve metadata: %v)", runID, preserve)

	var existing map[string]course.Editable
	if preserve {
		existing, err = o.db.ListEditable(ctx)
		if err != nil {
			return fmt.Errorf("snapshot catalog metadata: %w", err)
		}
	}

	folders, err := o.paths.ListCourseFolders()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrContentRoot, err)
	}
	o.status.SetTotal(runID, len(folders))

	onDisk := make(map[string]bool, len(folders))
	failed := 0
	for _, folder := range folders {
		if err := ctx.Err(); err != nil {
			return err
		}
		if o.monitor != nil && !o.monitor.WaitIfPaused() {
			return errPausedStop
		}

		onDisk[folder] = true

		var prev *course.Editable
		if e, ok := existing[course.DeriveID(folder)]; ok {
			prev = &e
		}

		// a started course always runs to completion
		if _, err := o.processCourse(context.WithoutCancel(ctx), folder, prev, preserve); err != nil {
			failed++
			o.log.Warn("Skipping course %q: %v", folder, err)
		}
		o.status.Processed(runID)
	}

	removed := o.removeMissing(context.WithoutCancel(ctx), onDisk)

	o.log.Info("Scan %s finished in %v: %d courses, %d failed, %d removed",
		runID, time.Since(startTime).Round(time.Millisecond), len(folders), failed, removed)
	return nil
}

// processCourse scans, reconciles, persists and synchronises one course.
func (o *Orchestrator) processCourse(ctx context.Context, folder string, existing *course.Editable, preserve bool) (*course.Course, error) {
	o.courseMu.Lock()
	defer o.courseMu.Unlock()

	doc, err := o.scanner.Scan(ctx, folder)
	if err != nil {
		metrics.ScanCoursesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}

	decision := course.Reconcile(doc, existing, preserve)

	inserted, err := o.db.UpsertCourse(ctx, decision.Course, folder, !decision.ClearThumbnail)
	if err != nil {
		metrics.ScanCoursesProcessed.WithLabelValues("failed").Inc()
		return nil, err
	}
	if inserted {
		metrics.ScanCoursesProcessed.WithLabelValues("inserted").Inc()
		o.log.Info("Added course %s (%q)", decision.Course.ID, folder)
	} else {
		metrics.ScanCoursesProcessed.WithLabelValues("updated").Inc()
		o.log.Debug("Updated course %s (preserved metadata: %v)", decision.Course.ID, decision.Preserved)
	}

	if _, err := o.thumbs.Sync(ctx, decision.Course.ID, folder); err != nil {
		o.log.Warn("Thumbnail sync for %s failed: %v", decision.Course.ID, err)
	}

	return decision.Course, nil
}

// ScanCourse scans one course folder outside a full scan. With preserve set
// the stored editable metadata of the course is kept.
func (o *Orchestrator) ScanCourse(ctx context.Context, folder string, preserve bool) (*course.Course, error) {
	var existing *course.Editable
	if preserve {
		rec, err := o.db.GetCourseRecord(ctx, course.DeriveID(folder))
		switch {
		case err == nil:
			e := rec.Editable()
			existing = &e
		case !errors.Is(err, database.ErrCourseNotFound):
			return nil, err
		}
	}
	return o.processCourse(ctx, folder, existing, preserve)
}

// RemoveCourse deletes the course stored for folder and returns its id.
func (o *Orchestrator) RemoveCourse(ctx context.Context, folder string) (string, error) {
	o.courseMu.Lock()
	defer o.courseMu.Unlock()

	id, err := o.db.DeleteCourseByFolder(ctx, folder)
	if errors.Is(err, database.ErrCourseNotFound) {
		id, err = o.removeUnlinked(ctx, folder)
	}
	if err != nil {
		return "", err
	}
	metrics.ScanCoursesRemoved.Inc()
	o.log.Info("Removed course %s (folder %q no longer exists)", id, folder)
	return id, nil
}

// removeUnlinked deletes the legacy row, stored without a folder name, whose
// id derives from folder.
func (o *Orchestrator) removeUnlinked(ctx context.Context, folder string) (string, error) {
	id := course.DeriveID(folder)
	linked, err := o.db.GetFolderName(ctx, id)
	if err != nil {
		return "", err
	}
	if linked != "" {
		return "", fmt.Errorf("%w: folder %s", database.ErrCourseNotFound, folder)
	}
	if err := o.db.DeleteCourse(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

// removeMissing deletes rows whose folder is not among onDisk.
func (o *Orchestrator) removeMissing(ctx context.Context, onDisk map[string]bool) int {
	rows, err := o.db.ListCourseFolders(ctx)
	if err != nil {
		o.log.Error("Listing catalog folders for cleanup failed: %v", err)
		return 0
	}

	o.courseMu.Lock()
	defer o.courseMu.Unlock()

	removed := 0
	for _, row := range rows {
		if onDisk[row.FolderName] {
			continue
		}
		if err := o.db.DeleteCourse(ctx, row.ID); err != nil {
			if !errors.Is(err, database.ErrCourseNotFound) {
				o.log.Warn("Removing stale course %s failed: %v", row.ID, err)
			}
			continue
		}
		removed++
		metrics.ScanCoursesRemoved.Inc()
		o.log.Info("Removed course %s (folder %q no longer exists)", row.ID, row.FolderName)
	}
	return removed
}
