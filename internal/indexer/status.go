package indexer

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a point-in-time copy of the scan state.
type Status struct {
	InProgress       bool       `json:"inProgress"`
	Complete         bool       `json:"complete"`
	TotalCourses     int        `json:"totalCourses"`
	ProcessedCourses int        `json:"processedCourses"`
	StartTime        *time.Time `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
	Error            string     `json:"error,omitempty"`
	PreserveMetadata bool       `json:"preserveMetadata"`
	RunID            string     `json:"runId,omitempty"`
	Skipped          bool       `json:"skipped,omitempty"`
}

// Failed reports whether the last scan ended in the failed state.
func (s Status) Failed() bool {
	return !s.InProgress && !s.Complete && s.Error != ""
}

// StatusTracker owns the scan state. Every transition after Start names the
// run it belongs to; transitions from a superseded run are ignored.
type StatusTracker struct {
	mu    sync.RWMutex
	s     Status
	ready bool
	now   func() time.Time
}

// NewStatusTracker returns a tracker in the idle state.
func NewStatusTracker() *StatusTracker {
	return &StatusTracker{now: time.Now}
}

// Start moves to scanning and returns the new run id. Without force it
// refuses while a scan is in progress; with force the state is reset
// unconditionally.
func (t *StatusTracker) Start(force, preserve bool) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.s.InProgress && !force {
		return "", false
	}

	start := t.now()
	t.s = Status{
		InProgress:       true,
		StartTime:        &start,
		PreserveMetadata: preserve,
		RunID:            uuid.NewString(),
	}
	return t.s.RunID, true
}

// current reports whether runID is the active run; callers hold the lock.
func (t *StatusTracker) current(runID string) bool {
	return t.s.InProgress && t.s.RunID == runID
}

// SetTotal records how many course folders the run will process.
func (t *StatusTracker) SetTotal(runID string, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current(runID) {
		t.s.TotalCourses = total
	}
}

// Processed counts one course as handled, successful or not.
func (t *StatusTracker) Processed(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current(runID) {
		t.s.ProcessedCourses++
	}
}

// Complete ends the run successfully.
func (t *StatusTracker) Complete(runID string) {
	t.finish(runID, "", false)
}

// Skip ends the run as trivially complete without touching the filesystem.
func (t *StatusTracker) Skip(runID string, courses int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current(runID) {
		t.s.TotalCourses = courses
		t.s.ProcessedCourses = courses
		t.finishLocked("", true)
	}
}

// Fail ends the run in the failed state. Any later Start leaves it, and a
// non-forced one is not skipped while the failure is recorded.
func (t *StatusTracker) Fail(runID string, err error) {
	msg := "scan failed"
	if err != nil {
		msg = err.Error()
	}
	t.finish(runID, msg, false)
}

func (t *StatusTracker) finish(runID, errMsg string, skipped bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current(runID) {
		t.finishLocked(errMsg, skipped)
	}
}

func (t *StatusTracker) finishLocked(errMsg string, skipped bool) {
	end := t.now()
	t.s.InProgress = false
	t.s.Complete = errMsg == ""
	t.s.Error = errMsg
	t.s.EndTime = &end
	t.s.Skipped = skipped
	if t.s.Complete {
		t.ready = true
	}
}

// Snapshot returns a copy of the current state.
func (t *StatusTracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := t.s
	if s.StartTime != nil {
		start := *s.StartTime
		s.StartTime = &start
	}
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}

// Ready reports whether any scan has completed or been skipped.
func (t *StatusTracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}
