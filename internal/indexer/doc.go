// Package indexer keeps the course catalog in step with the content root.
//
// The [Orchestrator] runs full scans: it snapshots the stored editable
// metadata, scans every top-level course folder in natural order, reconciles
// and persists each document, synchronises thumbnails and finally removes
// catalog rows whose folder has disappeared. Courses are processed one at a
// time; a failure in one course is logged and counted, never fatal to the run.
// Only failing to enumerate the content root aborts a scan.
//
// Scan progress lives in a [StatusTracker], a small state machine
//
//	idle -> scanning -> complete | failed
//
// whose [StatusTracker.Snapshot] is what the status endpoint and health
// checks read. A forced scan resets the tracker from any state; a non-forced
// scan is refused while another one runs and is skipped outright when the
// catalog already has courses.
//
// The [Watcher] polls the top level of the content root on a fixed interval
// (fsnotify events only make the next poll happen sooner). New course
// folders are scanned as brand new courses; vanished ones are removed from
// the catalog together with their progress and favorite entries. An interval
// of zero disables the watcher.
package indexer
