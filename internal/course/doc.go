// Package course turns a course folder on disk into a catalog document.
//
// A course is a top-level directory of the content root. Videos at its root
// form a synthetic "Main Content" lesson; every subdirectory holding at least
// one video becomes a lesson of its own. Subtitle files are paired with the
// video whose base name they start with, and legacy SRT tracks are converted
// to WebVTT sidecars once.
//
// # Identifiers
//
// [DeriveID] produces the slug used as the course primary key. Slugs are not
// reversible, so callers must keep the folder name alongside the id.
//
//	course.DeriveID("01 - Go Basics!") // "01-go-basics"
//
// # Ordering
//
// Lessons and videos are ordered with [NaturalLess], which compares leading
// digit runs numerically:
//
//	"1. Setup" < "2. Intro" < "10. Advanced"
//
// # Reconciliation
//
// [Reconcile] decides which editable fields of a rescanned course survive
// from the stored record and whether the stored thumbnail must be cleared.
package course
