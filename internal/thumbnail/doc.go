// Package thumbnail keeps course thumbnails consistent between the catalog
// and the course folders.
//
// Every course has one logical thumbnail, thumbnail.png at the root of its
// folder. The catalog stores a normalised copy (480x270 PNG, cover fit,
// centered) as a blob. [Synchronizer.Sync] compares both sides and applies a
// fixed policy:
//
//	blob  file   action
//	no    yes    import: normalise the file and store it as the blob
//	no    no     none
//	yes   no     export: write the blob to the folder
//	yes   yes    none when equal, otherwise log the divergence and leave both
//
// Divergent thumbnails are only reconciled by an explicit course edit, which
// writes both sides together.
package thumbnail
