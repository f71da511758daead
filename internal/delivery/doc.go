/*
Package delivery serves course files, video ranges and thumbnails.

An [Engine] resolves a virtual path {courseId}/{segments...} to a file below
the course folder and streams it. Three bounded caches, all built on
internal/cache, sit in front of the disk and the catalog:

  - handles: open files shared by concurrent readers, closed after an idle
    TTL or when evicted and no longer read.
  - chunks: byte ranges of videos, keyed by path, size, modification time
    and range.
  - thumbnails: catalog blobs (or the placeholder), keyed by course id and
    query string.

Video requests without a Range header are only served whole below
Config.MaxFullFileSize. Range requests are clamped to Config.MaxChunkSize and
trigger a best-effort prefetch of the following chunk, bounded by
Config.PrefetchWorkers and skipped under memory pressure.

Text-like files are gzipped when the client accepts it. Errors are written
as {"error": "..."} with the status from [StatusCode].

	engine := delivery.New(delivery.DefaultConfig(), db, course.NewPaths(contentDir), monitor)
	engine.Start()
	defer engine.Stop()
*/
package delivery
