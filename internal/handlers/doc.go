// Package handlers provides the HTTP surface of the course library.
//
// It includes handlers for:
//   - Course listing, lookup, refresh, editing and categories
//   - Course materials (list-files) and attachment downloads
//   - Content delivery of videos, subtitles and thumbnails
//   - Scan status and forced rescans
//   - User deletion, progress and favorites
//   - Health checks and build information
//
// Routes are registered by the server entry point; handlers read path
// variables through gorilla/mux.
package handlers
