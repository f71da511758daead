// Package main provides the entry point for the SkillGoblin server.
//
// SkillGoblin serves a library of video courses straight from a content
// directory: every top-level folder is a course, its videos are grouped into
// lessons by sub-folder, and a SQLite catalog keeps the scanned structure
// together with the metadata users edit in the UI.
//
// # Application Lifecycle
//
//  1. Memory Configuration: Sets GOMEMLIMIT from GOMEMLIMIT or MEMORY_LIMIT
//  2. Configuration Loading: Reads the environment (and .env), prepares directories
//  3. Database Initialization: Opens the SQLite catalog and runs migrations
//  4. Component Initialization:
//     - Memory Monitor: Tracks heap usage against the limit
//     - Delivery Engine: File handle, chunk and thumbnail caches
//     - Scan Orchestrator: Full and single-course scans
//     - Directory Watcher: Picks up added and removed course folders
//     - Metrics Collector: Updates catalog gauges every minute
//  5. HTTP Server Setup: Routes, middleware, optional metrics server
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops every component
//
// The startup scan runs in the background and is skipped when the catalog
// already holds courses; /readyz reports 503 until it has finished.
//
// # HTTP Server
//
//  1. Main Server (PORT, default 3000):
//     - /api/courses, /api/categories, course edit, refresh and rescan
//     - /api/content/{path}: videos and subtitles with byte ranges
//     - /api/course-thumbnail/{id}
//     - per-user progress and favorites
//     - static UI from ./public
//
//  2. Metrics Server (METRICS_PORT, default 9090, optional):
//     - Prometheus metrics endpoint (/metrics)
//
// # Graceful Shutdown
//
//  1. Stop the directory watcher
//  2. Cancel any running scan
//  3. Shutdown the HTTP servers (30s timeout)
//  4. Close cached file handles and drop caches
//  5. Stop the metrics collector and memory monitor
//  6. Close the database
//
// # Related Packages
//
//   - [skillgoblin/internal/course]: course model, folder scanning, natural sort
//   - [skillgoblin/internal/database]: SQLite catalog and user data
//   - [skillgoblin/internal/delivery]: content and thumbnail delivery
//   - [skillgoblin/internal/handlers]: HTTP request handlers
//   - [skillgoblin/internal/indexer]: scan orchestration and directory watching
//   - [skillgoblin/internal/startup]: configuration and initialization
//
// The coursectl command in cmd/coursectl runs the same scans from a shell.
package main
