// Package database provides SQLite storage for the course library.
//
// It handles storage and retrieval of:
//   - The course catalog (one row per course folder, the serialized course
//     document and an optional thumbnail blob)
//   - Users with their progress, favorites and settings
//
// The catalog is the single source of truth shared by the scanner, the
// delivery engine and the HTTP handlers. Multi-table deletions (a course and
// its progress references, a user and everything it owns) run in one
// transaction.
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization and column migrations for
// databases created by older releases.
package database
