// Package storage persists the task container.
//
// Two drivers are available:
//   - "file":   one JSON array on disk, replaced atomically on every write
//   - "sqlite": a SQLite database file (modernc.org/sqlite, no cgo)
//
// Both serialize writes so that a user mutation and a scheduler commit never
// interleave their read-modify-write cycles.
package storage
