// Package storage provides audit.Storage backends.
//
// The SQLite backend works with two drivers registered by this package:
// "sqlite" (modernc.org/sqlite, pure Go, the default) and "sqlite3"
// (github.com/mattn/go-sqlite3, requires cgo). Both share one schema.
// Timestamps and durations are stored as integer nanoseconds.
//
// The "memory" driver keeps records in process memory.
package storage
