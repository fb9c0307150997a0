// Package sqlite persists vector indexes in a single SQLite file.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Atomic publish
//
// Save never writes to the live database. The whole index is written into a
// temporary file in the same directory inside one transaction, synced to disk
// and then renamed over index.db. Readers observe either the previous index or
// the new one, never a partial build.
//
// # Data Location
//
// By default, the database is stored at ~/.diagnobot/index/index.db
package sqlite
