// Package history persists batch and job outcomes in SQLite so past runs can
// be listed and inspected from the CLI.
//
// The schema is managed by goose migrations embedded in the binary. Writes
// retry briefly on SQLITE_BUSY because the three workflows record into the
// same database concurrently.
package history
