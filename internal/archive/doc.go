// Package archive is the local durable log store backing the "archive"
// shipping handler class.
//
// Batches are written to a SQLite database under the archive directory and
// read back ordered by timestamp for a given run identifier. A file lock
// guards the directory so only one process ships into an archive at a time,
// and opening verifies a minimum of free disk space up front.
package archive
