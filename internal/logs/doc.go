// Package logs reads shipped records back by run identifier.
//
// It queries the remote log API when one is configured and falls back to the
// local archive store when the API is unreachable, so `runlog logs <run-id>`
// works both against a live server and against a machine that only ever
// shipped to disk. Records come back ordered by timestamp regardless of
// source.
package logs
