// Package config builds the layered logging configuration overlay.
//
// Values resolve from three layers, lowest to highest precedence: built-in
// defaults, an optional user-supplied settings document (TOML, YAML, or
// JSON), and RUNLOG_-prefixed environment variables named after the
// uppercased, underscore-joined dotted key. Later layers win per key, never
// wholesale. A missing document is not an error; a malformed one fails at
// load with a *ParseError, and template or style problems fail validation
// before any record is formatted.
package config
