// Package logging provides the slog handler suite for the run logging
// pipeline.
//
// It owns the console handler (template formatting, highlighting, markup),
// the fanout and level-override handlers, the canonical Record model shared
// by the console and shipping sinks, and a no-op logger for tests and wiring
// code that cannot fail. Run attribution fields use the standardized keys
// declared here so every sink sees the same shape.
package logging
