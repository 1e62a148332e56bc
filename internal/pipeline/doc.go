// Package pipeline assembles the logging service from its parts: the run
// registry, the console and shipping sinks, print capture, and per-logger
// level overrides.
//
// A Service is built once from configuration. Code inside a run obtains an
// attributed logger with RunLogger; components outside runs use Logger.
// Close flushes the shipping queue before the process exits.
package pipeline
