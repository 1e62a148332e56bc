// Package capture redirects print-style output into the run logging pipeline.
//
// Instead of patching the process's standard output, the active writer for a
// run is injected into its context. When print capture is enabled for a run,
// the injected writer forwards each written line as an INFO record through
// the run's logger; releasing the scope flushes buffered text and leaves the
// original writer untouched for unrelated output.
package capture
