// Package shipping delivers log records to a remote store without blocking
// the emitting call path.
//
// Records accepted by the Handler enter a bounded in-memory queue drained by
// a single background worker. Batches are bounded by record count and by
// wait time, whichever fills first, and are retried with capped exponential
// backoff before being dropped with a local diagnostic. Queue overflow drops
// the newest record (see Handler) so emitters never block; shutdown flushes
// best effort within a hard grace bound.
package shipping
