// Package run tracks the identity of flow and task runs while they execute.
//
// A Registry records every active run and resolves inheritable per-run
// settings by walking parent links. The identity chain for a unit of work is
// carried on its context, so concurrently executing runs never observe each
// other's state. Scopes returned by Enter guarantee registry cleanup on every
// exit path when released with defer.
package run
