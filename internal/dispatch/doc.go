// Package dispatch mediates every backend call in a review run.
//
// A [Dispatcher] wraps a backend.Reviewer with two blocking rate limiters
// (a minimum inter-request interval and a rolling per-minute ceiling), a
// session-scoped API call budget, and the batch retry policy: one same-batch
// retry on transient failure, then degraded per-unit dispatch, and only then
// is a unit recorded as skipped. Requests are never dropped or reordered to
// satisfy the limiters — callers wait.
package dispatch
