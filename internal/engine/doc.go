// Package engine orchestrates a review run end to end: planning work units
// into batches, dispatching them through the rate-limited backend, parsing
// responses into findings, and assembling the final report.
//
// Runs are resilient by construction: a failed batch degrades rather than
// aborting, cancellation between batches keeps everything already reviewed,
// and units that could not be reviewed are reported as skipped with a cause.
// After a batch-level failure the token budget for subsequent batches is
// halved down to a configured floor, so persistently failing large requests
// shrink instead of repeating.
package engine
