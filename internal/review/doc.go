// Package review contains the core types of the review pipeline.
//
// It defines the Finding, Report, Severity, and Status types, computes
// quality scores and summaries, generates stable finding IDs as SHA-256
// hashes of a finding's invariant fields, and plans work units into
// token-bounded batches (planner.go).
//
// Reports round-trip through JSON without loss so a saved report can seed a
// later resolution session.
package review
