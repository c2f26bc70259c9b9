// Package scan discovers the units of work for a review run.
//
// Project mode walks a directory tree, pruning build and dependency
// directories before descending, and classifies files by extension against
// a supported-language table. Diff mode parses unified-diff text into
// per-file hunks with added/removed lines, a bounded window of unchanged
// context, and a best-effort function label taken from the hunk header.
//
// Both modes produce WorkUnits in a deterministic, order-stable sequence.
// Unreadable files are skipped with a warning; diff input that cannot be
// parsed at all fails with a ScanError.
package scan
