// Package resolve drives the finding resolution lifecycle.
//
// Each finding moves through a small state machine: pending findings can be
// resolved, ignored (with a reason), skipped, or handed to the AI fixer;
// a proposed fix is then applied, which writes the file after taking a
// .backup copy, or canceled. Invalid transitions are rejected with a
// [ResolutionError] and leave the finding unchanged.
//
// The interactive loop walks pending findings one at a time. No lock is
// held while waiting on the user, so long pauses are harmless.
package resolve
