// Package session holds the mutable state of one review session: cumulative
// usage counters and an in-memory content cache for the files under review.
//
// Cache entries are invalidated when a file's modification time or size no
// longer matches, and explicitly after a fix is written. All state is scoped
// to the [Session] value; nothing here is global.
package session
