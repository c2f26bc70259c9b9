package session

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
)

// Usage is a snapshot of the session counters.
type Usage struct {
	APICalls       int
	TokensSent     int64
	TokensReceived int64
	BatchesOK      int
	BatchesFailed  int
}

// cacheEntry holds one file's content with staleness metadata.
type cacheEntry struct {
	content string
	modTime time.Time
	size    int64
	hash    uint64
}

// Session tracks usage for one review run and caches file contents. A single
// mutex guards both; it is never held across a backend call or while waiting
// on user input.
type Session struct {
	mu      sync.Mutex
	usage   Usage
	budget  int
	cache   map[string]cacheEntry
	started time.Time
}

// New creates a session. budget is the maximum number of API calls allowed;
// zero means unlimited.
func New(budget int) *Session {
	return &Session{
		budget:  budget,
		cache:   make(map[string]cacheEntry),
		started: time.Now(),
	}
}

// RecordCall charges one API call and its token usage against the session.
func (s *Session) RecordCall(tokensSent, tokensReceived int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usage.APICalls++
	s.usage.TokensSent += int64(tokensSent)
	s.usage.TokensReceived += int64(tokensReceived)
}

// RecordBatch tallies a batch outcome.
func (s *Session) RecordBatch(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.usage.BatchesOK++
	} else {
		s.usage.BatchesFailed++
	}
}

// BudgetRemaining reports whether another API call is allowed under the
// session budget.
func (s *Session) BudgetRemaining() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget == 0 || s.usage.APICalls < s.budget
}

// Usage returns a copy of the current counters.
func (s *Session) Usage() Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Elapsed returns time since session start.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.started)
}

// Content returns the file's content, from cache when still fresh. An entry
// is stale once the file's mtime or size changes.
func (s *Session) Content(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	s.mu.Lock()
	if e, ok := s.cache[path]; ok && e.modTime.Equal(info.ModTime()) && e.size == info.Size() {
		s.mu.Unlock()
		return e.content, nil
	}
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	s.mu.Lock()
	s.cache[path] = cacheEntry{
		content: string(data),
		modTime: info.ModTime(),
		size:    info.Size(),
		hash:    xxh3.Hash(data),
	}
	s.mu.Unlock()
	return string(data), nil
}

// Invalidate drops a file's cache entry; the next Content call re-reads it.
func (s *Session) Invalidate(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, path)
}

// ContentHash returns the xxh3 hash of the cached content, or false when the
// file is not cached. Used to detect content drift between review and fix.
func (s *Session) ContentHash(path string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.cache[path]
	return e.hash, ok
}
