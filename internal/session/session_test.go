package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_Counters(t *testing.T) {
	s := New(0)
	s.RecordCall(100, 40)
	s.RecordCall(200, 60)
	s.RecordBatch(true)
	s.RecordBatch(false)

	u := s.Usage()
	assert.Equal(t, 2, u.APICalls)
	assert.Equal(t, int64(300), u.TokensSent)
	assert.Equal(t, int64(100), u.TokensReceived)
	assert.Equal(t, 1, u.BatchesOK)
	assert.Equal(t, 1, u.BatchesFailed)
}

func TestSession_Budget(t *testing.T) {
	s := New(2)
	assert.True(t, s.BudgetRemaining())
	s.RecordCall(1, 1)
	assert.True(t, s.BudgetRemaining())
	s.RecordCall(1, 1)
	assert.False(t, s.BudgetRemaining())

	unlimited := New(0)
	for i := 0; i < 50; i++ {
		unlimited.RecordCall(1, 1)
	}
	assert.True(t, unlimited.BudgetRemaining())
}

func TestSession_ContentCaching(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))

	s := New(0)
	content, err := s.Content(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", content)

	_, cached := s.ContentHash(path)
	assert.True(t, cached)

	// Rewrite with a different size so the entry goes stale.
	require.NoError(t, os.WriteFile(path, []byte("version two"), 0o644))
	content, err = s.Content(path)
	require.NoError(t, err)
	assert.Equal(t, "version two", content)
}

func TestSession_StaleOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.go")
	require.NoError(t, os.WriteFile(path, []byte("aa"), 0o644))

	s := New(0)
	_, err := s.Content(path)
	require.NoError(t, err)

	// Same size, different content and mtime.
	require.NoError(t, os.WriteFile(path, []byte("bb"), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	content, err := s.Content(path)
	require.NoError(t, err)
	assert.Equal(t, "bb", content)
}

func TestSession_Invalidate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.go")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	s := New(0)
	_, err := s.Content(path)
	require.NoError(t, err)

	s.Invalidate(path)
	_, cached := s.ContentHash(path)
	assert.False(t, cached)
}

func TestSession_ContentMissingFile(t *testing.T) {
	s := New(0)
	_, err := s.Content(filepath.Join(t.TempDir(), "nope.go"))
	assert.Error(t, err)
}
