package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config dir at a temp location and clears GAVEL_* env
// so tests never touch the real user config.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, e := range os.Environ() {
		if name, _, ok := strings.Cut(e, "="); ok && strings.HasPrefix(name, "GAVEL_") {
			t.Setenv(name, "")
		}
	}
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "anthropic", cfg.Backend)
	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, 6*time.Second, cfg.MinRequestInterval)
	assert.Equal(t, 10, cfg.RequestsPerMinute)
	assert.Equal(t, 5, cfg.MaxFilesPerBatch)
	assert.Equal(t, 2000, cfg.BudgetFloor)
	assert.Equal(t, 0, cfg.APICallBudget, "budget should default to unlimited")
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	isolate(t)
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default().Backend, cfg.Backend)
	assert.Equal(t, Default().MinRequestInterval, cfg.MinRequestInterval)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "gavel", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(
		"backend: ollama\nrequests_per_minute: 30\nmin_request_interval: 2s\n"), 0o644))

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Backend)
	assert.Equal(t, 30, cfg.RequestsPerMinute)
	assert.Equal(t, 2*time.Second, cfg.MinRequestInterval)
	assert.Equal(t, "text", cfg.Format, "untouched keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "gavel", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("backend: ollama\n"), 0o644))
	t.Setenv("GAVEL_BACKEND", "openai")
	t.Setenv("GAVEL_API_CALL_BUDGET", "50000")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Backend)
	assert.Equal(t, 50000, cfg.APICallBudget)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	isolate(t)
	t.Setenv("GAVEL_BACKEND", "openai")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.Int("concurrency", 0, "")
	require.NoError(t, flags.Parse([]string{"--backend=anthropic", "--concurrency=4"}))

	cfg, err := Load(flags)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Backend)
	assert.Equal(t, 4, cfg.Concurrency)
}

func TestLoad_BadFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "gavel", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed\n"), 0o644))

	_, err := Load(nil)
	assert.Error(t, err)
}

func TestInit(t *testing.T) {
	isolate(t)
	path, err := Init()
	require.NoError(t, err)
	assert.FileExists(t, path)

	// Second init must not clobber the file.
	_, err = Init()
	assert.Error(t, err)
}

func TestSetAndGet(t *testing.T) {
	isolate(t)
	require.NoError(t, Set("backend", "ollama"))
	got, err := Get("backend")
	require.NoError(t, err)
	assert.Equal(t, "ollama", got)

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Backend)
}

func TestSet_UnknownKey(t *testing.T) {
	isolate(t)
	err := Set("no_such_key", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "backend")
	assert.Contains(t, keys, "api_call_budget")
	assert.Contains(t, keys, "min_request_interval")
	assert.IsIncreasing(t, keys)
}
