package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the effective gavel configuration after merging all sources.
type Config struct {
	Backend string `mapstructure:"backend"`
	Model   string `mapstructure:"model"`
	Format  string `mapstructure:"format"`
	FailOn  string `mapstructure:"fail_on"`

	MaxTokensPerBatch int `mapstructure:"max_tokens_per_batch"`
	MaxFilesPerBatch  int `mapstructure:"max_files_per_batch"`
	APICallBudget     int `mapstructure:"api_call_budget"`
	BudgetFloor       int `mapstructure:"budget_floor"`

	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	RequestsPerMinute  int           `mapstructure:"requests_per_minute"`
	Concurrency        int           `mapstructure:"concurrency"`

	ContextLines int      `mapstructure:"context_lines"`
	MaxFileBytes int64    `mapstructure:"max_file_bytes"`
	ExcludeDirs  []string `mapstructure:"exclude_dirs"`

	LogLevel string `mapstructure:"log_level"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Backend:            "anthropic",
		Format:             "text",
		FailOn:             "none",
		MaxTokensPerBatch:  16000,
		MaxFilesPerBatch:   5,
		APICallBudget:      0,
		BudgetFloor:        2000,
		MinRequestInterval: 6 * time.Second,
		RequestsPerMinute:  10,
		Concurrency:        1,
		ContextLines:       3,
		MaxFileBytes:       256 * 1024,
		LogLevel:           "warn",
	}
}

// Dir returns the platform-appropriate config directory for gavel.
func Dir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gavel"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "gavel"), nil
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "gavel"), nil
		}
		return filepath.Join(home, "AppData", "Roaming", "gavel"), nil
	default:
		return filepath.Join(home, ".config", "gavel"), nil
	}
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	for key, val := range defaults() {
		v.SetDefault(key, val)
	}
	v.SetEnvPrefix("GAVEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !configMissing(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return v, nil
}

// Load builds the effective config by merging defaults, the config file,
// GAVEL_* environment variables, and the given flag set. A nil flag set
// skips the flag layer.
func Load(flags *pflag.FlagSet) (Config, error) {
	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("binding flags: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Init writes a config file populated with the defaults, creating the
// config directory if needed. Refuses to overwrite an existing file.
func Init() (string, error) {
	path, err := Path()
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	v := viper.New()
	for key, val := range defaults() {
		v.Set(key, val)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// Set updates a single key in the config file, creating the file if needed.
func Set(key, value string) error {
	if _, ok := defaults()[key]; !ok {
		return fmt.Errorf("unknown config key: %s (known keys: %s)",
			key, strings.Join(Keys(), ", "))
	}
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil && !configMissing(err) {
		return fmt.Errorf("reading config file: %w", err)
	}
	v.Set(key, value)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Get returns the effective value for a single key, merged across all
// sources except flags.
func Get(key string) (string, error) {
	if _, ok := defaults()[key]; !ok {
		return "", fmt.Errorf("unknown config key: %s", key)
	}
	v, err := newViper()
	if err != nil {
		return "", err
	}
	return v.GetString(key), nil
}

// Keys lists the known config keys, sorted.
func Keys() []string {
	d := defaults()
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// configMissing reports whether the error just means there is no config
// file yet, which is fine — defaults and env still apply.
func configMissing(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return os.IsNotExist(err) || errors.As(err, &notFound)
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"backend":              d.Backend,
		"model":                d.Model,
		"format":               d.Format,
		"fail_on":              d.FailOn,
		"max_tokens_per_batch": d.MaxTokensPerBatch,
		"max_files_per_batch":  d.MaxFilesPerBatch,
		"api_call_budget":      d.APICallBudget,
		"budget_floor":         d.BudgetFloor,
		"min_request_interval": d.MinRequestInterval,
		"requests_per_minute":  d.RequestsPerMinute,
		"concurrency":          d.Concurrency,
		"context_lines":        d.ContextLines,
		"max_file_bytes":       d.MaxFileBytes,
		"exclude_dirs":         d.ExcludeDirs,
		"log_level":            d.LogLevel,
	}
}
