// Package config loads and merges gavel configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (GAVEL_BACKEND, GAVEL_MODEL, GAVEL_API_CALL_BUDGET, ...)
//  3. Config file ($XDG_CONFIG_HOME/gavel/config.yaml)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Init] to write a default config
// file, and [Set] to update a single key in the config file.
package config
