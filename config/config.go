// Package config holds the runtime configuration of the chainstate layer.
// These settings are supplied by the embedding node process; nothing here
// affects consensus.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the state layer's runtime configuration.
type Config struct {
	// DataDir is the root directory for the on-disk database.
	DataDir string

	// InMemory runs the whole layer against an in-memory store. Used by
	// tests and throwaway nodes; nothing is persisted.
	InMemory bool

	// Wipe starts from an empty store, discarding any existing state.
	Wipe bool

	// CacheMB is the database block cache size in MiB. Zero uses the
	// engine default.
	CacheMB int64

	// TxIndex enables the transaction-position index.
	TxIndex bool

	// ScriptIndex enables incremental maintenance of the script-hash
	// index on every applied diff.
	ScriptIndex bool

	// RewardRateLookup selects the reward-rate read policy: "exact"
	// (snapshot at the queried height only) or "floor" (latest snapshot
	// at or before the height).
	RewardRateLookup string

	// Log configures the layer's logging.
	Log LogConfig
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string // debug, info, warn, error
	JSON  bool
	File  string
}

// Reward-rate lookup policies.
const (
	RewardRateLookupExact = "exact"
	RewardRateLookupFloor = "floor"
)

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		DataDir:          DefaultDataDir(),
		CacheMB:          DefaultCacheMB,
		RewardRateLookup: RewardRateLookupExact,
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultCacheMB is the default database block cache size.
const DefaultCacheMB = 256

// DefaultDataDir returns the platform data directory for the chainstate.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "chainstate"
	}
	return filepath.Join(home, ".chainstate")
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if !c.InMemory && c.DataDir == "" {
		return fmt.Errorf("datadir must be set unless running in memory")
	}
	if c.CacheMB < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.CacheMB)
	}
	switch c.RewardRateLookup {
	case RewardRateLookupExact, RewardRateLookupFloor:
	default:
		return fmt.Errorf("unknown reward rate lookup policy %q", c.RewardRateLookup)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
