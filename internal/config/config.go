// Package config resolves the cache's configuration from defaults, config files, and
// command-line flags into a single immutable value threaded explicitly through the
// façade and wrapper framework (never read back out of global accessors).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	DefaultCacheDirName       = ".buildcache"
	DefaultMaxCacheSize       = 5 * 1000 * 1000 * 1000 // 5 GB, decimal
	DefaultMaxLocalEntrySize  = 0                       // unbounded
	DefaultMaxRemoteEntrySize = 0                       // unbounded
	DefaultCompress           = true
	DefaultHardLinks          = false
	DefaultReadOnlyRemote     = false
	DefaultDebug              = false
	DefaultPerf               = false
)

// Config holds the resolved configuration options for the cache, per spec.md §6's
// option table.
type Config struct {
	// Dir is the root path of the on-disk store.
	Dir string

	// MaxCacheSize is the total-bytes eviction cap. Zero means unlimited.
	MaxCacheSize int64

	// MaxLocalEntrySize is the per-entry admission cap for the local store. Zero
	// means unbounded.
	MaxLocalEntrySize int64

	// MaxRemoteEntrySize is the per-entry admission cap for the remote store. Zero
	// means unbounded.
	MaxRemoteEntrySize int64

	// Compress enables compression for entries stored in the local store.
	Compress bool

	// HardLinks permits hardlink materialization when the store and the target path
	// share a filesystem.
	HardLinks bool

	// ReadOnlyRemote suppresses Add calls to the remote cache.
	ReadOnlyRemote bool

	// Remote is the remote cache endpoint URL. Empty disables the remote cache.
	Remote string

	// LogFile is an optional path diagnostic log lines are written to, in addition to
	// stderr.
	LogFile string

	// Debug enables verbose diagnostic logging.
	Debug bool

	// Perf enables performance counters.
	Perf bool
}

// Load resolves a Config from whatever viper has accumulated (defaults, config files,
// bound flags, environment) at the time of the call.
func Load() (*Config, error) {
	cfg := &Config{
		Dir:            viper.GetString("dir"),
		Compress:       viper.GetBool("compress"),
		HardLinks:      viper.GetBool("hard_links"),
		ReadOnlyRemote: viper.GetBool("read_only_remote"),
		Remote:         viper.GetString("remote"),
		LogFile:        viper.GetString("log_file"),
		Debug:          viper.GetBool("debug"),
		Perf:           viper.GetBool("perf"),
	}

	var err error
	if cfg.MaxCacheSize, err = sizeSetting("max_cache_size", DefaultMaxCacheSize); err != nil {
		return nil, err
	}
	if cfg.MaxLocalEntrySize, err = sizeSetting("max_local_entry_size", DefaultMaxLocalEntrySize); err != nil {
		return nil, err
	}
	if cfg.MaxRemoteEntrySize, err = sizeSetting("max_remote_entry_size", DefaultMaxRemoteEntrySize); err != nil {
		return nil, err
	}

	if cfg.Dir == "" {
		dir, err := defaultCacheDir()
		if err != nil {
			return nil, err
		}
		cfg.Dir = dir
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// sizeSetting reads a viper key that may be either an already-numeric value (bound
// from, say, a config file's YAML integer) or a SIZE string (from an env var or a
// config file string), and resolves it through ParseSize.
func sizeSetting(key string, fallback int64) (int64, error) {
	if !viper.IsSet(key) {
		return fallback, nil
	}

	raw := viper.Get(key)
	switch v := raw.(type) {
	case string:
		if v == "" {
			return fallback, nil
		}
		return ParseSize(v)
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return ParseSize(fmt.Sprintf("%v", v))
	}
}

// Validate resolves relative paths to absolute ones and checks option consistency.
func (c *Config) Validate() error {
	if abs, err := filepath.Abs(c.Dir); err == nil {
		c.Dir = abs
	}

	if c.MaxCacheSize < 0 || c.MaxLocalEntrySize < 0 || c.MaxRemoteEntrySize < 0 {
		return fmt.Errorf("size options must not be negative")
	}

	return nil
}

// defaultCacheDir returns the platform cache directory joined with
// DefaultCacheDirName, falling back to the current working directory if the user
// cache directory can't be determined.
func defaultCacheDir() (string, error) {
	if base, err := os.UserCacheDir(); err == nil {
		return filepath.Join(base, DefaultCacheDirName), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to determine a default cache directory: %w", err)
	}
	return filepath.Join(cwd, DefaultCacheDirName), nil
}
