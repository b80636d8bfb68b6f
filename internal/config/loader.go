package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForWrap loads configuration for a wrapped-command invocation: defaults, then
// global config, then a local config found by walking up from the working directory,
// then bound command flags (highest precedence).
func (l *Loader) LoadForWrap(cmd *cobra.Command) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper, and recognizes environment
// variables of the form BUILDCACHE_<OPTION> (e.g. BUILDCACHE_MAX_CACHE_SIZE) per
// spec.md §6's option table. An environment variable overrides config files and
// defaults and is itself overridden by an explicitly set flag.
func (l *Loader) setupViperDefaults() {
	viper.SetEnvPrefix("buildcache")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("max_cache_size", DefaultMaxCacheSize)
	viper.SetDefault("max_local_entry_size", DefaultMaxLocalEntrySize)
	viper.SetDefault("max_remote_entry_size", DefaultMaxRemoteEntrySize)
	viper.SetDefault("compress", DefaultCompress)
	viper.SetDefault("hard_links", DefaultHardLinks)
	viper.SetDefault("read_only_remote", DefaultReadOnlyRemote)
	viper.SetDefault("debug", DefaultDebug)
	viper.SetDefault("perf", DefaultPerf)
}

// loadGlobalConfig loads global configuration from the platform user config directory.
func (l *Loader) loadGlobalConfig() {
	base, err := os.UserConfigDir()
	if err != nil {
		return
	}

	globalDir := filepath.Join(base, "buildcache")
	for _, ext := range []string{"yml", "yaml", "json", "toml"} {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.ReadInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads a .buildcache.* file found by walking up from the working
// directory.
func (l *Loader) loadLocalConfig() {
	cwd, err := os.Getwd()
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	localPath := findLocalConfig(cwd)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
	}
}

// findLocalConfig walks up from dir looking for a .buildcache.<ext> file, stopping at
// the filesystem root.
func findLocalConfig(dir string) string {
	for {
		for _, ext := range []string{"yml", "yaml", "json", "toml"} {
			path := filepath.Join(dir, ".buildcache."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("dir", cmd.Flags().Lookup("dir"))
	_ = viper.BindPFlag("max_cache_size", cmd.Flags().Lookup("max-size"))
	_ = viper.BindPFlag("compress", cmd.Flags().Lookup("compress"))
	_ = viper.BindPFlag("hard_links", cmd.Flags().Lookup("hard-links"))
	_ = viper.BindPFlag("read_only_remote", cmd.Flags().Lookup("read-only-remote"))
	_ = viper.BindPFlag("remote", cmd.Flags().Lookup("remote"))
	_ = viper.BindPFlag("log_file", cmd.Flags().Lookup("log-file"))
	_ = viper.BindPFlag("debug", cmd.Flags().Lookup("debug"))
	_ = viper.BindPFlag("perf", cmd.Flags().Lookup("perf"))
}
