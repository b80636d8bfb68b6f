// Package cmd implements the driver binary's CLI surface: the canonical-name option
// mode (-C/-s/-M/-V/-h) and the two invocation modes that wrap an underlying tool
// (symlink-as-compiler, and "<canonical> <compiler> <args...>").
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/benoit-pierre/buildcache/internal/config"
	"github.com/benoit-pierre/buildcache/internal/version"
)

// canonicalName is the basename under which the driver recognizes its own option
// flags; invoked under any other name, argv[0] itself is taken to be the tool to wrap.
const canonicalName = "buildcache"

var rootCmd = &cobra.Command{
	Use:                canonicalName,
	Short:              "Transparent compiler-invocation cache",
	Long:               "buildcache sits in front of a compiler (or other build tool) invocation and\nreplays previously cached outputs instead of re-running it.",
	DisableFlagParsing: true,
	SilenceUsage:       true,
	SilenceErrors:      true,
	Args:               cobra.ArbitraryArgs,
}

// Execute runs the root command and exits the process. Every recognized code path
// below terminates via os.Exit directly (mirroring the original's per-branch
// std::exit); this is only reached for the small set of cobra-level failures that
// occur before runRoot gets a chance to dispatch.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.RunE = runRoot

	// These exist purely so internal/config's Loader has a flag to bind against
	// when a config file or environment variable sets the corresponding key;
	// DisableFlagParsing means none of them are ever actually parsed from argv
	// (the spec's CLI surface is -C/-s/-M/-V/-h only).
	flags := rootCmd.PersistentFlags()
	flags.String("dir", "", "cache root directory")
	flags.String("max-size", "", "maximum cache size")
	flags.Bool("compress", true, "compress local cache entries")
	flags.Bool("hard-links", false, "allow hardlink materialization")
	flags.Bool("read-only-remote", false, "suppress remote cache writes")
	flags.String("remote", "", "remote cache endpoint URL")
	flags.String("log-file", "", "diagnostic log file")
	flags.Bool("debug", false, "verbose diagnostic logging")
	flags.Bool("perf", false, "enable performance counters")
}

func runRoot(cmd *cobra.Command, args []string) error {
	if invoked := filepath.Base(os.Args[0]); invoked != canonicalName && invoked != canonicalName+".exe" {
		os.Exit(runWrap(os.Args[0], os.Args[1:]))
	}

	if len(args) == 0 {
		printHelp()
		os.Exit(1)
	}

	switch arg := args[0]; {
	case arg == "-C" || arg == "--clear":
		os.Exit(runClear())

	case arg == "-s" || arg == "--show-stats":
		os.Exit(runStats())

	case arg == "-V" || arg == "--version":
		printVersion()
		os.Exit(0)

	case arg == "-M" || arg == "--max-size":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "%s: option requires an argument -- %s\n", canonicalName, arg)
			printHelp()
			os.Exit(1)
		}
		os.Exit(runSetMaxSize(args[1]))

	case arg == "-h" || arg == "--help":
		printHelp()
		os.Exit(0)

	case len(arg) > 0 && arg[0] == '-':
		fmt.Fprintf(os.Stderr, "%s: invalid option -- %s\n", canonicalName, arg)
		printHelp()
		os.Exit(1)
	}

	os.Exit(runWrap(args[0], args[1:]))
	return nil
}

func printVersion() {
	fmt.Printf("buildcache version %s (%s) %s\n", version.Version, version.Commit, version.BuildTime)
}

func printHelp() {
	fmt.Printf(`Usage:
    %[1]s [options]
    %[1]s compiler [compiler-options]

Options:
    -C, --clear           clear the cache completely (except configuration)
    -M, --max-size SIZE   set maximum size of cache to SIZE (use 0 for no
                          limit); available suffixes: k, M, G, T (decimal) and
                          Ki, Mi, Gi, Ti (binary); default suffix: G
    -s, --show-stats      show statistics summary

    -h, --help            print this help text
    -V, --version         print version information
`, canonicalName)
}

// loadConfig resolves the Config for any of the driver's modes, from defaults, the
// global/local config files, and whatever of rootCmd's flags were bound (see init()).
func loadConfig() (*config.Config, error) {
	return config.NewLoader().LoadForWrap(rootCmd)
}

// configureLogging wires logrus' output and level to the resolved Config, per
// spec.md §6's log_file/debug options.
func configureLogging(cfg *config.Config) func() {
	logrus.SetOutput(os.Stderr)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	if cfg.LogFile == "" {
		return func() {}
	}

	f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logrus.WithError(err).Warn("cmd: failed to open log file, logging to stderr only")
		return func() {}
	}
	logrus.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() { f.Close() }
}
