package cmd

import (
	"fmt"
	"os"

	"github.com/benoit-pierre/buildcache/internal/config"
	"github.com/benoit-pierre/buildcache/internal/facade"
	"github.com/benoit-pierre/buildcache/internal/remote"
	"github.com/benoit-pierre/buildcache/internal/store"
	"github.com/benoit-pierre/buildcache/internal/wrapper"
)

// runWrap is the "we're running as a compiler wrapper" path: resolve config, open the
// store, pick a wrapper for programPath, and hand off to the driver's fixed algorithm.
// A caching failure of any kind must never surface as a build failure, so every error
// returned here is one the underlying tool itself could not be started for at all.
func runWrap(programPath string, args []string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	closeLog := configureLogging(cfg)
	defer closeLog()

	st, err := store.New(cfg.Dir, cfg.MaxCacheSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}
	defer st.Close()

	fac := facade.New(st, selectRemote(cfg), cfg.MaxLocalEntrySize, cfg.MaxRemoteEntrySize, cfg.Compress, cfg.ReadOnlyRemote)
	driver := wrapper.NewDriver(fac)

	code, err := driver.HandleCommand(programPath, args, os.Environ(), selectWrapper(programPath), cfg.HardLinks, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** %v\n", err)
		return 1
	}
	return code
}

// selectWrapper picks the wrapper able to handle programPath. Concrete per-tool-family
// wrappers (GCC-like, MSVC-like, Green Hills, scripted) are external collaborators per
// spec.md §1; this module carries only the wrapper framework and contract, so every
// program falls through to Passthrough, the zero-capability reference wrapper. A
// caller embedding this package with real wrappers would try each of them here first,
// falling back to Passthrough when none claims the command.
func selectWrapper(programPath string) wrapper.Wrapper {
	_ = programPath
	return wrapper.Passthrough{}
}

// selectRemote resolves the configured remote endpoint to a remote.Cache. Remote
// transport implementations (HTTP, S3, OCI registry, ...) are external collaborators
// per spec.md §1; without one configured in this module, every endpoint resolves to
// the disabled no-op.
func selectRemote(cfg *config.Config) remote.Cache {
	_ = cfg
	return remote.Disabled{}
}
