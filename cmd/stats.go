package cmd

import (
	"fmt"
	"os"

	"github.com/benoit-pierre/buildcache/internal/config"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// statLabels orders the counters for display and gives each a human-readable label.
var statLabels = []struct {
	kind  store.StatKind
	label string
}{
	{store.DirectHit, "Direct hits"},
	{store.DirectMiss, "Direct misses"},
	{store.PreprocessorHit, "Preprocessor hits"},
	{store.PreprocessorMiss, "Preprocessor misses"},
	{store.LocalHit, "Local hits"},
	{store.RemoteHit, "Remote hits"},
	{store.RemoteMiss, "Remote misses"},
	{store.LocalAdd, "Local entries added"},
	{store.RemoteAdd, "Remote entries added"},
}

// runStats implements -s/--show-stats: print global counters plus the current cache
// size against its configured cap.
func runStats() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	st, err := store.New(cfg.Dir, cfg.MaxCacheSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}
	defer st.Close()

	stats, err := st.GlobalStats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	size, err := st.Size()
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	fmt.Printf("Cache directory:   %s\n", cfg.Dir)
	fmt.Printf("Cache size:        %s / %s\n", config.FormatSize(size), config.FormatSize(cfg.MaxCacheSize))
	fmt.Println()
	for _, sl := range statLabels {
		fmt.Printf("%-24s%d\n", sl.label+":", stats[sl.kind])
	}
	return 0
}

// runSetMaxSize implements -M/--max-size: parse sizeArg and persist it as the store's
// eviction cap, completing the binding the original left as a TODO.
func runSetMaxSize(sizeArg string) int {
	n, err := config.ParseSize(sizeArg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Invalid size: %v\n", err)
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	st, err := store.New(cfg.Dir, cfg.MaxCacheSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}
	defer st.Close()

	if err := st.SetMaxCacheSize(n); err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	fmt.Printf("Maximum cache size set to %s\n", config.FormatSize(n))
	return 0
}
