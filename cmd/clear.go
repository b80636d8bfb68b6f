package cmd

import (
	"fmt"
	"os"

	"github.com/benoit-pierre/buildcache/internal/store"
)

// runClear implements -C/--clear: wipe every cached entry and direct manifest, keeping
// the store's configuration snapshot and resetting (not deleting) global stats.
func runClear() int {
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

	if err := st.Clear(); err != nil {
		fmt.Fprintf(os.Stderr, "*** Unexpected error: %v\n", err)
		return 1
	}

	fmt.Println("Cache cleared")
	return 0
}
