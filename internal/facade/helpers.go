package facade

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/benoit-pierre/buildcache/internal/hash"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// expectedSlotSet indexes expectedFiles by slot_id for quick lookup during
// materialization.
func expectedSlotSet(expectedFiles []store.ExpectedFile) map[string]store.ExpectedFile {
	m := make(map[string]store.ExpectedFile, len(expectedFiles))
	for _, ef := range expectedFiles {
		m[ef.SlotID] = ef
	}
	return m
}

// materializeEntry writes every file_id of entry to its declared expected path via the
// local store. Any file_id with no matching declared slot is a cache-inconsistency:
// the whole hit is aborted and reported to the caller as an error (the façade
// downgrades this to a miss).
func materializeEntry(s *store.Store, fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile, allowHardLinks, createTargetDirs, compressed bool) error {
	slots := expectedSlotSet(expectedFiles)

	for _, id := range entry.FileIDs {
		ef, ok := slots[id]
		if !ok {
			return fmt.Errorf("facade: cache inconsistency: file_id %q has no declared expected slot", id)
		}

		if createTargetDirs {
			if err := ensureParentDir(ef.Path); err != nil {
				return err
			}
		}

		if err := s.GetFile(fp, id, ef.Path, compressed, allowHardLinks); err != nil {
			return err
		}
	}

	return nil
}

func ensureParentDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
