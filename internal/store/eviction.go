package store

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/benoit-pierre/buildcache/internal/lock"
)

// candidate is one fingerprint directory under consideration for eviction.
type candidate struct {
	dir         string
	size        int64
	hits        int64
	lastUpdated int64 // UnixNano of LastUpdated; entries never hit carry the zero time.Time, which sorts first.
}

// maybeEvict acquires the store-level eviction lock and, if the store is now over its
// size cap, removes least-recently-used entries (ties broken by fewer hits, then by
// larger size) until it is back under cap. A zero or negative maxCacheSize means
// unlimited and disables eviction entirely.
func (s *Store) maybeEvict() {
	if s.maxCacheSize <= 0 {
		return
	}

	l := lock.Remote(filepath.Join(s.root, ".evict"))
	if err := l.Lock(); err != nil {
		logrus.WithError(err).Warn("store: eviction: failed to acquire eviction lock")
		return
	}
	defer l.Close()

	total, candidates, err := s.scanEntries()
	if err != nil {
		logrus.WithError(err).Warn("store: eviction: scan failed")
		return
	}
	if total <= s.maxCacheSize {
		return
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.lastUpdated != b.lastUpdated {
			return a.lastUpdated < b.lastUpdated
		}
		if a.hits != b.hits {
			return a.hits < b.hits
		}
		return a.size > b.size
	})

	for _, c := range candidates {
		if total <= s.maxCacheSize {
			break
		}
		if err := s.evictOne(c.dir); err != nil {
			logrus.WithError(err).WithField("dir", c.dir).Warn("store: eviction: failed to remove entry")
			continue
		}
		if _, err := os.Stat(c.dir); err == nil {
			// evictOne left a busy entry in place; its bytes still count.
			continue
		}
		total -= c.size
	}
}

// evictOne removes a fingerprint directory, taking its entry lock first so an
// in-flight lookup/add is never disturbed mid-operation.
func (s *Store) evictOne(dir string) error {
	l := lock.Remote(filepath.Join(dir, entryFileName))
	ok, err := l.TryLock()
	if err != nil {
		return err
	}
	if !ok {
		// Someone else is using this entry right now; leave it for the next sweep.
		return nil
	}
	defer l.Close()

	trash := dir + ".evicted"
	if err := os.Rename(dir, trash); err != nil {
		return err
	}
	return os.RemoveAll(trash)
}

// scanEntries walks every sharded entry directory under root (both the CacheEntry
// shard tree and the direct-manifest shard tree), returning the total bytes counted
// toward the cap (excluding the top-level config and global stats files, per spec's
// invariant) and one candidate per fingerprint directory found.
func (s *Store) scanEntries() (int64, []candidate, error) {
	var total int64
	var candidates []candidate

	topEntries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, nil, err
	}

	for _, top := range topEntries {
		name := top.Name()
		if name == globalConfigName || name == globalStatsName || !top.IsDir() {
			continue
		}
		if name == directShardRoot {
			// Direct manifests are small fixed-shape records; they still count toward
			// total bytes but are never themselves eviction candidates independent of
			// their resolved entry, so just add their size.
			size, err := dirSize(filepath.Join(s.root, name))
			if err == nil {
				total += size
			}
			continue
		}

		shardDir := filepath.Join(s.root, name)
		subEntries, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		for _, sub := range subEntries {
			if !sub.IsDir() {
				continue
			}
			dir := filepath.Join(shardDir, sub.Name())
			size, err := dirSize(dir)
			if err != nil {
				continue
			}
			total += size

			es, _ := readEntryStats(filepath.Join(dir, entryStatsName))
			var hits int64
			var lastUpdated int64
			if es != nil {
				hits = es.Counters[DirectHit] + es.Counters[PreprocessorHit] + es.Counters[LocalHit]
				lastUpdated = es.LastUpdated.UnixNano()
			}

			candidates = append(candidates, candidate{
				dir:         dir,
				size:        size,
				hits:        hits,
				lastUpdated: lastUpdated,
			})
		}
	}

	return total, candidates, nil
}

func dirSize(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole sweep.
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".lock") || strings.HasSuffix(path, ".local-lock") {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total, err
}
