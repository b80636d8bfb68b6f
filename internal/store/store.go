package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/benoit-pierre/buildcache/internal/hash"
	"github.com/benoit-pierre/buildcache/internal/lock"
)

const (
	entryFileName    = "entry"
	entryStatsName   = "stats"
	manifestFileName = "manifest"
	globalConfigName = "config"
	globalStatsName  = "stats.db"
	directShardRoot  = "direct"
)

// Store is the local content-addressed store: a sharded directory tree of
// fingerprint-keyed entry bundles, guarded per-entry by internal/lock and bounded in
// total size by an eviction sweep run after every successful Add.
type Store struct {
	root         string
	maxCacheSize int64
	stats        *globalStats
}

// globalConfig is the JSON shape of the store's "config" snapshot: settings that, once
// set via the CLI, persist across invocations regardless of what the resolved Config
// says (currently just the eviction cap set by -M/--max-size).
type globalConfig struct {
	MaxCacheSize int64 `json:"max_cache_size"`
}

// New opens (creating if necessary) a Store rooted at dir. If a prior -M/--max-size
// invocation persisted an eviction cap into the store's "config" snapshot, it
// overrides maxCacheSize (spec.md §9's second Open Question).
func New(dir string, maxCacheSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}

	gs, err := openGlobalStats(filepath.Join(dir, globalStatsName))
	if err != nil {
		return nil, fmt.Errorf("store: open global stats: %w", err)
	}

	s := &Store{root: dir, maxCacheSize: maxCacheSize, stats: gs}
	if gc, ok := s.readGlobalConfig(); ok {
		s.maxCacheSize = gc.MaxCacheSize
	}
	return s, nil
}

// Close releases resources held by the store (the global stats database).
func (s *Store) Close() error {
	return s.stats.close()
}

func (s *Store) globalConfigPath() string {
	return filepath.Join(s.root, globalConfigName)
}

func (s *Store) readGlobalConfig() (*globalConfig, bool) {
	data, err := os.ReadFile(s.globalConfigPath())
	if err != nil {
		return nil, false
	}
	var gc globalConfig
	if err := json.Unmarshal(data, &gc); err != nil {
		return nil, false
	}
	return &gc, true
}

// SetMaxCacheSize persists a new eviction cap into the store's configuration snapshot
// and applies it immediately, implementing -M/--max-size.
func (s *Store) SetMaxCacheSize(n int64) error {
	data, err := json.Marshal(globalConfig{MaxCacheSize: n})
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.globalConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("store: set_max_cache_size: %w", err)
	}
	s.maxCacheSize = n
	return nil
}

// entryDir returns the sharded directory for a CacheEntry fingerprint.
func (s *Store) entryDir(fp hash.Fingerprint) string {
	h := fp.String()
	return filepath.Join(s.root, h[:2], h[2:])
}

// directDir returns the sharded directory for a direct-mode fingerprint, kept in a
// separate subtree so direct manifests never collide with entry directories.
func (s *Store) directDir(fp hash.Fingerprint) string {
	h := fp.String()
	return filepath.Join(s.root, directShardRoot, h[:2], h[2:])
}

// Lookup acquires the entry-local lock for fp, reads and validates the descriptor, and
// returns it along with the lock so the caller can extend exclusion through payload
// retrieval. The lock is returned on a miss too; Add, UpdateStats and LookupDirect do
// not take it as a parameter but acquire the entry lock themselves, so the caller must
// Close it before calling them for the same fingerprint. The returned entry is nil on
// a miss or on any corruption/I/O failure — both degrade identically per the store's
// failure semantics. The caller owns the returned Lock and must Close it.
func (s *Store) Lookup(fp hash.Fingerprint) (*CacheEntry, *lock.Lock) {
	dir := s.entryDir(fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).WithField("fingerprint", fp.String()).Warn("store: failed to create shard directory")
		return nil, nil
	}

	l := lock.Remote(filepath.Join(dir, entryFileName))
	if err := l.Lock(); err != nil {
		logrus.WithError(err).WithField("fingerprint", fp.String()).Warn("store: failed to acquire entry lock")
		return nil, nil
	}

	entry, err := s.readEntry(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("fingerprint", fp.String()).Debug("store: entry unreadable, treating as miss")
		}
		return nil, l
	}

	return entry, l
}

func (s *Store) readEntry(dir string) (*CacheEntry, error) {
	data, err := os.ReadFile(filepath.Join(dir, entryFileName))
	if err != nil {
		return nil, err
	}
	return decodeEntry(data)
}

// GetFile materializes one payload slot to targetPath: a hard link when allowHardLinks
// is set and the store and target share a filesystem, otherwise a copy; decompressed
// in transit if compressed is set.
func (s *Store) GetFile(fp hash.Fingerprint, slotID, targetPath string, compressed, allowHardLinks bool) error {
	src := filepath.Join(s.entryDir(fp), slotID)

	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return fmt.Errorf("store: create target dir: %w", err)
	}

	if !compressed && allowHardLinks {
		_ = os.Remove(targetPath)
		if err := os.Link(src, targetPath); err == nil {
			return nil
		}
		// Cross-device or unsupported: fall through to a copy.
	}

	return materialize(src, targetPath, compressed)
}

func materialize(src, dst string, compressed bool) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("store: open payload: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("store: create target: %w", err)
	}
	defer out.Close()

	var reader io.Reader = in
	if compressed {
		zr, err := zstd.NewReader(in)
		if err != nil {
			return fmt.Errorf("store: open compressed payload: %w", err)
		}
		defer zr.Close()
		reader = zr
	}

	if _, err := io.Copy(out, reader); err != nil {
		return fmt.Errorf("store: materialize payload: %w", err)
	}

	srcInfo, err := os.Stat(src)
	if err == nil {
		_ = os.Chmod(dst, srcInfo.Mode())
	}
	return nil
}

// Add serializes entry's descriptor and ingests every expected file's payload under
// fp's entry directory, then runs an eviction sweep if the store is now over its size
// cap. The operation is atomic at entry granularity: on any failure the partial
// directory is torn down and the caller is not told (per spec, add failures are logged
// and swallowed, never surfaced as build failures).
func (s *Store) Add(fp hash.Fingerprint, entry *CacheEntry, expectedFiles []ExpectedFile, allowHardLinks bool) error {
	dir := s.entryDir(fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).WithField("fingerprint", fp.String()).Warn("store: add: failed to create shard directory")
		return nil
	}

	l := lock.Remote(filepath.Join(dir, entryFileName))

	ok, err := l.TryLock()
	if err != nil {
		logrus.WithError(err).WithField("fingerprint", fp.String()).Warn("store: add: lock attempt failed")
		return nil
	}
	if !ok {
		// Another process is already populating this fingerprint; let it finish.
		return nil
	}
	if err := s.addLocked(dir, fp, entry, expectedFiles); err != nil {
		logrus.WithError(err).WithField("fingerprint", fp.String()).Warn("store: add failed, discarding partial entry")
		_ = os.RemoveAll(dir)
		_ = l.Close()
		return nil
	}

	// Release the entry lock before the sweep so the entry just added is itself
	// eligible for eviction when it alone exceeds the cap.
	_ = l.Close()
	s.maybeEvict()
	return nil
}

func (s *Store) addLocked(dir string, fp hash.Fingerprint, entry *CacheEntry, expectedFiles []ExpectedFile) error {
	slots := make(map[string]string, len(expectedFiles))
	for _, ef := range expectedFiles {
		slots[ef.SlotID] = ef.Path
	}

	for _, id := range entry.FileIDs {
		path, ok := slots[id]
		if !ok {
			return fmt.Errorf("store: file_id %q has no declared expected slot", id)
		}
		dst := filepath.Join(dir, id)
		if err := ingest(path, dst, entry.CompressionMode == CompressionAll); err != nil {
			return fmt.Errorf("store: ingest %s: %w", id, err)
		}
	}

	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, entryFileName), data, 0o644); err != nil {
		return err
	}

	return writeEntryStats(filepath.Join(dir, entryStatsName), &entryStats{Counters: newStats()})
}

func ingest(src, dst string, compress bool) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if !compress {
		_, err := io.Copy(out, in)
		return err
	}

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return err
	}
	defer zw.Close()

	_, err = io.Copy(zw, in)
	return err
}

// LookupDirect resolves a direct-mode fingerprint to its manifest, validating that
// every implicit input still digests identically. A stale or missing manifest is a
// miss, identically to a missing CacheEntry.
func (s *Store) LookupDirect(directFP hash.Fingerprint) *DirectManifest {
	dir := s.directDir(directFP)
	if _, err := os.Stat(dir); err != nil {
		return nil
	}

	l := lock.Remote(filepath.Join(dir, manifestFileName))
	if err := l.Lock(); err != nil {
		logrus.WithError(err).Warn("store: failed to acquire direct manifest lock")
		return nil
	}
	defer l.Close()

	data, err := os.ReadFile(filepath.Join(dir, manifestFileName))
	if err != nil {
		return nil
	}

	manifest, err := decodeManifest(data)
	if err != nil {
		return nil
	}

	if !implicitInputsUnchanged(manifest) {
		return nil
	}

	return manifest
}

// AddDirect persists manifest for directFP, overwriting any manifest already present.
func (s *Store) AddDirect(directFP hash.Fingerprint, manifest *DirectManifest) error {
	dir := s.directDir(directFP)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).Warn("store: add_direct: failed to create directory")
		return nil
	}

	l := lock.Remote(filepath.Join(dir, manifestFileName))
	if err := l.Lock(); err != nil {
		logrus.WithError(err).Warn("store: add_direct: failed to acquire lock")
		return nil
	}
	defer l.Close()

	data, err := encodeManifest(manifest)
	if err != nil {
		logrus.WithError(err).Warn("store: add_direct: encode failed")
		return nil
	}

	if err := os.WriteFile(filepath.Join(dir, manifestFileName), data, 0o644); err != nil {
		logrus.WithError(err).Warn("store: add_direct: write failed")
	}
	return nil
}

// UpdateStats increments kind for fp's per-entry counters and the store's global
// counters. The caller need not already hold fp's entry lock; UpdateStats acquires it
// itself for the duration of the bump.
func (s *Store) UpdateStats(fp hash.Fingerprint, kind StatKind) {
	dir := s.entryDir(fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).Warn("store: update_stats: failed to create shard directory")
	} else {
		l := lock.Remote(filepath.Join(dir, entryFileName))
		if err := l.Lock(); err != nil {
			logrus.WithError(err).Warn("store: update_stats: failed to acquire lock")
		} else {
			if err := bumpEntryStats(filepath.Join(dir, entryStatsName), kind); err != nil {
				logrus.WithError(err).Debug("store: update_stats: per-entry bump failed")
			}
			_ = l.Close()
		}
	}

	if err := s.stats.bump(kind); err != nil {
		logrus.WithError(err).Debug("store: update_stats: global bump failed")
	}
}

// GetStats returns fp's per-entry counters.
func (s *Store) GetStats(fp hash.Fingerprint) (Stats, error) {
	es, err := readEntryStats(filepath.Join(s.entryDir(fp), entryStatsName))
	if err != nil {
		return nil, err
	}
	return es.Counters, nil
}

// GlobalStats returns the store-wide aggregated counters.
func (s *Store) GlobalStats() (Stats, error) {
	return s.stats.all()
}

// Size returns the total bytes currently counted toward the eviction cap (excluding
// config and global stats), for display by the show-stats CLI path.
func (s *Store) Size() (int64, error) {
	total, _, err := s.scanEntries()
	return total, err
}

// Clear removes every cached entry and direct manifest, but preserves the global
// configuration snapshot and resets (rather than deletes) the global stats database.
func (s *Store) Clear() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("store: clear: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if name == globalConfigName || name == globalStatsName {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.root, name)); err != nil {
			return fmt.Errorf("store: clear: remove %s: %w", name, err)
		}
	}

	return s.stats.reset()
}
