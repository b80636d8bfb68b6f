// Package facade orchestrates the store and the remote cache into the single
// direct/preprocessor/local/remote lookup-and-add protocol the wrapper driver consumes.
// It is a near-direct translation of the original cache_t::lookup/add/lookup_direct/
// add_direct methods, re-expressed with explicit Go error returns instead of
// throw-to-signal-a-miss control flow.
package facade

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/benoit-pierre/buildcache/internal/hash"
	"github.com/benoit-pierre/buildcache/internal/remote"
	"github.com/benoit-pierre/buildcache/internal/store"
)

// Result is the outcome of a Lookup/LookupDirect call.
type Result struct {
	Hit        bool
	ReturnCode int
}

// Facade is the cache's single entry point for the wrapper driver: direct-mode lookup,
// preprocessor-mode lookup, local store, remote store, in that preference order, with
// size-gated admission into both tiers on Add.
type Facade struct {
	store  *store.Store
	remote remote.Cache

	maxLocalEntrySize  int64
	maxRemoteEntrySize int64
	compress           bool
	readOnlyRemote     bool

	group singleflight.Group
}

// New creates a Facade over an already-open Store and a remote Cache (use
// remote.Disabled{} when no remote endpoint is configured).
func New(s *store.Store, r remote.Cache, maxLocalEntrySize, maxRemoteEntrySize int64, compress, readOnlyRemote bool) *Facade {
	return &Facade{
		store:              s,
		remote:             r,
		maxLocalEntrySize:  maxLocalEntrySize,
		maxRemoteEntrySize: maxRemoteEntrySize,
		compress:           compress,
		readOnlyRemote:     readOnlyRemote,
	}
}

// Lookup tries the local store, then (on a local miss) the remote store, mirroring any
// remote hit back into the local store. On a hit, every file_id in the cached entry is
// materialized to its declared expected path and stdout/stderr/return-code are
// returned for the driver to replay.
func (f *Facade) Lookup(fp hash.Fingerprint, expectedFiles []store.ExpectedFile, allowHardLinks, createTargetDirs bool) (Result, []byte, []byte, error) {
	v, err, _ := f.group.Do("lookup:"+fp.String(), func() (interface{}, error) {
		return f.lookupOnce(fp, expectedFiles, allowHardLinks, createTargetDirs)
	})
	if err != nil {
		return Result{}, nil, nil, err
	}
	lr := v.(lookupOutcome)
	return lr.result, lr.stdout, lr.stderr, nil
}

type lookupOutcome struct {
	result Result
	stdout []byte
	stderr []byte
}

func (f *Facade) lookupOnce(fp hash.Fingerprint, expectedFiles []store.ExpectedFile, allowHardLinks, createTargetDirs bool) (lookupOutcome, error) {
	entry, l := f.store.Lookup(fp)

	if entry != nil {
		out, stdout, stderr, err := f.materializeLocalHit(fp, entry, expectedFiles, allowHardLinks, createTargetDirs)
		// The entry lock spans descriptor read and payload materialization only:
		// UpdateStats and a mirroring Add acquire the same lock themselves.
		if l != nil {
			l.Close()
		}
		if err == nil {
			f.store.UpdateStats(fp, store.LocalHit)
			return lookupOutcome{result: Result{Hit: true, ReturnCode: out}, stdout: stdout, stderr: stderr}, nil
		}
		logrus.WithError(err).WithField("fingerprint", fp.String()).Warn("facade: cache inconsistency, treating local hit as miss")
	} else if l != nil {
		l.Close()
	}

	if f.remote.IsConnected() {
		remoteEntry, err := f.remote.Lookup(fp)
		if err != nil {
			logrus.WithError(err).Warn("facade: remote lookup failed")
		} else if remoteEntry != nil {
			f.store.UpdateStats(fp, store.RemoteHit)
			out, stdout, stderr, err := f.materializeRemoteHit(fp, remoteEntry, expectedFiles, allowHardLinks, createTargetDirs)
			if err == nil {
				f.mirrorToLocal(fp, remoteEntry, expectedFiles, allowHardLinks)
				return lookupOutcome{result: Result{Hit: true, ReturnCode: out}, stdout: stdout, stderr: stderr}, nil
			}
			logrus.WithError(err).Warn("facade: remote hit materialization failed, treating as miss")
		} else {
			f.store.UpdateStats(fp, store.RemoteMiss)
		}
	}

	return lookupOutcome{result: Result{Hit: false}}, nil
}

func (f *Facade) materializeLocalHit(fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile, allowHardLinks, createTargetDirs bool) (int, []byte, []byte, error) {
	if err := materializeEntry(f.store, fp, entry, expectedFiles, allowHardLinks, createTargetDirs, entry.CompressionMode == store.CompressionAll); err != nil {
		return 0, nil, nil, err
	}
	return entry.ReturnCode, entry.Stdout, entry.Stderr, nil
}

func (f *Facade) materializeRemoteHit(fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile, allowHardLinks, createTargetDirs bool) (int, []byte, []byte, error) {
	slots := expectedSlotSet(expectedFiles)
	for _, id := range entry.FileIDs {
		target, ok := slots[id]
		if !ok {
			return 0, nil, nil, fmt.Errorf("facade: remote file_id %q has no declared expected slot", id)
		}
		if createTargetDirs {
			if err := ensureParentDir(target.Path); err != nil {
				return 0, nil, nil, err
			}
		}
		// Remote entries are always fully compressed regardless of local policy.
		if err := f.remote.GetFile(fp, id, target.Path, true); err != nil {
			return 0, nil, nil, err
		}
	}
	return entry.ReturnCode, entry.Stdout, entry.Stderr, nil
}

// mirrorToLocal writes a remote hit into the local store too, per spec.md §9's first
// Open Question: the mirror's compression follows *local* compress configuration,
// independent of the remote entry's (always-ALL) compression, and this re-encode is
// deliberately not gated on the size cap before the next eviction sweep. Mirror
// failures are logged, never fatal.
func (f *Facade) mirrorToLocal(fp hash.Fingerprint, remoteEntry *store.CacheEntry, expectedFiles []store.ExpectedFile, allowHardLinks bool) {
	mode := store.CompressionNone
	if f.compress {
		mode = store.CompressionAll
	}

	mirrored := &store.CacheEntry{
		FileIDs:         remoteEntry.FileIDs,
		CompressionMode: mode,
		Stdout:          remoteEntry.Stdout,
		Stderr:          remoteEntry.Stderr,
		ReturnCode:      remoteEntry.ReturnCode,
	}

	// The payloads have just been materialized to their expected paths by
	// materializeRemoteHit; reuse those paths as the ingest source for the mirror.
	if err := f.store.Add(fp, mirrored, expectedFiles, allowHardLinks); err != nil {
		logrus.WithError(err).Warn("facade: local mirror of remote hit failed")
	}
}

// LookupDirect resolves the direct manifest for directFP and, if every implicit input
// still matches, delegates to Lookup using the manifest's preprocessor fingerprint.
// Stats for direct_hit/direct_miss are recorded against directFP; everything
// downstream is recorded against the preprocessor fingerprint.
func (f *Facade) LookupDirect(directFP hash.Fingerprint, expectedFiles []store.ExpectedFile, allowHardLinks, createTargetDirs bool) (Result, []byte, []byte, error) {
	manifest := f.store.LookupDirect(directFP)
	if manifest == nil {
		f.store.UpdateStats(directFP, store.DirectMiss)
		return Result{}, nil, nil, nil
	}

	f.store.UpdateStats(directFP, store.DirectHit)
	return f.Lookup(manifest.PreprocessorHash, expectedFiles, allowHardLinks, createTargetDirs)
}

// Add computes the entry's total size and admits it into the local store (if under
// max_local_entry_size; compressed when the façade's compress setting is on) and,
// symmetrically, into the remote store (if connected, writable, and under
// max_remote_entry_size; remote entries are always fully compressed). Remote errors
// are caught and downgraded to warnings.
func (f *Facade) Add(fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile, allowHardLinks bool) error {
	_, err, _ := f.group.Do("add:"+fp.String(), func() (interface{}, error) {
		f.addOnce(fp, entry, expectedFiles, allowHardLinks)
		return nil, nil
	})
	return err
}

func (f *Facade) addOnce(fp hash.Fingerprint, entry *store.CacheEntry, expectedFiles []store.ExpectedFile, allowHardLinks bool) {
	total := totalSize(entry, expectedFiles)

	if f.maxLocalEntrySize <= 0 || total < f.maxLocalEntrySize {
		localEntry := *entry
		localEntry.CompressionMode = store.CompressionNone
		if f.compress {
			localEntry.CompressionMode = store.CompressionAll
		}
		if err := f.store.Add(fp, &localEntry, expectedFiles, allowHardLinks); err != nil {
			logrus.WithError(err).Warn("facade: local add failed")
		} else {
			f.store.UpdateStats(fp, store.LocalAdd)
		}
	}

	if !f.remote.IsConnected() || f.readOnlyRemote {
		return
	}
	if f.maxRemoteEntrySize > 0 && total >= f.maxRemoteEntrySize {
		return
	}

	remoteEntry := &store.CacheEntry{
		FileIDs:         entry.FileIDs,
		CompressionMode: store.CompressionAll,
		Stdout:          entry.Stdout,
		Stderr:          entry.Stderr,
		ReturnCode:      entry.ReturnCode,
	}
	if err := f.remote.Add(fp, remoteEntry, expectedFiles); err != nil {
		logrus.WithError(err).Warn("facade: remote add failed")
		return
	}
	f.store.UpdateStats(fp, store.RemoteAdd)
}

// AddDirect hashes each implicit input, builds a DirectManifest, and writes it to the
// local store. Errors are logged and swallowed.
func (f *Facade) AddDirect(directFP, preprocessorFP hash.Fingerprint, implicitInputPaths []string) {
	inputs := make(map[string]hash.Fingerprint, len(implicitInputPaths))
	for _, path := range implicitInputPaths {
		fp, err := hash.File(path)
		if err != nil {
			logrus.WithError(err).WithField("path", path).Warn("facade: add_direct: failed to hash implicit input")
			continue
		}
		inputs[path] = fp
	}

	manifest := &store.DirectManifest{PreprocessorHash: preprocessorFP, ImplicitInputs: inputs}
	if err := f.store.AddDirect(directFP, manifest); err != nil {
		logrus.WithError(err).Warn("facade: add_direct failed")
	}
}

func totalSize(entry *store.CacheEntry, expectedFiles []store.ExpectedFile) int64 {
	total := int64(len(entry.Stdout) + len(entry.Stderr))
	slots := expectedSlotSet(expectedFiles)
	for _, id := range entry.FileIDs {
		if ef, ok := slots[id]; ok {
			if size, err := fileSize(ef.Path); err == nil {
				total += size
			}
		}
	}
	return total
}
