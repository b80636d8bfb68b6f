// Package store implements the local, content-addressed on-disk cache: a sharded
// directory tree of fingerprint-keyed entry bundles, with size-bounded eviction and
// cross-process locking on every entry.
package store

import (
	"encoding/json"
	"fmt"
)

// entryVersion is stamped into every serialized descriptor. A reader that encounters a
// descriptor with a different version treats it as corrupt rather than attempting to
// interpret it.
const entryVersion = 1

// CompressionMode governs whether an entry's payload files are stored compressed.
type CompressionMode int

const (
	// CompressionNone stores payload files as-is.
	CompressionNone CompressionMode = iota
	// CompressionAll stores every payload file zstd-compressed.
	CompressionAll
)

// CacheEntry is the immutable, persisted record of one cached invocation.
type CacheEntry struct {
	// FileIDs are the logical output-slot identifiers this entry carries payloads for,
	// in the order the wrapper declared them.
	FileIDs []string

	// CompressionMode governs how the payload files beside this descriptor are stored.
	CompressionMode CompressionMode

	Stdout     []byte
	Stderr     []byte
	ReturnCode int
}

// ExpectedFile is a record declared by the wrapper at lookup/add time, used by the
// façade to match cached payload slots to target filesystem paths.
type ExpectedFile struct {
	SlotID   string
	Path     string
	Required bool
}

// descriptor is the on-disk shape of a CacheEntry: the version tag plus the entry
// fields, serialized with encoding/json (see DESIGN.md for why no third-party codec is
// used here).
type descriptor struct {
	Version         int             `json:"version"`
	FileIDs         []string        `json:"file_ids"`
	CompressionMode CompressionMode `json:"compression_mode"`
	Stdout          []byte          `json:"stdout"`
	Stderr          []byte          `json:"stderr"`
	ReturnCode      int             `json:"return_code"`
}

// errCorruptEntry is returned by decodeEntry when the descriptor is unreadable or
// carries an unrecognized version; callers treat this identically to a missing entry.
var errCorruptEntry = fmt.Errorf("store: corrupt entry descriptor")

func encodeEntry(e *CacheEntry) ([]byte, error) {
	d := descriptor{
		Version:         entryVersion,
		FileIDs:         e.FileIDs,
		CompressionMode: e.CompressionMode,
		Stdout:          e.Stdout,
		Stderr:          e.Stderr,
		ReturnCode:      e.ReturnCode,
	}
	return json.Marshal(d)
}

func decodeEntry(data []byte) (*CacheEntry, error) {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errCorruptEntry
	}
	if d.Version != entryVersion {
		return nil, errCorruptEntry
	}
	return &CacheEntry{
		FileIDs:         d.FileIDs,
		CompressionMode: d.CompressionMode,
		Stdout:          d.Stdout,
		Stderr:          d.Stderr,
		ReturnCode:      d.ReturnCode,
	}, nil
}
