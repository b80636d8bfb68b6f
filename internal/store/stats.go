package store

import (
	"encoding/json"
	"os"
	"time"
)

// StatKind enumerates the counters tracked per-entry and globally.
type StatKind string

const (
	DirectHit        StatKind = "direct_hit"
	DirectMiss       StatKind = "direct_miss"
	PreprocessorHit  StatKind = "preprocessor_hit"
	PreprocessorMiss StatKind = "preprocessor_miss"
	LocalHit         StatKind = "local_hit"
	RemoteHit        StatKind = "remote_hit"
	RemoteMiss       StatKind = "remote_miss"
	LocalAdd         StatKind = "local_add"
	RemoteAdd        StatKind = "remote_add"
)

// allStatKinds is used when materializing a zero-valued Stats map.
var allStatKinds = []StatKind{
	DirectHit, DirectMiss, PreprocessorHit, PreprocessorMiss,
	LocalHit, RemoteHit, RemoteMiss, LocalAdd, RemoteAdd,
}

// Stats is a mapping from counter kind to count.
type Stats map[StatKind]int64

func newStats() Stats {
	s := make(Stats, len(allStatKinds))
	for _, k := range allStatKinds {
		s[k] = 0
	}
	return s
}

// entryStats is the on-disk shape of a per-entry "stats" file: the counters plus the
// last-updated timestamp eviction uses for LRU ordering.
type entryStats struct {
	Counters    Stats     `json:"counters"`
	LastUpdated time.Time `json:"last_updated"`
}

func readEntryStats(path string) (*entryStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &entryStats{Counters: newStats()}, nil
		}
		return nil, err
	}

	var es entryStats
	if err := json.Unmarshal(data, &es); err != nil {
		return &entryStats{Counters: newStats()}, nil
	}
	if es.Counters == nil {
		es.Counters = newStats()
	}
	return &es, nil
}

func writeEntryStats(path string, es *entryStats) error {
	data, err := json.Marshal(es)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// bumpEntryStats increments kind for the entry stats file at path, refreshing
// LastUpdated. Caller must already hold the entry's lock.
func bumpEntryStats(path string, kind StatKind) error {
	es, err := readEntryStats(path)
	if err != nil {
		return err
	}
	es.Counters[kind]++
	es.LastUpdated = time.Now()
	return writeEntryStats(path, es)
}
