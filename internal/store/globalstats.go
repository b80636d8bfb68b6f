package store

import (
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"
)

// globalStatsBucket is the single bbolt bucket holding the store-wide counters. Unlike
// per-entry stats (plain JSON, already serialized by that entry's own file lock),
// the global counters file is touched from every process/goroutine that updates any
// fingerprint, so it benefits from bbolt's transactional read-modify-write instead of a
// second hand-rolled locking layer.
const globalStatsBucket = "global_stats"

type globalStats struct {
	db *bbolt.DB
}

func openGlobalStats(path string) (*globalStats, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(globalStatsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &globalStats{db: db}, nil
}

func (g *globalStats) close() error {
	if g.db == nil {
		return nil
	}
	return g.db.Close()
}

func (g *globalStats) bump(kind StatKind) error {
	return g.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(globalStatsBucket))
		key := []byte(kind)
		var v int64
		if raw := b.Get(key); raw != nil {
			v = int64(binary.BigEndian.Uint64(raw))
		}
		v++
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v))
		return b.Put(key, buf)
	})
}

func (g *globalStats) all() (Stats, error) {
	s := newStats()
	err := g.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(globalStatsBucket))
		return b.ForEach(func(k, v []byte) error {
			s[StatKind(k)] = int64(binary.BigEndian.Uint64(v))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (g *globalStats) reset() error {
	return g.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(globalStatsBucket)); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(globalStatsBucket))
		return err
	})
}
