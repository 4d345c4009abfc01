package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	snapshotBucket = []byte("catalog")
	snapshotKey    = []byte("snapshot")
)

// BoltCache stores the last catalog snapshot in a bbolt file.
type BoltCache struct {
	db *bbolt.DB
}

// OpenBoltCache opens or creates the cache file at path.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening catalog cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating catalog bucket: %w", err)
	}

	return &BoltCache{db: db}, nil
}

// Save overwrites the cached snapshot.
func (b *BoltCache) Save(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(snapshotBucket).Put(snapshotKey, data)
	})
}

// Load returns the cached snapshot. ok is false when nothing was saved yet.
func (b *BoltCache) Load() (snap Snapshot, ok bool, err error) {
	err = b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(snapshotBucket).Get(snapshotKey)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &snap); err != nil {
			return fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		ok = true
		return nil
	})
	return snap, ok, err
}

// Close closes the cache file.
func (b *BoltCache) Close() error {
	return b.db.Close()
}
