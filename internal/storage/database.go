package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	stateBucket  = []byte("state")
	intentBucket = []byte("intents")
)

// Database wraps the bbolt file holding the library snapshot and pending intents
type Database struct {
	db *bbolt.DB
}

// NewDatabase opens (or creates) the database file and its buckets
func NewDatabase(path string) (*Database, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{stateBucket, intentBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// KV returns the key-value view of the state bucket
func (d *Database) KV() *BoltKV {
	return &BoltKV{db: d.db, bucket: stateBucket}
}

// Intents returns the persisted remote-intent queue
func (d *Database) Intents() *IntentQueue {
	return &IntentQueue{db: d.db}
}

// BoltKV implements KeyValue on a single bbolt bucket
type BoltKV struct {
	db     *bbolt.DB
	bucket []byte
}

// Get returns a copy of the stored value; found is false when the key is absent
func (kv *BoltKV) Get(key string) ([]byte, bool, error) {
	var (
		out   []byte
		found bool
	)
	err := kv.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(kv.bucket).Get([]byte(key))
		if v != nil {
			// bbolt values are only valid inside the transaction
			out = append([]byte{}, v...)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, found, nil
}

// Set stores value under key
func (kv *BoltKV) Set(key string, value []byte) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kv.bucket).Put([]byte(key), value)
	})
}

// Remove deletes key; removing a missing key is not an error
func (kv *BoltKV) Remove(key string) error {
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kv.bucket).Delete([]byte(key))
	})
}
