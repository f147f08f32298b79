package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/amaumene/seenarr/internal/models"
	"go.etcd.io/bbolt"
)

// IntentQueue persists pending remote intents in FIFO order.
// Keys are big-endian bucket sequence numbers so cursor order is insertion order.
type IntentQueue struct {
	db *bbolt.DB
}

func seqKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

// Enqueue appends an intent and returns its sequence number
func (q *IntentQueue) Enqueue(intent models.Intent) (uint64, error) {
	var seq uint64
	err := q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(intentBucket)
		next, err := b.NextSequence()
		if err != nil {
			return err
		}
		seq = next
		intent.Seq = seq

		data, err := json.Marshal(intent)
		if err != nil {
			return fmt.Errorf("marshal intent: %w", err)
		}
		return b.Put(seqKey(seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue intent: %w", err)
	}
	return seq, nil
}

// Pending returns all queued intents, oldest first.
// Entries that fail to decode can never run and are deleted.
func (q *IntentQueue) Pending() ([]models.Intent, error) {
	var intents []models.Intent
	err := q.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(intentBucket)
		var corrupt [][]byte
		err := b.ForEach(func(k, v []byte) error {
			var intent models.Intent
			if err := json.Unmarshal(v, &intent); err != nil {
				corrupt = append(corrupt, append([]byte{}, k...))
				return nil
			}
			intents = append(intents, intent)
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range corrupt {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("delete corrupt intent %x: %w", k, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read intents: %w", err)
	}
	return intents, nil
}

// Remove deletes a finished intent
func (q *IntentQueue) Remove(seq uint64) error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(intentBucket).Delete(seqKey(seq))
	})
}

// Clear drops every pending intent
func (q *IntentQueue) Clear() error {
	return q.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(intentBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(intentBucket)
		return err
	})
}

// Len returns the number of pending intents
func (q *IntentQueue) Len() (int, error) {
	var n int
	err := q.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(intentBucket).Stats().KeyN
		return nil
	})
	return n, err
}
