package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	deliveryBucket = "deliveries"
	timeKeyBytes   = 8
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	recordTTL       time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// storedRecord carries the expiry next to the record.
type storedRecord struct {
	Record
	ExpiresAt time.Time `json:"expiresAt"`
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(deliveryBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		recordTTL:       opts.RecordTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Record stores rec keyed by start time so cursor order is chronological.
func (b *boltStore) Record(rec Record) error {
	if b == nil || b.db == nil {
		return nil
	}
	if rec.ID == "" {
		return fmt.Errorf("record id is required")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now.UTC()
	}

	value, err := json.Marshal(storedRecord{Record: rec, ExpiresAt: now.Add(b.recordTTL).UTC()})
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveryBucket))
		if bucket == nil {
			return fmt.Errorf("delivery bucket missing")
		}
		return bucket.Put(recordKey(rec), value)
	})
}

// Recent returns up to limit unexpired records, newest first.
func (b *boltStore) Recent(limit int) ([]Record, error) {
	out := []Record{}
	if b == nil || b.db == nil || limit <= 0 {
		return out, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return nil, err
	}

	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveryBucket))
		if bucket == nil {
			return fmt.Errorf("delivery bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.Last(); k != nil && len(out) < limit; k, v = cursor.Prev() {
			stored, ok := decodeRecord(v)
			if !ok || !stored.ExpiresAt.After(now) {
				continue
			}
			out = append(out, stored.Record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// maybeCleanupExpired removes expired records on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(deliveryBucket))
		if bucket == nil {
			return fmt.Errorf("delivery bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			stored, ok := decodeRecord(v)
			if !ok || !stored.ExpiresAt.After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

// recordKey is the big-endian start time followed by the record id.
func recordKey(rec Record) []byte {
	key := make([]byte, timeKeyBytes, timeKeyBytes+len(rec.ID))
	binary.BigEndian.PutUint64(key, uint64(rec.StartedAt.UnixNano()))
	return append(key, rec.ID...)
}

func decodeRecord(value []byte) (storedRecord, bool) {
	var stored storedRecord
	if err := json.Unmarshal(value, &stored); err != nil {
		return storedRecord{}, false
	}
	if stored.ExpiresAt.IsZero() {
		return storedRecord{}, false
	}
	return stored, true
}
