package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	reportedBucket = "reported"
	// entry layout: 8-byte big-endian expiry (unix seconds) + 2-byte build status.
	entryValueBytes = 10
)

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	entryTTL        time.Duration
	cleanupInterval time.Duration
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
		_, err := tx.CreateBucketIfNotExists([]byte(reportedBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		entryTTL:        opts.EntryTTL,
		cleanupInterval: opts.CleanupInterval,
	}
	store.lastCleanup.Store(time.Now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Reported reports whether build id was already published with this status.
// A stored entry with a different status or past its expiry does not count.
func (b *boltStore) Reported(id uint64, status uint16) (bool, error) {
	if b == nil || b.db == nil {
		return false, nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return false, err
	}

	var reported bool
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportedBucket))
		if bucket == nil {
			return fmt.Errorf("reported bucket missing")
		}

		key := buildKey(id)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		expiry, stored, ok := decodeEntry(value)
		if !ok || !expiry.After(now) {
			return bucket.Delete(key)
		}

		reported = stored == status
		return nil
	})
	return reported, err
}

// MarkReported records that build id was published with status.
func (b *boltStore) MarkReported(id uint64, status uint16) error {
	if b == nil || b.db == nil {
		return nil
	}

	now := time.Now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(reportedBucket))
		if bucket == nil {
			return fmt.Errorf("reported bucket missing")
		}
		return bucket.Put(buildKey(id), encodeEntry(now.Add(b.entryTTL), status))
	})
}

// maybeCleanupExpired removes expired entries on a fixed cadence to avoid unbounded growth.
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
		bucket := tx.Bucket([]byte(reportedBucket))
		if bucket == nil {
			return fmt.Errorf("reported bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			expiry, _, ok := decodeEntry(v)
			if !ok || !expiry.After(now) {
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

func buildKey(id uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, id)
	return key
}

func encodeEntry(expiry time.Time, status uint16) []byte {
	buf := make([]byte, entryValueBytes)
	binary.BigEndian.PutUint64(buf[:8], uint64(expiry.Unix()))
	binary.BigEndian.PutUint16(buf[8:], status)
	return buf
}

// decodeEntry decodes the expiry time and status from the stored byte slice.
func decodeEntry(value []byte) (time.Time, uint16, bool) {
	if len(value) != entryValueBytes {
		return time.Time{}, 0, false
	}
	unix := int64(binary.BigEndian.Uint64(value[:8]))
	if unix <= 0 {
		return time.Time{}, 0, false
	}
	return time.Unix(unix, 0), binary.BigEndian.Uint16(value[8:]), true
}
