package fieldcache

import (
	"context"
	"fmt"
	"time"

	cbor "github.com/brianolson/cbor_go"
	bolt "go.etcd.io/bbolt"
)

var fieldsBucket = []byte("fields")

// BoltCache keeps entries in a single bbolt file.
type BoltCache struct {
	db *bolt.DB
}

type boltEntry struct {
	Data      []byte `cbor:"d"`
	ExpiresAt int64  `cbor:"e"` // unix nanoseconds, 0 for never
}

func NewBoltCache(path string) (Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open field cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(fieldsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}
	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var raw []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(fieldsBucket).Get([]byte(key)); v != nil {
			// v is only valid inside the transaction
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false, err
	}

	var entry boltEntry
	if err := cbor.Loads(raw, &entry); err != nil {
		// unreadable entries are misses
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	if entry.ExpiresAt != 0 && time.Now().UnixNano() > entry.ExpiresAt {
		_ = c.Delete(ctx, key)
		return nil, false, nil
	}
	return entry.Data, true, nil
}

func (c *BoltCache) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	entry := boltEntry{Data: data}
	if ttl > 0 {
		entry.ExpiresAt = time.Now().Add(ttl).UnixNano()
	}
	raw, err := cbor.Dumps(entry)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fieldsBucket).Put([]byte(key), raw)
	})
}

func (c *BoltCache) Delete(ctx context.Context, key string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(fieldsBucket).Delete([]byte(key))
	})
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}

var _ Cache = (*BoltCache)(nil)
