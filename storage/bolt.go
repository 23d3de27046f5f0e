package storage

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var boltBucket = []byte("state")

// BoltDB stores every key in a single bbolt bucket.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB opens (creating when needed) the bbolt file at path.
func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: init bolt bucket: %w", err)
	}
	return &BoltDB{db: db}, nil
}

func (b *BoltDB) Put(key []byte, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(boltBucket).Put(key, value)
	})
}

func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(boltBucket).Get(key)
		if raw == nil {
			return ErrNotFound
		}
		// bbolt values are only valid inside the transaction.
		out = append([]byte(nil), raw...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (b *BoltDB) Has(key []byte) (bool, error) {
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(boltBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (b *BoltDB) NewBatch() Batch {
	return &boltBatch{db: b.db}
}

func (b *BoltDB) Close() {
	_ = b.db.Close()
}

type boltBatch struct {
	db     *bolt.DB
	writes []kv
}

func (b *boltBatch) Put(key []byte, value []byte) {
	b.writes = append(b.writes, kv{
		key:   append([]byte(nil), key...),
		value: append([]byte(nil), value...),
	})
}

func (b *boltBatch) Len() int { return len(b.writes) }

func (b *boltBatch) Write() error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		for _, w := range b.writes {
			if err := bucket.Put(w.key, w.value); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	b.writes = nil
	return nil
}
