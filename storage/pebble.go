package storage

import (
	"errors"

	"github.com/cockroachdb/pebble"
)

// PebbleDB is a persistent key-value store backed by CockroachDB's pebble.
type PebbleDB struct {
	db *pebble.DB
}

// NewPebbleDB opens (creating when needed) a pebble store in dir.
func NewPebbleDB(dir string) (*PebbleDB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Put(key []byte, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	value, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), value...), nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	_, err := p.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{batch: p.db.NewBatch()}
}

func (p *PebbleDB) Close() {
	_ = p.db.Close()
}

type pebbleBatch struct {
	batch *pebble.Batch
	count int
}

func (b *pebbleBatch) Put(key []byte, value []byte) {
	// Set on an indexed batch only fails once the batch is committed or closed.
	_ = b.batch.Set(key, value, nil)
	b.count++
}

func (b *pebbleBatch) Len() int { return b.count }

func (b *pebbleBatch) Write() error {
	if err := b.batch.Commit(pebble.Sync); err != nil {
		return err
	}
	b.count = 0
	return b.batch.Close()
}
