// Package content stores listing payloads by hash. The marketplace core only
// records and compares the 32-byte hashes; blobs live here.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"lukechampine.com/blake3"

	coreerrors "listingchain/core/errors"
	"listingchain/storage"
)

// MaxBlobSize caps a single stored payload.
const MaxBlobSize = 4 << 20

var blobPrefix = []byte("content:")

// Store is a content-addressed blob store. Put is deterministic: the same
// blob always yields the same hash.
type Store interface {
	Put(ctx context.Context, blob []byte) (common.Hash, error)
	Get(ctx context.Context, hash common.Hash) ([]byte, error)
}

// Hash returns the BLAKE3-256 digest of blob.
func Hash(blob []byte) common.Hash {
	return common.Hash(blake3.Sum256(blob))
}

func checkBlob(blob []byte) error {
	if len(blob) == 0 {
		return fmt.Errorf("%w: empty blob", coreerrors.ErrInvalidArgument)
	}
	if len(blob) > MaxBlobSize {
		return fmt.Errorf("%w: blob exceeds %d bytes", coreerrors.ErrInvalidArgument, MaxBlobSize)
	}
	return nil
}

// MemStore keeps blobs in memory.
type MemStore struct {
	mu    sync.RWMutex
	blobs map[common.Hash][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[common.Hash][]byte)}
}

func (m *MemStore) Put(ctx context.Context, blob []byte) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	if err := checkBlob(blob); err != nil {
		return common.Hash{}, err
	}
	h := Hash(blob)
	m.mu.Lock()
	if _, ok := m.blobs[h]; !ok {
		m.blobs[h] = append([]byte(nil), blob...)
	}
	m.mu.Unlock()
	return h, nil
}

func (m *MemStore) Get(ctx context.Context, hash common.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	blob, ok := m.blobs[hash]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: content %s", coreerrors.ErrNotFound, hash.Hex())
	}
	return append([]byte(nil), blob...), nil
}

// DBStore persists blobs in a storage.Database under "content:"||hash.
type DBStore struct {
	db storage.Database
}

// NewDBStore wraps db.
func NewDBStore(db storage.Database) *DBStore {
	return &DBStore{db: db}
}

func blobKey(h common.Hash) []byte {
	return append(append([]byte(nil), blobPrefix...), h.Bytes()...)
}

func (s *DBStore) Put(ctx context.Context, blob []byte) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	if err := checkBlob(blob); err != nil {
		return common.Hash{}, err
	}
	h := Hash(blob)
	key := blobKey(h)
	ok, err := s.db.Has(key)
	if err != nil {
		return common.Hash{}, err
	}
	if ok {
		return h, nil
	}
	if err := s.db.Put(key, blob); err != nil {
		return common.Hash{}, fmt.Errorf("content: store %s: %w", h.Hex(), err)
	}
	return h, nil
}

func (s *DBStore) Get(ctx context.Context, hash common.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	blob, err := s.db.Get(blobKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: content %s", coreerrors.ErrNotFound, hash.Hex())
	}
	if err != nil {
		return nil, err
	}
	if Hash(blob) != hash {
		return nil, fmt.Errorf("content: stored blob for %s is corrupt", hash.Hex())
	}
	return blob, nil
}
