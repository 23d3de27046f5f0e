package content

import (
	"bytes"
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"lukechampine.com/blake3"

	coreerrors "listingchain/core/errors"
	"listingchain/storage"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()
	db, err := storage.Open(storage.BackendLevelDB, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return map[string]Store{
		"mem":     NewMemStore(),
		"memdb":   NewDBStore(storage.NewMemDB()),
		"leveldb": NewDBStore(db),
	}
}

func TestPutIsDeterministic(t *testing.T) {
	ctx := context.Background()
	blob := []byte("room 12, two nights, breakfast included")
	want := common.Hash(blake3.Sum256(blob))

	for name, s := range stores(t) {
		h1, err := s.Put(ctx, blob)
		require.NoError(t, err, name)
		h2, err := s.Put(ctx, append([]byte(nil), blob...))
		require.NoError(t, err, name)
		require.Equal(t, want, h1, name)
		require.Equal(t, h1, h2, name)

		got, err := s.Get(ctx, h1)
		require.NoError(t, err, name)
		require.Equal(t, blob, got, name)
	}
}

func TestGetUnknownHash(t *testing.T) {
	for name, s := range stores(t) {
		_, err := s.Get(context.Background(), common.HexToHash("0x01"))
		require.ErrorIs(t, err, coreerrors.ErrNotFound, name)
	}
}

func TestPutRejectsEmptyAndOversized(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		_, err := s.Put(ctx, nil)
		require.ErrorIs(t, err, coreerrors.ErrInvalidArgument, name)
		_, err = s.Put(ctx, bytes.Repeat([]byte{1}, MaxBlobSize+1))
		require.ErrorIs(t, err, coreerrors.ErrInvalidArgument, name)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range stores(t) {
		_, err := s.Put(ctx, []byte("x"))
		require.ErrorIs(t, err, context.Canceled, name)
	}
}

func TestMemStoreCopiesBlobs(t *testing.T) {
	s := NewMemStore()
	blob := []byte("abc")
	h, err := s.Put(context.Background(), blob)
	require.NoError(t, err)
	blob[0] = 'z'
	got, err := s.Get(context.Background(), h)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), got)
}

func TestDBStoreDetectsCorruption(t *testing.T) {
	db := storage.NewMemDB()
	s := NewDBStore(db)
	h, err := s.Put(context.Background(), []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, db.Put(blobKey(h), []byte("tampered")))
	_, err = s.Get(context.Background(), h)
	require.ErrorContains(t, err, "corrupt")
}
