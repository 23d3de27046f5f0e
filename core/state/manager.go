package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"listingchain/storage"
)

// Manager reads and writes ledger state. Writes are buffered in an overlay
// that reads see immediately; Commit flushes them to the database in one batch
// and Discard drops them. A Manager is not safe for concurrent use: the ledger
// serializes every call that touches it.
type Manager struct {
	db      storage.Database
	pending map[string][]byte
	order   []string
}

// NewManager creates a state manager over db.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db, pending: make(map[string][]byte)}
}

func hashKey(prefix []byte, parts ...[]byte) []byte {
	buf := make([]byte, 0, len(prefix)+20*len(parts))
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

func indexBytes(index uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], index)
	return buf[:]
}

func (m *Manager) getRaw(key []byte) ([]byte, bool, error) {
	if value, ok := m.pending[string(key)]; ok {
		return append([]byte(nil), value...), true, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) putRaw(key, value []byte) {
	k := string(key)
	if _, ok := m.pending[k]; !ok {
		m.order = append(m.order, k)
	}
	m.pending[k] = append([]byte(nil), value...)
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, ok, err := m.getRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	m.putRaw(key, encoded)
	return nil
}

// KVPut stores value under the keccak hash of key using RLP encoding.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.putRLP(ethcrypto.Keccak256(key), value)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	return m.getRLP(ethcrypto.Keccak256(key), out)
}

// Pending returns the number of keys written since the last Commit or Discard.
func (m *Manager) Pending() int { return len(m.order) }

// Commit writes every pending key to the database atomically.
func (m *Manager) Commit() error {
	if len(m.order) == 0 {
		return nil
	}
	batch := m.db.NewBatch()
	for _, k := range m.order {
		batch.Put([]byte(k), m.pending[k])
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	m.reset()
	return nil
}

// Discard drops every pending write.
func (m *Manager) Discard() { m.reset() }

func (m *Manager) reset() {
	m.pending = make(map[string][]byte)
	m.order = nil
}
