package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Supported backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
	BackendPebble  = "pebble"
)

// Open returns the database for the named backend rooted at dir. The memory
// backend ignores dir.
func Open(backend, dir string) (Database, error) {
	normalized := strings.ToLower(strings.TrimSpace(backend))
	if normalized == "" {
		normalized = BackendLevelDB
	}
	if normalized != BackendMemory {
		if strings.TrimSpace(dir) == "" {
			return nil, fmt.Errorf("storage: %s backend requires a data directory", normalized)
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	switch normalized {
	case BackendMemory:
		return NewMemDB(), nil
	case BackendLevelDB:
		return NewLevelDB(filepath.Join(dir, "state.ldb"))
	case BackendBolt:
		return NewBoltDB(filepath.Join(dir, "state.bolt"))
	case BackendPebble:
		return NewPebbleDB(filepath.Join(dir, "state.pebble"))
	default:
		return nil, fmt.Errorf("storage: unsupported backend %q", backend)
	}
}
