package config

import (
	"fmt"

	"listingchain/storage"
)

var supportedBackends = map[string]struct{}{
	storage.BackendMemory:  {},
	storage.BackendLevelDB: {},
	storage.BackendBolt:    {},
	storage.BackendPebble:  {},
}

// Validate rejects configurations the node cannot start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if _, ok := supportedBackends[cfg.Backend]; !ok {
		return fmt.Errorf("config: unsupported backend %q", cfg.Backend)
	}
	if cfg.Backend != storage.BackendMemory && cfg.DataDir == "" {
		return fmt.Errorf("config: DataDir required for %s backend", cfg.Backend)
	}
	if cfg.ListingDurationSecs == 0 {
		return fmt.Errorf("config: ListingDurationSecs must be positive")
	}
	if cfg.Log.MaxSizeMB < 0 || cfg.Log.MaxBackups < 0 || cfg.Log.MaxAgeDays < 0 {
		return fmt.Errorf("config: log rotation limits must not be negative")
	}
	return nil
}
