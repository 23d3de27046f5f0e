package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"listingchain/native/listing"
	"listingchain/storage"
)

// Config is the listingd node configuration.
type Config struct {
	DataDir             string    `toml:"DataDir"`
	Backend             string    `toml:"Backend"`
	GenesisFile         string    `toml:"GenesisFile"`
	Environment         string    `toml:"Environment"`
	ListingDurationSecs uint64    `toml:"ListingDurationSecs"`
	EventDB             string    `toml:"EventDB,omitempty"`
	Log                 Log       `toml:"log"`
	Telemetry           Telemetry `toml:"telemetry"`
}

// Load loads the configuration from path, writing a default file first when
// none exists. Missing fields fall back to their defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	} else if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration written by Load for a fresh node.
func Default() *Config {
	cfg := &Config{
		DataDir:     "./listing-data",
		Backend:     storage.BackendLevelDB,
		Environment: "local",
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Backend) == "" {
		cfg.Backend = storage.BackendLevelDB
	}
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.ListingDurationSecs == 0 {
		cfg.ListingDurationSecs = listing.DefaultDuration
	}
	if strings.TrimSpace(cfg.Log.Level) == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.MaxSizeMB == 0 {
		cfg.Log.MaxSizeMB = 100
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// ResolvePath returns p relative to the data directory unless it is absolute.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
