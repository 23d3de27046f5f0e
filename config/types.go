package config

// Log configures the structured logger.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters. Both are off by default.
type Telemetry struct {
	Endpoint string `toml:"Endpoint,omitempty"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers,omitempty"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}
