package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the brokerlink service.
type Config struct {
	Storage   Storage   `yaml:"storage"`
	Server    Server    `yaml:"server"`
	Gateway   Gateway   `yaml:"gateway"`
	Providers Providers `yaml:"providers"`
	Logging   Logging   `yaml:"logging"`
}

// Storage holds paths for data persistence. Everything the service
// persists lives under DataDir as flat JSON documents.
type Storage struct {
	DataDir string `yaml:"data_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Gateway holds connection parameters for the broker gateway socket
// (TWS or IB Gateway).
type Gateway struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID int64  `yaml:"client_id"`
}

// Providers holds credentials for the external quote providers. A
// provider with no key configured is left out of the resolver chain.
type Providers struct {
	FinnhubKey      string `yaml:"finnhub_key"`
	AlphaVantageKey string `yaml:"alphavantage_key"`
	AlpacaKey       string `yaml:"alpaca_key"`
	AlpacaSecret    string `yaml:"alpaca_secret"`
	MaxAgeHours     int    `yaml:"max_age_hours"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// Default returns a Config with the defaults the service assumes when a
// field is absent: local TWS on 7496, master client id 0, 24h quote
// staleness threshold.
func Default() *Config {
	return &Config{
		Storage: Storage{DataDir: "data"},
		Server:  Server{Host: "127.0.0.1", Port: 8086},
		Gateway: Gateway{Host: "127.0.0.1", Port: 7496, ClientID: 0},
		Providers: Providers{
			MaxAgeHours: 24,
		},
		Logging: Logging{Level: "info", Format: "json"},
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("GATEWAY_HOST"); v != "" {
		cfg.Gateway.Host = v
	}
	if v := os.Getenv("GATEWAY_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = p
		}
	}
	if v := os.Getenv("GATEWAY_CLIENT_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Gateway.ClientID = id
		}
	}

	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Providers.FinnhubKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.Providers.AlphaVantageKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (canonical names used by the SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Providers.AlpacaKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Providers.AlpacaSecret = v
	}
}
