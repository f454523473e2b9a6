package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.papo/config.toml.
type Config struct {
	// ServerURL is the websocket endpoint of the messaging service,
	// e.g. ws://host:3000/ws.
	ServerURL string `toml:"server_url"`
	// DefaultSession is used when no --session flag is given.
	DefaultSession string `toml:"default_session"`
}

// Load reads config from the given path. Returns an error if the file
// is missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ApplyEnv overlays PAPO_* environment variables onto cfg. A .env file
// loaded at startup feeds these.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv("PAPO_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}
	if v := os.Getenv("PAPO_SESSION"); v != "" {
		cfg.DefaultSession = v
	}
}
