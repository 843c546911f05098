package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Backend names accepted for client_backend and facade_backend.
const (
	BackendWhatsmeow = "whatsmeow"
	BackendMemory    = "memory"
	FacadeLive       = "live"
	FacadeMock       = "mock"
)

// Config represents the global ~/.zapbridge/config.toml.
type Config struct {
	DefaultSession string `toml:"default_session"`
	ListenAddr     string `toml:"listen_addr"`
	ClientBackend  string `toml:"client_backend"`
	GatewayURL     string `toml:"gateway_url"`
	FacadeBackend  string `toml:"facade_backend"`
}

// Default returns a config with the stock values the daemon uses when
// no config file exists.
func Default() *Config {
	return &Config{
		DefaultSession: "main",
		ListenAddr:     "127.0.0.1:3001",
		ClientBackend:  BackendWhatsmeow,
		GatewayURL:     "ws://127.0.0.1:3001/ws",
		FacadeBackend:  FacadeLive,
	}
}

// Load reads config from the given path. Missing fields fall back to
// defaults; a missing file is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
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
