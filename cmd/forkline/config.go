package main

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/forkline-ai/forkline"
	redisstore "github.com/forkline-ai/forkline/redis"
	sqlitestore "github.com/forkline-ai/forkline/sqlite"
)

// Config is the YAML server configuration.
type Config struct {
	Addr  string      `yaml:"addr"`
	Store StoreConfig `yaml:"store"`
}

// StoreConfig selects and configures the checkpoint store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory, file, redis, sqlite

	// File and sqlite backends.
	Dir string `yaml:"dir,omitempty"`

	// Redis backend.
	Address  string `yaml:"address,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

func defaultConfig() Config {
	return Config{
		Addr:  ":8080",
		Store: StoreConfig{Backend: "memory"},
	}
}

func loadConfig(path string) (Config, error) {
	config := defaultConfig()
	if path == "" {
		return config, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("failed to parse config file: %w", err)
	}
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.Store.Backend == "" {
		config.Store.Backend = "memory"
	}
	return config, nil
}

// openStore builds the configured checkpoint store. The returned close
// function is a no-op for backends without resources to release.
func openStore(config StoreConfig) (forkline.Store, func() error, error) {
	noop := func() error { return nil }
	switch config.Backend {
	case "memory":
		return forkline.NewMemoryStore(), noop, nil
	case "file":
		store, err := forkline.NewFileStore(config.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case "redis":
		store := redisstore.New(config.Address, config.Password, config.DB)
		return store, store.Close, nil
	case "sqlite":
		store, err := sqlitestore.Open(config.Dir)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", config.Backend)
	}
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
