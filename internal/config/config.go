package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	Layout  LayoutConfig
	Apps    AppsConfig
}

type ServerConfig struct {
	Port int
	// Token is the bearer token required by the HTTP API. Secret: read from
	// HEARTH_SERVER_TOKEN or the secrets file, never from the config file.
	Token string
	// MCP enables the MCP server on stdio alongside the HTTP API.
	MCP bool
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type LayoutConfig struct {
	ResolveTimeout     time.Duration
	ResolveConcurrency int
}

type AppsConfig struct {
	// Catalog is the TOML app catalog; empty searches the XDG config dirs.
	Catalog string
}

const tokenAccount = "server_token"

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Layout: LayoutConfig{
			ResolveTimeout:     2 * time.Second,
			ResolveConcurrency: 4,
		},
	}
}

// Load reads configuration from the JSON config file, environment variables
// and the secrets file, in increasing order of precedence for everything but
// secrets. Secrets come from the environment first, then the secrets file.
//
// The config file lives at $XDG_CONFIG_HOME/hearth/config.json. Environment
// variables (HEARTH_*) override it.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), newFileSecrets())
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Server.Token == "" {
		token, err := secrets.Get(tokenAccount)
		switch {
		case err == nil:
			cfg.Server.Token = token
		case !errors.Is(err, ErrSecretNotFound):
			slog.Warn("could not read secrets file", "error", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid config: server.port %d out of range", c.Server.Port)
	}
	if c.Layout.ResolveConcurrency < 1 {
		return fmt.Errorf("invalid config: layout.resolve_concurrency must be at least 1")
	}
	if c.Layout.ResolveTimeout <= 0 {
		return fmt.Errorf("invalid config: layout.resolve_timeout must be positive")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("invalid config: storage.data_dir is empty")
	}
	return nil
}

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
