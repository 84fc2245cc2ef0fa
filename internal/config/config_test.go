package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// mockSecrets is a test double for the secrets file.
type mockSecrets struct {
	values map[string]string
	err    error
	set    map[string]string
}

func (m *mockSecrets) Get(account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	v, ok := m.values[account]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func (m *mockSecrets) Set(account, value string) error {
	if m.set == nil {
		m.set = map[string]string{}
	}
	m.set[account] = value
	return nil
}

func writeTempConfig(t *testing.T, content string) *fileBackend {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if content != "" {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return newFileBackend(path)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when no config file exists.
func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(writeTempConfig(t, ""), &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Server.Token = %q, want empty", cfg.Server.Token)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Layout.ResolveTimeout != 2*time.Second {
		t.Errorf("Layout.ResolveTimeout = %v, want 2s", cfg.Layout.ResolveTimeout)
	}
	if cfg.Layout.ResolveConcurrency != 4 {
		t.Errorf("Layout.ResolveConcurrency = %d, want 4", cfg.Layout.ResolveConcurrency)
	}
	if !strings.HasSuffix(cfg.Storage.DataDir, "hearth") {
		t.Errorf("Storage.DataDir = %q, want a hearth dir", cfg.Storage.DataDir)
	}
}

// TestFileParsing verifies that all fields are correctly read from the JSON file.
func TestFileParsing(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{
		"server.port": 5000,
		"server.mcp": true,
		"storage.data_dir": "/tmp/hearth-test",
		"log.level": "debug",
		"layout.resolve_timeout": "750ms",
		"layout.resolve_concurrency": "8",
		"apps.catalog": "/tmp/apps.toml"
	}`)

	cfg, err := loadWith(b, &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if !cfg.Server.MCP {
		t.Error("Server.MCP = false, want true")
	}
	if cfg.Storage.DataDir != "/tmp/hearth-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
	if cfg.Layout.ResolveTimeout != 750*time.Millisecond {
		t.Errorf("Layout.ResolveTimeout = %v", cfg.Layout.ResolveTimeout)
	}
	if cfg.Layout.ResolveConcurrency != 8 {
		t.Errorf("Layout.ResolveConcurrency = %d", cfg.Layout.ResolveConcurrency)
	}
	if cfg.Apps.Catalog != "/tmp/apps.toml" {
		t.Errorf("Apps.Catalog = %q", cfg.Apps.Catalog)
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, `{"server.port": 5000, "log.level": "warn"}`)

	t.Setenv("HEARTH_SERVER_PORT", "6000")
	t.Setenv("HEARTH_LAYOUT_RESOLVE_TIMEOUT", "not-a-duration")

	cfg, err := loadWith(b, &mockSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want warn", cfg.Log.Level)
	}
	if cfg.Layout.ResolveTimeout != 2*time.Second {
		t.Errorf("unparseable env var was applied: %v", cfg.Layout.ResolveTimeout)
	}
}

// TestTokenSources verifies the token comes from the environment first, then the secrets file.
func TestTokenSources(t *testing.T) {
	clearEnv(t)
	secrets := &mockSecrets{values: map[string]string{tokenAccount: "file-token"}}

	cfg, err := loadWith(writeTempConfig(t, ""), secrets)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Token != "file-token" {
		t.Errorf("Token = %q, want file-token", cfg.Server.Token)
	}

	t.Setenv("HEARTH_SERVER_TOKEN", "env-token")
	cfg, err = loadWith(writeTempConfig(t, ""), secrets)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Token != "env-token" {
		t.Errorf("Token = %q, want env-token", cfg.Server.Token)
	}
}

// TestTokenNeverReadFromConfigFile verifies secrets in the config file are ignored.
func TestTokenNeverReadFromConfigFile(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(writeTempConfig(t, `{"server.token": "leaked"}`), &mockSecrets{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Token != "" {
		t.Errorf("Token = %q, want empty", cfg.Server.Token)
	}
}

func TestSecretsReadErrorIsNotFatal(t *testing.T) {
	clearEnv(t)
	_, err := loadWith(writeTempConfig(t, ""), &mockSecrets{err: errors.New("permission denied")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidation(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name, content, want string
	}{
		{"port", `{"server.port": 70000}`, "server.port"},
		{"concurrency", `{"layout.resolve_concurrency": 0}`, "resolve_concurrency"},
		{"timeout", `{"layout.resolve_timeout": "-1s"}`, "resolve_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadWith(writeTempConfig(t, tt.content), &mockSecrets{})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestSetKey(t *testing.T) {
	clearEnv(t)
	b := writeTempConfig(t, "")

	if err := setKey(b, "server.port", "4200"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "layout.resolve_timeout", "5s"); err != nil {
		t.Fatalf("setKey: %v", err)
	}
	if err := setKey(b, "server.port", "many"); err == nil {
		t.Error("invalid integer accepted")
	}
	if err := setKey(b, "server.token", "x"); err == nil {
		t.Error("secret accepted")
	}
	if err := setKey(b, "nope", "x"); err == nil {
		t.Error("unknown key accepted")
	}

	cfg, err := loadWith(newFileBackend(b.path), &mockSecrets{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 4200 || cfg.Layout.ResolveTimeout != 5*time.Second {
		t.Errorf("reloaded config = %+v", cfg)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.Token = "s3cret"
	for _, k := range ShowAll(cfg) {
		if k.Key == "server.token" || k.Value == "s3cret" {
			t.Errorf("ShowAll exposed secret %+v", k)
		}
	}
	if len(ShowAll(cfg)) != len(ValidKeys()) {
		t.Error("ShowAll and ValidKeys disagree")
	}
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "error": "ERROR", "": "INFO", "loud": "INFO"} {
		cfg := Config{Log: LogConfig{Level: level}}
		if got := cfg.SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%q) = %s, want %s", level, got, want)
		}
	}
}

func TestFileSecretsRoundTrip(t *testing.T) {
	f := fileSecrets{path: filepath.Join(t.TempDir(), "hearth", "secrets.json")}

	if _, err := f.Get(tokenAccount); !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrSecretNotFound", err)
	}
	if err := f.Set(tokenAccount, "abc"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := f.Get(tokenAccount)
	if err != nil || got != "abc" {
		t.Errorf("Get = %q, %v", got, err)
	}
	info, err := os.Stat(f.path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets file mode = %o, want 600", perm)
	}
}
