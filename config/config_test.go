package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vinayprograms/echobeat/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "echobeat.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// --- Unit Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Port != 50007 {
		t.Errorf("Port = %d, want 50007", cfg.Port)
	}
	if cfg.Endpoint() != "127.0.0.1:50007" {
		t.Errorf("Endpoint() = %q", cfg.Endpoint())
	}
	if cfg.ListenAddress() != ":50007" {
		t.Errorf("ListenAddress() = %q, want :50007", cfg.ListenAddress())
	}
	if cfg.SendWait() != 4*time.Minute {
		t.Errorf("SendWait() = %v, want 4m", cfg.SendWait())
	}
	if cfg.ReceiveWait() != 4*time.Minute {
		t.Errorf("ReceiveWait() = %v, want 4m", cfg.ReceiveWait())
	}
	if cfg.ResponderTimeout() != 6*time.Minute {
		t.Errorf("ResponderTimeout() = %v, want 6m", cfg.ResponderTimeout())
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"empty host", func(c *Config) { c.Host = "" }, true},
		{"blank host", func(c *Config) { c.Host = "  " }, true},
		{"port zero", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"zero period", func(c *Config) { c.Period = 0 }, true},
		{"zero retry", func(c *Config) { c.RetryInterval = 0 }, true},
		{"negative attempts", func(c *Config) { c.MaxConnectAttempts = -1 }, true},
		{"zero factor", func(c *Config) { c.SendWaitFactor = 0 }, true},
		{"zero chunk", func(c *Config) { c.ChunkSize = 0 }, true},
		{"bad level", func(c *Config) { c.LogLevel = "LOUD" }, true},
		{"lower level", func(c *Config) { c.LogLevel = "debug" }, false},
		{"ip bind", func(c *Config) { c.BindAddress = "0.0.0.0" }, false},
		{"host bind", func(c *Config) { c.BindAddress = "localhost" }, false},
		{"bad bind", func(c *Config) { c.BindAddress = "not a host!" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("Validate() code = %v, want INVALID_INPUT", errors.Code(err))
			}
		})
	}
}

// --- File Loading ---

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
host = "10.107.124.34"
port = 6000
period = "2s"
retry_interval = "500ms"
max_connect_attempts = 3
chunk_size = 64
log_dir = "/tmp/echobeat"
console = false
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if cfg.Host != "10.107.124.34" || cfg.Port != 6000 {
		t.Errorf("endpoint = %s", cfg.Endpoint())
	}
	if cfg.Period.Std() != 2*time.Second {
		t.Errorf("Period = %v, want 2s", cfg.Period)
	}
	if cfg.RetryInterval.Std() != 500*time.Millisecond {
		t.Errorf("RetryInterval = %v, want 500ms", cfg.RetryInterval)
	}
	if cfg.SendWait() != 8*time.Second {
		t.Errorf("SendWait() = %v, want 8s", cfg.SendWait())
	}
	if cfg.MaxConnectAttempts != 3 || cfg.ChunkSize != 64 || cfg.Console {
		t.Errorf("unexpected config: %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.ResponderWaitFactor != 6 {
		t.Errorf("ResponderWaitFactor = %d, want 6", cfg.ResponderWaitFactor)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad syntax", `port = `},
		{"bad duration", `period = "soon"`},
		{"unknown key", `colour = "blue"`},
		{"invalid value", `port = -1`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, tt.body))
			if !errors.Is(err, errors.ErrCodeInvalidInput) {
				t.Errorf("LoadFile error = %v, want INVALID_INPUT", err)
			}
		})
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("Load(\"\") = %+v, want defaults", cfg)
	}
}

func TestDuration_Text(t *testing.T) {
	var d Duration
	if err := d.UnmarshalText([]byte("1m30s")); err != nil {
		t.Fatalf("UnmarshalText error: %v", err)
	}
	if d.Std() != 90*time.Second {
		t.Errorf("Std() = %v", d.Std())
	}
	text, _ := d.MarshalText()
	if string(text) != "1m30s" {
		t.Errorf("MarshalText() = %q", text)
	}
}
