package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Connection.Host != "127.0.0.1" {
		t.Errorf("expected default host 127.0.0.1, got %s", cfg.Connection.Host)
	}
	if cfg.Connection.Port != 4222 {
		t.Errorf("expected default port 4222, got %d", cfg.Connection.Port)
	}
	if cfg.Connection.ConnectTimeout.Duration() != 10*time.Second {
		t.Errorf("expected connect_timeout 10s, got %s", cfg.Connection.ConnectTimeout.Duration())
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadValidConfig(t *testing.T) {
	yaml := `
connection:
  host: "nats.example.com"
  port: 4222
  send_timeout: "2s"
auth:
  user: "alice"
  password: "secret"
logging:
  level: "debug"
`
	dir := t.TempDir()
	path := filepath.Join(dir, "gonats.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Connection.Host != "nats.example.com" {
		t.Errorf("expected host nats.example.com, got %s", cfg.Connection.Host)
	}
	if cfg.Connection.SendTimeout.Duration() != 2*time.Second {
		t.Errorf("expected send_timeout 2s, got %s", cfg.Connection.SendTimeout.Duration())
	}
	if cfg.Auth.User != "alice" || cfg.Auth.Password != "secret" {
		t.Errorf("expected auth alice/secret, got %+v", cfg.Auth)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/gonats.yaml")
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestValidateMissingHost(t *testing.T) {
	cfg := Default()
	cfg.Connection.Host = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for missing host")
	}
}

func TestValidateWebSocketURLSkipsHostCheck(t *testing.T) {
	cfg := Default()
	cfg.Connection.Host = ""
	cfg.Connection.Port = 0
	cfg.Connection.WebSocketURL = "wss://nats.example.com/ws"
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestValidateBadPort(t *testing.T) {
	cfg := Default()
	cfg.Connection.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for out-of-range port")
	}
}

func TestValidateTLSRequiresBothCertAndKey(t *testing.T) {
	cfg := Default()
	cfg.TLS.Enabled = true
	cfg.TLS.Cert = "cert.pem"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for cert without key")
	}
}

func TestValidateDiagnosticsRequiresDumpPath(t *testing.T) {
	cfg := Default()
	cfg.Diagnostics.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for diagnostics without dump_path")
	}
}
