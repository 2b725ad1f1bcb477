package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "local" {
		t.Errorf("default mode = %q, want local", cfg.Mode)
	}
	if cfg.Net.ProbeInterval != 15*time.Second {
		t.Errorf("default probe interval = %v", cfg.Net.ProbeInterval)
	}
	if cfg.Log.MaxSizeMB != 10 || cfg.Log.MaxBackups != 3 {
		t.Errorf("default log rotation = %+v", cfg.Log)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
mode: cloud
data_dir: /tmp/todo-test
cloud:
  dsn: postgres://localhost/todo
  auth_url: https://auth.example.com/auth/v1
  api_key: key-1
net:
  probe_address: db.example.com:5432
  probe_interval: 30s
log:
  file: /tmp/todo.log
  max_size_mb: 25
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "cloud" {
		t.Errorf("mode = %q", cfg.Mode)
	}
	if cfg.Cloud.DSN != "postgres://localhost/todo" || cfg.Cloud.APIKey != "key-1" {
		t.Errorf("cloud config = %+v", cfg.Cloud)
	}
	if cfg.Net.ProbeAddress != "db.example.com:5432" || cfg.Net.ProbeInterval != 30*time.Second {
		t.Errorf("net config = %+v", cfg.Net)
	}
	if cfg.Log.File != "/tmp/todo.log" || cfg.Log.MaxSizeMB != 25 {
		t.Errorf("log config = %+v", cfg.Log)
	}
	// Unset fields keep their defaults.
	if cfg.Log.MaxBackups != 3 {
		t.Errorf("unset MaxBackups = %d, want default 3", cfg.Log.MaxBackups)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TODO_MODE", "cloud")
	t.Setenv("TODO_CLOUD_DSN", "postgres://env/todo")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != "cloud" {
		t.Errorf("env mode override not applied, got %q", cfg.Mode)
	}
	if cfg.Cloud.DSN != "postgres://env/todo" {
		t.Errorf("env dsn override not applied, got %q", cfg.Cloud.DSN)
	}
}

func TestLoad_RejectsUnknownMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mode: hybrid\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("unknown mode should be rejected")
	}
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(":\n  - broken: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("malformed config should fail loudly, not fall back")
	}
}
