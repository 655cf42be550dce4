package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "personstore.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
listen:
  port: 7070
  buffer_size: 4096
  api_port: 9191

db:
  host: db-host
  port: 5433
  name: persons_test
  user: app
  password: secret
  max_conns: 5

pools:
  workers: 4
  queue_capacity: 500

health_check:
  interval: 5s
  timeout: 1s
  failure_threshold: 2
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Listen.Port)
	}
	if cfg.DB.Host != "db-host" || cfg.DB.Port != 5433 {
		t.Errorf("db endpoint = %s:%d", cfg.DB.Host, cfg.DB.Port)
	}
	if cfg.Pools.Workers != 4 || cfg.Pools.QueueCapacity != 500 {
		t.Errorf("pools = %+v", cfg.Pools)
	}
	if cfg.HealthCheck.Interval != 5*time.Second {
		t.Errorf("health interval = %v", cfg.HealthCheck.Interval)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Listen.BufferSize != 8192 {
		t.Errorf("default buffer = %d, want 8192", cfg.Listen.BufferSize)
	}
	if cfg.DB.Port != 5432 {
		t.Errorf("default db port = %d, want 5432", cfg.DB.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("port6", "6161")
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_PORT", "5440")
	t.Setenv("DB_NAME", "envdb")
	t.Setenv("DB_USER", "envuser")
	t.Setenv("DB_PASSWORD", "envpass")

	cfg, err := Load(writeTemp(t, "listen:\n  port: 7070\ndb:\n  host: filehost\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.Port != 6161 {
		t.Errorf("env port6 must win over file, got %d", cfg.Listen.Port)
	}
	if cfg.DB.Host != "envhost" || cfg.DB.Port != 5440 || cfg.DB.Name != "envdb" {
		t.Errorf("env db overrides not applied: %+v", cfg.DB)
	}
	if cfg.DB.User != "envuser" || cfg.DB.Password != "envpass" {
		t.Errorf("env credentials not applied")
	}
}

func TestEnvVarSubstitution(t *testing.T) {
	t.Setenv("PS_TEST_KEY", "substituted")
	cfg, err := Load(writeTemp(t, "listen:\n  api_key: ${PS_TEST_KEY}\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Listen.APIKey != "substituted" {
		t.Errorf("api_key = %q", cfg.Listen.APIKey)
	}
}

func TestValidateRejectsBadPorts(t *testing.T) {
	if _, err := Load(writeTemp(t, "listen:\n  port: 70000\n")); err == nil {
		t.Error("expected out-of-range port to fail validation")
	}
	if _, err := Load(writeTemp(t, "listen:\n  port: 9000\n  api_port: 9000\n")); err == nil {
		t.Error("expected colliding ports to fail validation")
	}
}

func TestDBURL(t *testing.T) {
	d := DBConfig{Host: "h", Port: 5432, Name: "db", User: "u", Password: "p w"}
	u := d.URL()
	if !strings.HasPrefix(u, "postgres://u:p+w@h:5432/db") {
		t.Errorf("URL = %q", u)
	}
	if red := d.Redacted(); red.Password == "p w" {
		t.Error("Redacted must mask the password")
	}
}
