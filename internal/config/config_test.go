package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gridadmin.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SQLite.RetentionDays != 30 || cfg.Web.ListenAddr != "127.0.0.1:8080" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadClusterMembers(t *testing.T) {
	path := writeConfig(t, `
cluster:
  members:
    - name: server1
      groups: [g1, g2]
      deploy_dir: /opt/deploy
      regions: [/orders]
      durable_clients:
        - id: client#1
          cqs: {cq1: 3}
web:
  auth:
    tokens:
      - id: ops
        subject: ops
        enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Cluster.Members) != 1 {
		t.Fatalf("expected one member, got %d", len(cfg.Cluster.Members))
	}
	m := cfg.Cluster.Members[0]
	if m.Name != "server1" || len(m.Groups) != 2 || m.DurableClients[0].CQs["cq1"] != 3 {
		t.Fatalf("unexpected member: %+v", m)
	}
	if len(cfg.Web.Auth.Tokens) != 1 || !cfg.Web.Auth.Tokens[0].Enabled {
		t.Fatalf("unexpected tokens: %+v", cfg.Web.Auth.Tokens)
	}
	if cfg.Scheduler.IntervalSeconds != 60 {
		t.Fatalf("defaults must survive partial file, got %d", cfg.Scheduler.IntervalSeconds)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GRIDADMIN_SQLITE_PATH", "/tmp/override.db")
	t.Setenv("GRIDADMIN_WEB_ENABLED", "true")
	t.Setenv("GRIDADMIN_SCHEDULER_INTERVAL_SECONDS", "15")

	cfg, err := Load(writeConfig(t, "sqlite:\n  path: /var/lib/file.db\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SQLite.Path != "/tmp/override.db" {
		t.Fatalf("env must win over file, got %q", cfg.SQLite.Path)
	}
	if !cfg.Web.Enabled || cfg.Scheduler.IntervalSeconds != 15 {
		t.Fatalf("unexpected overrides: enabled=%v interval=%d", cfg.Web.Enabled, cfg.Scheduler.IntervalSeconds)
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	if _, err := Load(writeConfig(t, "")); err == nil {
		t.Fatal("expected error for empty file")
	}
	dup := "cluster:\n  members:\n    - name: s1\n    - name: s1\n"
	if _, err := Load(writeConfig(t, dup)); err == nil {
		t.Fatal("expected error for duplicate member")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
