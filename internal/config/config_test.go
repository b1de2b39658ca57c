package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CLASSHUB_AUTH_SECRET", "test-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.HTTP.Port)
	}
	if cfg.Database.Path != "./classhub.db" {
		t.Errorf("Expected default database path, got %q", cfg.Database.Path)
	}
	if cfg.WebSocket.PingInterval != 30*time.Second {
		t.Errorf("Expected default ping interval 30s, got %v", cfg.WebSocket.PingInterval)
	}
	if cfg.Coordinator.HistoryLimit != 100 {
		t.Errorf("Expected default history limit 100, got %d", cfg.Coordinator.HistoryLimit)
	}
	if cfg.Coordinator.HostGrace != 0 {
		t.Errorf("Expected default host grace 0, got %v", cfg.Coordinator.HostGrace)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CLASSHUB_AUTH_SECRET", "test-secret")
	t.Setenv("CLASSHUB_HTTP_PORT", "9000")
	t.Setenv("CLASSHUB_COORDINATOR_HOST_GRACE", "30s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Errorf("Expected port 9000 from environment, got %d", cfg.HTTP.Port)
	}
	if cfg.Coordinator.HostGrace != 30*time.Second {
		t.Errorf("Expected host grace 30s from environment, got %v", cfg.Coordinator.HostGrace)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	t.Setenv("CLASSHUB_AUTH_SECRET", "test-secret")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "http:\n  port: 9090\ncoordinator:\n  history_limit: 50\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.HTTP.Port != 9090 {
		t.Errorf("Expected port 9090 from file, got %d", cfg.HTTP.Port)
	}
	if cfg.Coordinator.HistoryLimit != 50 {
		t.Errorf("Expected history limit 50 from file, got %d", cfg.Coordinator.HistoryLimit)
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("CLASSHUB_AUTH_SECRET", "")

	if _, err := Load(""); err == nil {
		t.Error("Expected an error for a missing auth secret")
	}
}

func TestValidate_PortRange(t *testing.T) {
	t.Setenv("CLASSHUB_AUTH_SECRET", "test-secret")
	t.Setenv("CLASSHUB_HTTP_PORT", "70000")

	if _, err := Load(""); err == nil {
		t.Error("Expected an error for an out-of-range port")
	}
}
