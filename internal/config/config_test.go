// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var overrides, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "collect.yaml")

	configContent := `
control_plane:
  api_base: "http://tendril.internal:3000"
  token_secret: "collect-test-secret-32-bytes-long"
  script_timeout: "20s"
  request_timeout: "1m"

collect:
  workers: 8
  flush_every: 25
  checkpoint_path: "./assets.json"
  history_path: "./history.db"
  exclude:
    - "avd-0"
    - "avd-1"

logging:
  level: "debug"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ControlPlane.APIBase != "http://tendril.internal:3000" {
		t.Errorf("ControlPlane.APIBase = %q, want %q", cfg.ControlPlane.APIBase, "http://tendril.internal:3000")
	}
	if cfg.ControlPlane.ScriptTimeout != 20*time.Second {
		t.Errorf("ControlPlane.ScriptTimeout = %v, want %v", cfg.ControlPlane.ScriptTimeout, 20*time.Second)
	}
	if cfg.ControlPlane.RequestTimeout != time.Minute {
		t.Errorf("ControlPlane.RequestTimeout = %v, want %v", cfg.ControlPlane.RequestTimeout, time.Minute)
	}
	if cfg.Collect.Workers != 8 {
		t.Errorf("Collect.Workers = %d, want 8", cfg.Collect.Workers)
	}
	if cfg.Collect.FlushEvery != 25 {
		t.Errorf("Collect.FlushEvery = %d, want 25", cfg.Collect.FlushEvery)
	}
	if cfg.Collect.CheckpointPath != "./assets.json" {
		t.Errorf("Collect.CheckpointPath = %q, want %q", cfg.Collect.CheckpointPath, "./assets.json")
	}
	if len(cfg.Collect.Exclude) != 2 {
		t.Errorf("Collect.Exclude len = %d, want 2", len(cfg.Collect.Exclude))
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ControlPlane.APIBase != DefaultAPIBase {
		t.Errorf("ControlPlane.APIBase = %q, want default %q", cfg.ControlPlane.APIBase, DefaultAPIBase)
	}
	if cfg.Collect.Workers != DefaultWorkers {
		t.Errorf("Collect.Workers = %d, want default %d", cfg.Collect.Workers, DefaultWorkers)
	}
	if cfg.Collect.FlushEvery != DefaultFlushEvery {
		t.Errorf("Collect.FlushEvery = %d, want default %d", cfg.Collect.FlushEvery, DefaultFlushEvery)
	}
	if cfg.ControlPlane.ScriptTimeout != DefaultScriptTimeout {
		t.Errorf("ControlPlane.ScriptTimeout = %v, want default %v", cfg.ControlPlane.ScriptTimeout, DefaultScriptTimeout)
	}
	if cfg.ControlPlane.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("ControlPlane.RequestTimeout = %v, want default %v", cfg.ControlPlane.RequestTimeout, DefaultRequestTimeout)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "collect.yaml")

	configContent := `
control_plane:
  api_base: "http://from-file:3000"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("TENDRIL_API", "http://from-env:3000")
	t.Setenv("TENDRIL_COLLECT_EXCLUDE", "avd-0, avd-1,avdwin11-0")
	t.Setenv("TENDRIL_COLLECT_WORKERS", "3")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ControlPlane.APIBase != "http://from-env:3000" {
		t.Errorf("ControlPlane.APIBase = %q, want env value", cfg.ControlPlane.APIBase)
	}
	if cfg.Collect.Workers != 3 {
		t.Errorf("Collect.Workers = %d, want 3", cfg.Collect.Workers)
	}
	if len(cfg.Collect.Exclude) != 3 {
		t.Fatalf("Collect.Exclude len = %d, want 3", len(cfg.Collect.Exclude))
	}
	if cfg.Collect.Exclude[1] != "avd-1" {
		t.Errorf("Collect.Exclude[1] = %q, want %q (expected trimming)", cfg.Collect.Exclude[1], "avd-1")
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "collect.yaml")

	t.Setenv("TEST_COLLECT_SECRET", "expanded-secret")

	configContent := `
control_plane:
  token_secret: "${TEST_COLLECT_SECRET}"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.ControlPlane.TokenSecret != "expanded-secret" {
		t.Errorf("ControlPlane.TokenSecret = %q, want %q", cfg.ControlPlane.TokenSecret, "expanded-secret")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "collect.yaml")

	configContent := `
control_plane:
  script_timeout: "not-a-duration"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error for invalid duration, got nil")
	}
	if !strings.Contains(err.Error(), "script_timeout") {
		t.Errorf("error %q does not mention script_timeout", err)
	}
}

func TestValidate_TimeoutOrdering(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "collect.yaml")

	// Request deadline must outlast the agent-side script timeout.
	configContent := `
control_plane:
  script_timeout: "45s"
  request_timeout: "30s"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Load() expected error when request_timeout <= script_timeout, got nil")
	}
	if !strings.Contains(err.Error(), "request_timeout") {
		t.Errorf("error %q does not mention request_timeout", err)
	}
}

func TestValidate_BadAPIBase(t *testing.T) {
	t.Setenv("TENDRIL_API", "tendril.internal:3000")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for non-http api_base, got nil")
	}
}

func TestValidate_ZeroWorkers(t *testing.T) {
	t.Setenv("TENDRIL_COLLECT_WORKERS", "-2")

	_, err := Load("")
	if err == nil {
		t.Fatal("Load() expected error for negative workers, got nil")
	}
}
