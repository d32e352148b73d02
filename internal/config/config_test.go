package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("Defaults() must validate cleanly, got: %v", err)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
schema_version: "1"
load:
  load_percent: 50
  threads: 4
observability:
  log_level: debug
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Load.LoadPercent != 50 {
		t.Errorf("Load.LoadPercent = %d, want 50", cfg.Load.LoadPercent)
	}
	if cfg.Load.Threads != 4 {
		t.Errorf("Load.Threads = %d, want 4", cfg.Load.Threads)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("Observability.LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
	// Untouched defaults must survive the merge.
	if cfg.Observability.MetricsAddr != "127.0.0.1:9091" {
		t.Errorf("Observability.MetricsAddr = %q, want unchanged default", cfg.Observability.MetricsAddr)
	}
	if cfg.Operator.SocketPath != "/run/thermite/operator.sock" {
		t.Errorf("Operator.SocketPath = %q, want unchanged default", cfg.Operator.SocketPath)
	}
}

func TestLoadMissingFileIsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error loading a nonexistent file")
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
schema_version: "1"
load:
  load_percent: 150
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected Load to reject load_percent out of [0, 100]")
	}
}

func TestValidateAccumulatesMultipleErrors(t *testing.T) {
	cfg := Defaults()
	cfg.SchemaVersion = "2"
	cfg.Load.LoadPercent = -1
	cfg.Load.TimeoutSeconds = -5
	cfg.Observability.LogLevel = "verbose"

	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"schema_version", "load_percent", "timeout_seconds", "log_level"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected validation error to mention %q, got: %s", want, msg)
		}
	}
}

func TestValidateRejectsEmptyOperatorSocketWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Operator.Enabled = true
	cfg.Operator.SocketPath = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for empty operator socket path while enabled")
	}
}

func TestValidateRejectsEmptyHistoryPathWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.History.Enabled = true
	cfg.History.DBPath = ""
	if err := Validate(&cfg); err == nil {
		t.Fatal("expected error for empty history db path while enabled")
	}
}
