package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfigFile(t, `
app_name: depot-test
run_mode: debug
server:
  host: 127.0.0.1
  port: 9000
data:
  database:
    driver: sqlite
    source: /tmp/test.db
storage:
  root: /tmp/depot
  allowed_extensions: [csv, tsv]
pipeline:
  max_workers: 3
  poll_interval: 250ms
  staleness_threshold: 2m
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppName != "depot-test" || cfg.RunMode != "debug" {
		t.Errorf("unexpected app config: %+v", cfg)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 9000 {
		t.Errorf("unexpected server config: %s:%d", cfg.Host, cfg.Port)
	}
	if cfg.Data.Driver != "sqlite" || cfg.Data.Source != "/tmp/test.db" {
		t.Errorf("unexpected data config: %+v", cfg.Data)
	}
	if cfg.Storage.Root != "/tmp/depot" {
		t.Errorf("unexpected storage root: %s", cfg.Storage.Root)
	}
	if len(cfg.Storage.AllowedExtensions) != 2 || cfg.Storage.AllowedExtensions[1] != "tsv" {
		t.Errorf("unexpected extensions: %v", cfg.Storage.AllowedExtensions)
	}
	if cfg.Pipeline.MaxWorkers != 3 {
		t.Errorf("expected 3 workers, got %d", cfg.Pipeline.MaxWorkers)
	}
	if cfg.Pipeline.PollInterval != 250*time.Millisecond {
		t.Errorf("expected 250ms poll interval, got %s", cfg.Pipeline.PollInterval)
	}
	if cfg.Pipeline.StalenessThreshold != 2*time.Minute {
		t.Errorf("expected 2m staleness, got %s", cfg.Pipeline.StalenessThreshold)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfigFile(t, `
data:
  database:
    driver: sqlite
    source: /tmp/test.db
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppName != "filedepot" || cfg.RunMode != "release" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", cfg.Port)
	}
	if cfg.Pipeline.MaxWorkers <= 0 || cfg.Pipeline.PollInterval <= 0 {
		t.Errorf("expected positive pipeline defaults: %+v", cfg.Pipeline)
	}
	if cfg.Pipeline.StalenessThreshold <= 0 || cfg.Pipeline.ReclaimInterval <= 0 {
		t.Errorf("expected positive reclaim defaults: %+v", cfg.Pipeline)
	}
	if len(cfg.Storage.AllowedExtensions) == 0 {
		t.Error("expected default allowed extensions")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetConfig(t *testing.T) {
	path := writeConfigFile(t, `
data:
  database:
    driver: sqlite
    source: /tmp/test.db
`)
	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := GetConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != loaded {
		t.Error("expected GetConfig to return the loaded configuration")
	}
}
