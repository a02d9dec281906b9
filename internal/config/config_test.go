package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
acquisition:
  concurrency: 6
  queue_depth: 128
  target_records: 500
  run_budget_seconds: 90
  breaker_threshold: 5
source:
  endpoints:
    - "https://api.example.com/review/{productId}?page={page}&pageSize={pageSize}&order={sortKey}"
  page_size: 30
  max_pages: 10
  sort_key: newest
  user_agent: review-agent
  rate_rps: 0.5
  jitter_min_ms: 100
  jitter_max_ms: 300
http:
  timeout_seconds: 45
  max_retries: 4
browser:
  enabled: true
  max_parallel: 2
storage:
  backend: gcs
  gcs_bucket: review-archive
  prefix: raw
db:
  dsn: postgres://localhost/reviews
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Acquisition.TargetRecords != 500 {
		t.Fatalf("expected target records override, got %d", cfg.Acquisition.TargetRecords)
	}
	if len(cfg.Source.Endpoints) != 1 {
		t.Fatalf("expected one endpoint template, got %d", len(cfg.Source.Endpoints))
	}
	if cfg.Source.SortKey != "newest" {
		t.Fatalf("expected sort key override, got %q", cfg.Source.SortKey)
	}
	if got := cfg.RunBudget(); got != 90*time.Second {
		t.Fatalf("expected run budget 90s, got %v", got)
	}
	if got := cfg.HTTPTimeout(); got != 45*time.Second {
		t.Fatalf("expected http timeout 45s, got %v", got)
	}
	minJitter, maxJitter := cfg.JitterBounds()
	if minJitter != 100*time.Millisecond || maxJitter != 300*time.Millisecond {
		t.Fatalf("expected jitter bounds 100ms/300ms, got %v/%v", minJitter, maxJitter)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
}

func TestLoadRejectsMissingEndpoints(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing source endpoints")
	}
}

func TestValidateStorageBackend(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:      ServerConfig{Port: 8080},
		Acquisition: AcquisitionConfig{Concurrency: 1},
		Source: SourceConfig{
			Endpoints:   []string{"https://x/{productId}"},
			JitterMaxMs: 100,
		},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Storage: StorageConfig{Backend: "memory"},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	bad := base
	bad.Storage.Backend = "s3"
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}

	local := base
	local.Storage.Backend = "local"
	if err := local.Validate(); err == nil {
		t.Fatal("expected error for local backend without directory")
	}
	local.Storage.LocalDir = "/tmp/archive"
	if err := local.Validate(); err != nil {
		t.Fatalf("expected valid local config, got %v", err)
	}
}
