package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadIncludesRunConfigDefaults(t *testing.T) {
	t.Setenv("QUICK_TIMEOUT_SECONDS", "")
	t.Setenv("LONG_TIMEOUT_SECONDS", "")
	t.Setenv("MAX_RETRIES", "")
	t.Setenv("BACKOFF_BASE_SECONDS", "")
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("RUN_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RunConfig.QuickTimeout != 90*time.Second {
		t.Fatalf("expected default quick timeout 90s, got %s", cfg.RunConfig.QuickTimeout)
	}
	if cfg.RunConfig.LongTimeout != 5*time.Minute {
		t.Fatalf("expected default long timeout 5m, got %s", cfg.RunConfig.LongTimeout)
	}
	if cfg.RunConfig.MaxRetries != 4 {
		t.Fatalf("expected default max retries 4, got %d", cfg.RunConfig.MaxRetries)
	}
	if cfg.RunConfig.BackoffBase != time.Minute {
		t.Fatalf("expected default backoff base 1m, got %s", cfg.RunConfig.BackoffBase)
	}
	if cfg.RunConfig.BatchSize != 5 {
		t.Fatalf("expected default batch size 5, got %d", cfg.RunConfig.BatchSize)
	}
}

func TestLoadParsesRunConfigEnvOverrides(t *testing.T) {
	t.Setenv("QUICK_TIMEOUT_SECONDS", "120")
	t.Setenv("MAX_RETRIES", "6")
	t.Setenv("BATCH_SIZE", "3")
	t.Setenv("RUN_CONFIG_FILE", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RunConfig.QuickTimeout != 120*time.Second {
		t.Fatalf("expected quick timeout 120s, got %s", cfg.RunConfig.QuickTimeout)
	}
	if cfg.RunConfig.MaxRetries != 6 {
		t.Fatalf("expected max retries 6, got %d", cfg.RunConfig.MaxRetries)
	}
	if cfg.RunConfig.BatchSize != 3 {
		t.Fatalf("expected batch size 3, got %d", cfg.RunConfig.BatchSize)
	}
}

func TestLoadAppliesRunConfigFileOverEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := "quick_timeout_seconds: 45\nbatch_size: 8\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write run config: %v", err)
	}

	t.Setenv("QUICK_TIMEOUT_SECONDS", "120")
	t.Setenv("RUN_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RunConfig.QuickTimeout != 45*time.Second {
		t.Fatalf("expected file to win over env, got %s", cfg.RunConfig.QuickTimeout)
	}
	if cfg.RunConfig.BatchSize != 8 {
		t.Fatalf("expected batch size 8 from file, got %d", cfg.RunConfig.BatchSize)
	}
	if cfg.RunConfig.MaxRetries != 4 {
		t.Fatalf("expected untouched fields to keep defaults, got %d", cfg.RunConfig.MaxRetries)
	}
}

func TestLoadRejectsUnreadableRunConfigFile(t *testing.T) {
	t.Setenv("RUN_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing run config file")
	}
}
