package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DATABASE_URL", "postgres://db/carelog")
	t.Setenv("STAGING_DATABASE_URL", "")
	t.Setenv("UPDATE_TTL_HOURS", "")
	t.Setenv("SWEEP_INTERVAL", "")

	cfg := Load()

	if cfg.Env != "dev" {
		t.Fatalf("expected env dev, got %q", cfg.Env)
	}
	if cfg.StagingDatabaseURL != cfg.DatabaseURL {
		t.Fatalf("expected staging url to default to database url, got %q", cfg.StagingDatabaseURL)
	}
	if cfg.UpdateTTLSeconds() != 24*60*60 {
		t.Fatalf("expected 86400 seconds, got %d", cfg.UpdateTTLSeconds())
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Fatalf("expected 5m sweep interval, got %s", cfg.SweepInterval)
	}
	if cfg.StagingCollection != "updates" {
		t.Fatalf("expected updates collection, got %q", cfg.StagingCollection)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("UPDATE_TTL_HOURS", "2")
	t.Setenv("BLOB_STORE", "S3")
	t.Setenv("RECONCILE_DRY_RUN", "true")
	t.Setenv("RECONCILE_INTERVAL", "90m")
	t.Setenv("SWEEP_CONCURRENCY", "not-a-number")
	t.Setenv("JANITOR_JOB", " Sweep ")

	cfg := Load()

	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.UpdateTTLSeconds() != 7200 {
		t.Fatalf("expected 7200 seconds, got %d", cfg.UpdateTTLSeconds())
	}
	if cfg.BlobStoreType != "s3" {
		t.Fatalf("expected s3 store, got %q", cfg.BlobStoreType)
	}
	if !cfg.ReconcileDryRun {
		t.Fatalf("expected dry run enabled")
	}
	if cfg.ReconcileInterval != 90*time.Minute {
		t.Fatalf("expected 90m, got %s", cfg.ReconcileInterval)
	}
	if cfg.SweepConcurrency != defaultSweepConcurrency {
		t.Fatalf("expected fallback concurrency, got %d", cfg.SweepConcurrency)
	}
	if cfg.Job != "sweep" {
		t.Fatalf("expected normalized job, got %q", cfg.Job)
	}
	if cfg.IsDevLike() {
		t.Fatalf("production must not be dev-like")
	}
}

func TestUnrecognisedEnvIsNotDevLike(t *testing.T) {
	t.Setenv("ENV", " QA ")

	cfg := Load()

	if cfg.Env != "qa" {
		t.Fatalf("expected env qa, got %q", cfg.Env)
	}
	if cfg.IsDevLike() {
		t.Fatalf("expected unrecognised env to be strict")
	}
}

func TestNormalizeEnv(t *testing.T) {
	tests := map[string]string{
		"":            "dev",
		"Development": "dev",
		"LOCAL":       "local",
		"prod":        "production",
		"staging":     "staging",
		"qa":          "qa",
	}
	for raw, want := range tests {
		if got := normalizeEnv(raw); got != want {
			t.Fatalf("normalizeEnv(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestUpdateTTLSecondsFallsBackOnNonPositive(t *testing.T) {
	cfg := Config{UpdateTTLHours: 0}
	if got := cfg.UpdateTTLSeconds(); got != 86400 {
		t.Fatalf("expected default ttl, got %d", got)
	}
}
