package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PERSISTENCE_DRIVER", "")
	t.Setenv("BATCH_MAX_CONCURRENT", "")
	t.Setenv("JOB_MAX_AGE_HOURS", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PersistenceDriver != PersistenceSQLite {
		t.Fatalf("PersistenceDriver = %q, want %q", cfg.PersistenceDriver, PersistenceSQLite)
	}
	if cfg.MaxConcurrent != 3 {
		t.Fatalf("MaxConcurrent = %d, want 3", cfg.MaxConcurrent)
	}
	if cfg.JobMaxAge != 24*time.Hour {
		t.Fatalf("JobMaxAge = %s, want 24h", cfg.JobMaxAge)
	}
}

func TestLoadConfigInfersPostgres(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("PERSISTENCE_DRIVER", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PersistenceDriver != PersistencePostgres {
		t.Fatalf("PersistenceDriver = %q, want %q", cfg.PersistenceDriver, PersistencePostgres)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "postgres_without_url", env: map[string]string{"PERSISTENCE_DRIVER": "postgres", "DATABASE_URL": ""}},
		{name: "unknown_driver", env: map[string]string{"PERSISTENCE_DRIVER": "mongo"}},
		{name: "zero_concurrency", env: map[string]string{"PERSISTENCE_DRIVER": "none", "BATCH_MAX_CONCURRENT": "0"}},
		{name: "zero_workers", env: map[string]string{"PERSISTENCE_DRIVER": "none", "IMAGE_WORKERS": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PERSISTENCE_DRIVER", "NONE")
	t.Setenv("BATCH_MAX_CONCURRENT", "5")
	t.Setenv("CLEANUP_INTERVAL_MINUTES", "5")
	t.Setenv("PORT", "1919")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example, ,https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.PersistenceDriver != PersistenceNone {
		t.Fatalf("PersistenceDriver = %q", cfg.PersistenceDriver)
	}
	if cfg.MaxConcurrent != 5 {
		t.Fatalf("MaxConcurrent = %d, want 5", cfg.MaxConcurrent)
	}
	if cfg.CleanupInterval != 5*time.Minute {
		t.Fatalf("CleanupInterval = %s, want 5m", cfg.CleanupInterval)
	}
	if cfg.Port != "1919" {
		t.Fatalf("Port = %q, want 1919", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example" {
		t.Fatalf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}
