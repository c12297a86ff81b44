package config

import (
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "postgres://localhost/test")
		t.Setenv("SEARCHGUARD_URL", "https://localhost:9200")
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if cfg.LogLevel != "info" {
			t.Errorf("expected info log level, got %q", cfg.LogLevel)
		}
		if cfg.SearchGuardRole != "lagoonadmin" {
			t.Errorf("expected lagoonadmin role, got %q", cfg.SearchGuardRole)
		}
		if cfg.SyncLockTTL != 30*time.Second {
			t.Errorf("expected 30s lock ttl, got %v", cfg.SyncLockTTL)
		}
		if len(cfg.PIIRedactionFields) != 1 || cfg.PIIRedactionFields[0] != "privateKey" {
			t.Errorf("expected privateKey redaction, got %v", cfg.PIIRedactionFields)
		}
		if cfg.RedisAddr != "" {
			t.Errorf("expected no redis by default, got %q", cfg.RedisAddr)
		}
	})

	t.Run("Missing required", func(t *testing.T) {
		t.Setenv("POSTGRES_URL", "")
		t.Setenv("SEARCHGUARD_URL", "")
		t.Setenv("JWT_SECRET", "")

		if _, err := Load(); err == nil {
			t.Fatal("expected an error for missing required variables")
		}
	})
}
