package model

import (
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("KANBAN_BACKEND", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend != BackendSQLite {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.Collections.Tasks != "tasks" || cfg.Collections.Users != "users" {
		t.Fatalf("collections = %+v", cfg.Collections)
	}
	if cfg.Redis.Prefix != "kanban" {
		t.Fatalf("redis prefix = %q", cfg.Redis.Prefix)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("KANBAN_BACKEND", "redis")
	t.Setenv("KANBAN_REDIS_ADDR", "cache:6380")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Backend != BackendRedis {
		t.Fatalf("backend = %q", cfg.Backend)
	}
	if cfg.Redis.Addr != "cache:6380" {
		t.Fatalf("redis addr = %q", cfg.Redis.Addr)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	t.Setenv("KANBAN_BACKEND", "")
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	cfg.Backend = BackendMemory
	cfg.Display.WriteTimeoutSec = 3
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}

	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig after save: %v", err)
	}
	if got.Backend != BackendMemory {
		t.Fatalf("backend = %q", got.Backend)
	}
	if got.Display.WriteTimeout().Seconds() != 3 {
		t.Fatalf("write timeout = %v", got.Display.WriteTimeout())
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	cfg := &AppConfig{Backend: "postgres", Collections: CollectionsConfig{Tasks: "t", Users: "u"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected an error for unknown backend")
	}
}
