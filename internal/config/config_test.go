package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 8080 || cfg.LogLevel != "info" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.MailboxCapacity != 1024 || cfg.EventBacklog != 1024 {
		t.Fatalf("unexpected fabric defaults %+v", cfg)
	}
	if cfg.ArchiveEnabled() || cfg.ObjectStore.Enabled() {
		t.Fatal("archive and object store should be disabled by default")
	}
	if cfg.IngestWorkers != 2 || cfg.NameCacheTTL != time.Minute {
		t.Fatalf("unexpected worker defaults %+v", cfg)
	}
	if cfg.ObjectStore.Region != "us-east-1" {
		t.Fatalf("unexpected region %q", cfg.ObjectStore.Region)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SOCIAL_PORT", "9090")
	t.Setenv("SOCIAL_EVENT_BACKLOG", "16")
	t.Setenv("SOCIAL_NAME_CACHE_TTL", "30s")
	t.Setenv("SOCIAL_DATABASE_URL", "postgres://localhost/social")
	t.Setenv("SOCIAL_OBJECT_STORE_BUCKET", "media")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.AppPort != 9090 || cfg.EventBacklog != 16 || cfg.NameCacheTTL != 30*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if !cfg.ArchiveEnabled() || !cfg.ObjectStore.Enabled() {
		t.Fatal("archive and object store should be enabled")
	}
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]struct {
		key, value, want string
	}{
		"malformed":   {"SOCIAL_PORT", "not-a-port", "parse env:"},
		"outOfRange":  {"SOCIAL_PORT", "70000", "out of range"},
		"zeroBacklog": {"SOCIAL_EVENT_BACKLOG", "0", "event backlog"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
