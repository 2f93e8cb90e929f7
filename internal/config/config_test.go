package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DOCLIFE_CONFIG", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("AUDIT_LIMIT", "")
	t.Setenv("TRANSFER_TIMEOUT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PostgresDSN != "" || cfg.NATSURL != "" {
		t.Fatalf("ledger and notifications should be disabled by default: %+v", cfg)
	}
	if cfg.AuditLimit != 500 || !cfg.AuditCoalesce {
		t.Fatalf("unexpected audit defaults limit=%d coalesce=%v", cfg.AuditLimit, cfg.AuditCoalesce)
	}
	if cfg.TransferTimeout != 10*time.Minute {
		t.Fatalf("unexpected transfer timeout %v", cfg.TransferTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("DOCLIFE_CONFIG", "")
	t.Setenv("AUDIT_LIMIT", "200")
	t.Setenv("AUDIT_COALESCE", "false")
	t.Setenv("BACKEND_TIMEOUT", "5s")
	t.Setenv("GATEWAY_RATE_LIMIT", "2.5")
	t.Setenv("EXTRACT_MAX_CHARS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AuditLimit != 200 || cfg.AuditCoalesce {
		t.Fatalf("expected audit overrides, got limit=%d coalesce=%v", cfg.AuditLimit, cfg.AuditCoalesce)
	}
	if cfg.BackendTimeout != 5*time.Second {
		t.Fatalf("expected backend timeout 5s, got %v", cfg.BackendTimeout)
	}
	if cfg.GatewayRateLimit != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.GatewayRateLimit)
	}
	if cfg.ExtractMaxChars != 200000 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.ExtractMaxChars)
	}
}

func TestLoadAppliesYAMLOverlayBelowEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "doclife.yaml")
	content := []byte("NATS_URL: nats://queue:4222\nnats_subject: org.events\nAUDIT_LIMIT: 50\nDOCLIFE_ORG_ID: from-file\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("DOCLIFE_CONFIG", path)
	t.Setenv("NATS_URL", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("AUDIT_LIMIT", "")
	t.Setenv("DOCLIFE_ORG_ID", "from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.NATSURL != "nats://queue:4222" || cfg.NATSSubject != "org.events" {
		t.Fatalf("expected overlay nats settings, got %q %q", cfg.NATSURL, cfg.NATSSubject)
	}
	if cfg.AuditLimit != 50 {
		t.Fatalf("expected overlay audit limit 50, got %d", cfg.AuditLimit)
	}
	if cfg.OrgID != "from-env" {
		t.Fatalf("environment should win over overlay, got %q", cfg.OrgID)
	}
}

func TestLoadRejectsMalformedOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("a: [unterminated"), 0o600); err != nil {
		t.Fatalf("write overlay: %v", err)
	}
	t.Setenv("DOCLIFE_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for malformed overlay")
	}
}
