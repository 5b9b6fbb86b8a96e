package gatewayconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPathDefaultsWhenNoFile(t *testing.T) {
	cfg := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml"))
	def := DefaultConfig()
	if cfg != def {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoadFromPathMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `
server:
  addr: "0.0.0.0:8080"
  sendRateRPS: 20
session:
  storageDir: "/var/lib/gateway"
  transport: "mock"
  recovery:
    rebuildDelay: 10s
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := LoadFromPath(path)
	if cfg.Server.Addr != "0.0.0.0:8080" {
		t.Fatalf("addr not merged: %q", cfg.Server.Addr)
	}
	if cfg.Server.SendRateRPS != 20 {
		t.Fatalf("sendRateRPS not merged: %v", cfg.Server.SendRateRPS)
	}
	if cfg.Session.StorageDir != "/var/lib/gateway" {
		t.Fatalf("storageDir not merged: %q", cfg.Session.StorageDir)
	}
	if cfg.Session.Recovery.RebuildDelay != 10*time.Second {
		t.Fatalf("rebuildDelay not merged: %v", cfg.Session.Recovery.RebuildDelay)
	}
	// Untouched keys keep their defaults.
	if cfg.Session.Recovery.ReinitDelay != 5*time.Second {
		t.Fatalf("reinitDelay must stay default: %v", cfg.Session.Recovery.ReinitDelay)
	}
	if cfg.Server.SendRateBurst != 10 {
		t.Fatalf("sendRateBurst must stay default: %v", cfg.Server.SendRateBurst)
	}
}

func TestLoadFromPathSkipsUnparsableFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server: ["), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := LoadFromPath(path)
	if cfg != DefaultConfig() {
		t.Fatalf("broken file must fall back to defaults, got %+v", cfg)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("GW_ADDR", "10.0.0.5:9000")
	t.Setenv("GW_SESSION_DIR", "/tmp/gw")
	t.Setenv("GW_TRANSPORT", "mock")
	t.Setenv("GW_SNAPSHOT_PASSPHRASE", "hunter2")

	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)
	if cfg.Server.Addr != "10.0.0.5:9000" {
		t.Fatalf("GW_ADDR not applied: %q", cfg.Server.Addr)
	}
	if cfg.Session.StorageDir != "/tmp/gw" {
		t.Fatalf("GW_SESSION_DIR not applied: %q", cfg.Session.StorageDir)
	}
	if cfg.Session.SnapshotPassphrase != "hunter2" {
		t.Fatal("GW_SNAPSHOT_PASSPHRASE not applied")
	}
}

func TestApplyEnvOverridesPortRewritesHostPort(t *testing.T) {
	t.Setenv("GW_PORT", "4000")
	cfg := DefaultConfig()
	ApplyEnvOverrides(&cfg)
	if cfg.Server.Addr != "127.0.0.1:4000" {
		t.Fatalf("GW_PORT must keep the host, got %q", cfg.Server.Addr)
	}

	t.Setenv("GW_PORT", "nonsense")
	cfg = DefaultConfig()
	ApplyEnvOverrides(&cfg)
	if cfg.Server.Addr != DefaultConfig().Server.Addr {
		t.Fatalf("non-numeric GW_PORT must be ignored, got %q", cfg.Server.Addr)
	}
}

func TestNormalizeRejectsUnknownTransport(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Session.Transport = "carrier-pigeon"
	cfg.Server.SendRateRPS = -1
	got := normalize(cfg)
	if got.Session.Transport != DefaultConfig().Session.Transport {
		t.Fatalf("unknown transport must reset to default, got %q", got.Session.Transport)
	}
	if got.Server.SendRateRPS != DefaultConfig().Server.SendRateRPS {
		t.Fatalf("non-positive rate must reset to default, got %v", got.Server.SendRateRPS)
	}
}
