package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "127.0.0.1:8095" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.Sync.WindowSize != 100 {
		t.Errorf("WindowSize = %d", cfg.Sync.WindowSize)
	}
	if cfg.Sync.BodyTruncationKB != 32 {
		t.Errorf("BodyTruncationKB = %d", cfg.Sync.BodyTruncationKB)
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "listen_addr: \"0.0.0.0:9000\"\ndata_dir: /var/lib/iwomail\nsync:\n  window_size: 25\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.DataDir != "/var/lib/iwomail" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Sync.WindowSize != 25 {
		t.Errorf("WindowSize = %d", cfg.Sync.WindowSize)
	}
	// Unset keys keep their defaults.
	if cfg.Sync.MaxParallel != 4 {
		t.Errorf("MaxParallel = %d", cfg.Sync.MaxParallel)
	}
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("listen_addr: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
