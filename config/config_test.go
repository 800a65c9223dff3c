package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDecodesKnownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dctool.json")
	body := `{"device":"Suunto Vyper","port":"/dev/ttyUSB0","cachedir":"/tmp/dc-cache"}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device != "Suunto Vyper" || cfg.Port != "/dev/ttyUSB0" || cfg.CacheDir != "/tmp/dc-cache" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadPartialConfigLeavesOtherFieldsZero(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dctool.json")
	if err := os.WriteFile(path, []byte(`{"device":"Oceanic Atom2"}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Device != "Oceanic Atom2" || cfg.Port != "" || cfg.CacheDir != "" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
