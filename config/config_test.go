package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[server]
address = ":9090"

[bus]
kind = "frame"
address = "/dev/ttyUSB0"
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Errorf("Server.Address = %q, want :9090", cfg.Server.Address)
	}
	if cfg.Bus.Kind != "frame" || cfg.Bus.Address != "/dev/ttyUSB0" {
		t.Errorf("Bus = %+v, want kind=frame address=/dev/ttyUSB0", cfg.Bus)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want default info", cfg.Log.Level)
	}
	if cfg.Persistence.DocumentPath != "layout.json" {
		t.Errorf("Persistence.DocumentPath = %q, want default layout.json", cfg.Persistence.DocumentPath)
	}
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected an error loading a nonexistent config file")
	}
}
