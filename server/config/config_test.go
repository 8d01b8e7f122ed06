package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPACEDAN_DATA_DIR", "/tmp/sd")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Addr)
	}
	if cfg.DBPath != filepath.Join("/tmp/sd", "spacedan.db") || cfg.JWTKeyPath != filepath.Join("/tmp/sd", "jwt.key") {
		t.Errorf("derived paths: %q %q", cfg.DBPath, cfg.JWTKeyPath)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SPACEDAN_ADDR=:9999\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("SPACEDAN_ADDR") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" {
		t.Errorf("addr = %q", cfg.Addr)
	}
}
