package overlay

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crux.yaml")
	if err := os.WriteFile(path, []byte("cache_root: cache\nproject_prefix: /srv/app\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CacheRoot != filepath.Join(dir, "cache") {
		t.Errorf("relative cache_root = %s, want resolved against the config dir", cfg.CacheRoot)
	}
	if cfg.ProjectPrefix != "/srv/app" {
		t.Errorf("absolute project_prefix = %s, want untouched", cfg.ProjectPrefix)
	}
}

func TestLoadConfigRejectsIncomplete(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crux.yaml")
	if err := os.WriteFile(path, []byte("cache_root: /x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig without project_prefix = %v, want ErrInvalidConfig", err)
	}

	if err := os.WriteFile(path, []byte("\t not yaml {"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig on malformed YAML = %v, want ErrInvalidConfig", err)
	}
}

func TestInstallRejectsInvalidConfig(t *testing.T) {
	if _, err := Install(Config{}); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Install with empty config = %v, want ErrInvalidConfig", err)
	}
}
