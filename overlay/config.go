package overlay

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the one-time overlay configuration: where the blob cache
// lives and which project the package map belongs to. It is set once
// at install and never mutated; pass the handle explicitly rather than
// reaching for process-wide state.
type Config struct {
	CacheRoot     string `yaml:"cache_root"`
	ProjectPrefix string `yaml:"project_prefix"`
}

// LoadConfig reads a YAML config file. Relative paths in the file are
// resolved against the file's directory.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	base := filepath.Dir(path)
	if cfg.CacheRoot != "" && !filepath.IsAbs(cfg.CacheRoot) {
		cfg.CacheRoot = filepath.Join(base, cfg.CacheRoot)
	}
	if cfg.ProjectPrefix != "" && !filepath.IsAbs(cfg.ProjectPrefix) {
		cfg.ProjectPrefix = filepath.Join(base, cfg.ProjectPrefix)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.CacheRoot == "" {
		return fmt.Errorf("%w: cache_root is required", ErrInvalidConfig)
	}
	if c.ProjectPrefix == "" {
		return fmt.Errorf("%w: project_prefix is required", ErrInvalidConfig)
	}
	return nil
}
