package policy

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the policy file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse policy %q: %w", path, err)
	}

	if cfg.Version != 1 {
		return nil, errors.New("unsupported policy version")
	}

	if cfg.Categories == nil {
		cfg.Categories = make(map[string]CategoryConfig)
	}

	if cfg.Checks == nil {
		cfg.Checks = make(map[string]CheckConfig)
	}

	return &cfg, nil
}

// LoadOptional loads path when it exists. A missing file yields a nil
// policy and no error.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return cfg, err
}
