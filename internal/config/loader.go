package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvEngineURL   = "CLOUDDOCTOR_ENGINE_URL"
	EnvIdentityURL = "CLOUDDOCTOR_IDENTITY_URL"
	EnvToken       = "CLOUDDOCTOR_TOKEN"
	EnvExternalID  = "CLOUDDOCTOR_EXTERNAL_ID"
)

// FileLoader reads a YAML, TOML or JSON file chosen by extension, layered
// over Default and under environment overrides.
type FileLoader struct {
	path string

	// explicit is true when the path was given by the user; a missing
	// explicit file is an error, a missing default file is not.
	explicit bool

	getenv func(string) string
}

// NewFileLoader returns a loader for path. An empty path selects
// DefaultPath.
func NewFileLoader(path string) *FileLoader {
	l := &FileLoader{path: path, explicit: path != "", getenv: os.Getenv}
	if path == "" {
		l.path = DefaultPath()
	}
	return l
}

// DefaultPath returns ~/.config/clouddoctor/config.yaml, or a relative
// path when the home directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".clouddoctor", "config.yaml")
	}
	return filepath.Join(home, ".config", "clouddoctor", "config.yaml")
}

func (l *FileLoader) ConfigPath() string { return l.path }

func (l *FileLoader) Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(l.path)
	switch {
	case err == nil:
		if err := decode(l.path, data, cfg); err != nil {
			return nil, err
		}
	case errors.Is(err, os.ErrNotExist) && !l.explicit:
		// no config file yet; defaults apply
	default:
		return nil, fmt.Errorf("read config %q: %w", l.path, err)
	}

	l.applyEnv(cfg)

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("config %q: %w", l.path, errors.Join(errs...))
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	var err error
	switch ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("config %q: unsupported format %q (want .yaml, .yml, .toml or .json)", path, ext)
	}
	if err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}
	return nil
}

func (l *FileLoader) applyEnv(cfg *Config) {
	if v := l.getenv(EnvEngineURL); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := l.getenv(EnvIdentityURL); v != "" {
		cfg.Identity.BaseURL = v
	}
	if v := l.getenv(EnvToken); v != "" {
		cfg.Identity.Token = v
	}
	if v := l.getenv(EnvExternalID); v != "" {
		cfg.Identity.ExternalID = v
	}
}
