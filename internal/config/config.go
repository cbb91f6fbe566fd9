package config

import "time"

// Config is the top-level application configuration.
// It is loaded from ~/.config/clouddoctor/config.yaml and must never be
// committed with real secrets.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"   json:"engine"   toml:"engine"`
	Identity IdentityConfig `yaml:"identity" json:"identity" toml:"identity"`
	Polling  PollingConfig  `yaml:"polling"  json:"polling"  toml:"polling"`
	Audit    AuditConfig    `yaml:"audit"    json:"audit"    toml:"audit"`
	Guide    GuideConfig    `yaml:"guide"    json:"guide"    toml:"guide"`
	Catalog  CatalogConfig  `yaml:"catalog"  json:"catalog"  toml:"catalog"`
	Log      LogConfig      `yaml:"log"      json:"log"      toml:"log"`
	AWS      AWSConfig      `yaml:"aws"      json:"aws"      toml:"aws"`
	Archive  ArchiveConfig  `yaml:"archive"  json:"archive"  toml:"archive"`
	Metrics  MetricsConfig  `yaml:"metrics"  json:"metrics"  toml:"metrics"`
}

// EngineConfig locates the remote audit engine.
type EngineConfig struct {
	// BaseURL is the engine root, e.g. "http://localhost:8000".
	BaseURL string `yaml:"base_url" json:"base_url" toml:"base_url"`

	// TimeoutSeconds bounds each HTTP request to the engine.
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" toml:"timeout_seconds"`
}

// Timeout returns TimeoutSeconds as a duration.
func (e EngineConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// IdentityConfig locates the identity service that issues external ids.
type IdentityConfig struct {
	// BaseURL defaults to the engine base URL when empty.
	BaseURL string `yaml:"base_url" json:"base_url" toml:"base_url"`

	ExternalIDPath string `yaml:"external_id_path" json:"external_id_path" toml:"external_id_path"`

	// Token is the bearer access token. Never committed to version control.
	Token string `yaml:"token" json:"token" toml:"token"`

	// ExternalID skips the identity lookup when set.
	ExternalID string `yaml:"external_id" json:"external_id" toml:"external_id"`
}

// PollingConfig bounds how long an audit is waited on.
type PollingConfig struct {
	IntervalSeconds int `yaml:"interval_seconds" json:"interval_seconds" toml:"interval_seconds"`
	MaxAttempts     int `yaml:"max_attempts"     json:"max_attempts"     toml:"max_attempts"`
}

// Interval returns IntervalSeconds as a duration.
func (p PollingConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSeconds) * time.Second
}

// AuditConfig holds submission defaults.
type AuditConfig struct {
	// RoleName is the trust role assumed in target accounts.
	RoleName string `yaml:"role_name" json:"role_name" toml:"role_name"`
}

// GuideConfig controls remediation deep-links.
type GuideConfig struct {
	// LinkBase prefixes "{category}/{guidelineId}", e.g.
	// "https://clouddoctor.example.com/guide".
	LinkBase string `yaml:"link_base" json:"link_base" toml:"link_base"`
}

// CatalogConfig optionally replaces the embedded check catalog.
type CatalogConfig struct {
	File string `yaml:"file" json:"file" toml:"file"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" json:"level" toml:"level"`

	// Format is "console" or "json".
	Format string `yaml:"format" json:"format" toml:"format"`
}

// AWSConfig holds AWS-specific defaults used when flags are not provided.
type AWSConfig struct {
	// Profile is used when no --profile flag is provided.
	Profile string `yaml:"profile" json:"profile" toml:"profile"`

	// Region is used when no region flag or profile region is set.
	Region string `yaml:"region" json:"region" toml:"region"`
}

// ArchiveConfig enables copying terminal audit results to S3.
type ArchiveConfig struct {
	Bucket string `yaml:"bucket" json:"bucket" toml:"bucket"`
	Prefix string `yaml:"prefix" json:"prefix" toml:"prefix"`
}

// MetricsConfig enables the node exporter textfile output.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" json:"textfile" toml:"textfile"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: 300,
		},
		Identity: IdentityConfig{
			ExternalIDPath: "/api/user/external-id",
		},
		Polling: PollingConfig{
			IntervalSeconds: 5,
			MaxAttempts:     120,
		},
		Audit: AuditConfig{RoleName: "CloudDoctorAuditRole"},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

// Loader is the interface for reading Config from disk.
// Default implementation reads from ~/.config/clouddoctor/config.yaml.
type Loader interface {
	// Load reads, parses, and validates the configuration file.
	Load() (*Config, error)

	// ConfigPath returns the absolute path to the configuration file.
	ConfigPath() string
}
