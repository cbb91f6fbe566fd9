package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks cfg and returns every problem found.
func (c *Config) Validate() []error {
	var errs []error

	if err := checkURL("engine.base_url", c.Engine.BaseURL, true); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("identity.base_url", c.Identity.BaseURL, false); err != nil {
		errs = append(errs, err)
	}
	if err := checkURL("guide.link_base", c.Guide.LinkBase, false); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.TimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("engine.timeout_seconds must not be negative"))
	}
	if c.Polling.IntervalSeconds < 1 {
		errs = append(errs, fmt.Errorf("polling.interval_seconds must be at least 1, got %d", c.Polling.IntervalSeconds))
	}
	if c.Polling.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("polling.max_attempts must be at least 1, got %d", c.Polling.MaxAttempts))
	}
	if p := c.Identity.ExternalIDPath; p != "" && !strings.HasPrefix(p, "/") {
		errs = append(errs, fmt.Errorf("identity.external_id_path must start with /, got %q", p))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q: want debug, info, warn or error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want console or json", c.Log.Format))
	}
	if c.Archive.Prefix != "" && c.Archive.Bucket == "" {
		errs = append(errs, fmt.Errorf("archive.prefix is set but archive.bucket is empty"))
	}
	return errs
}

func checkURL(field, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q: scheme must be http or https", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q: missing host", field, raw)
	}
	return nil
}

// IdentityBaseURL returns the identity service root, falling back to the
// engine base URL.
func (c *Config) IdentityBaseURL() string {
	if c.Identity.BaseURL != "" {
		return c.Identity.BaseURL
	}
	return c.Engine.BaseURL
}
