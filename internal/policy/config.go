package policy

// DefaultFile is the project policy file looked up in the working directory.
const DefaultFile = "cdaudit.yaml"

// Config is a project audit policy: which checks an audit may request and
// which result statuses fail the run.
type Config struct {
	Version     int                       `yaml:"version"`
	Categories  map[string]CategoryConfig `yaml:"categories"`
	Checks      map[string]CheckConfig    `yaml:"checks"`
	Enforcement EnforcementConfig         `yaml:"enforcement"`
}

// CategoryConfig toggles a whole catalog category. A category listed
// without enabled stays enabled.
type CategoryConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

type CheckConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`
}

type EnforcementConfig struct {
	// FailOn lists the check statuses that make cdaudit exit non-zero,
	// e.g. [FAIL] or [FAIL, WARN].
	FailOn []string `yaml:"fail_on"`
}
