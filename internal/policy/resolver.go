package policy

import (
	"errors"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// ErrNothingSelected is returned when the policy disables every requested
// check. Sending an empty selection would ask the engine for all checks.
var ErrNothingSelected = errors.New("policy disables every requested check")

// SelectChecks applies the policy to a check selection.
//
// An empty requested slice means "all checks". With no disabled checks or
// categories it stays empty; otherwise it is expanded to the enabled
// catalog checks so the engine runs exactly those. Requested ids the catalog
// does not know are kept, since the engine may still run them.
func SelectChecks(requested []string, entries []models.CheckCatalogEntry, cfg *Config) ([]string, error) {
	if cfg == nil || !cfg.restricts() {
		return requested, nil
	}

	categoryOf := make(map[string]string, len(entries))
	for _, e := range entries {
		categoryOf[e.ID] = e.Category
	}

	candidates := requested
	if len(candidates) == 0 {
		candidates = make([]string, 0, len(entries))
		for _, e := range entries {
			candidates = append(candidates, e.ID)
		}
	}

	var selected []string
	for _, id := range candidates {
		if cfg.Enabled(id, categoryOf[id]) {
			selected = append(selected, id)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNothingSelected
	}
	return selected, nil
}

// Enabled reports whether checkID in category may run. A check-level
// setting wins over its category.
func (c *Config) Enabled(checkID, category string) bool {
	if c == nil {
		return true
	}
	if cc, ok := c.Checks[checkID]; ok && cc.Enabled != nil {
		return *cc.Enabled
	}
	if cat, ok := c.Categories[category]; ok && category != "" && cat.Enabled != nil {
		return *cat.Enabled
	}
	return true
}

// restricts reports whether any check or category is disabled.
func (c *Config) restricts() bool {
	for _, cc := range c.Checks {
		if cc.Enabled != nil && !*cc.Enabled {
			return true
		}
	}
	for _, cat := range c.Categories {
		if cat.Enabled != nil && !*cat.Enabled {
			return true
		}
	}
	return false
}
