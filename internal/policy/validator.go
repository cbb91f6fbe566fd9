package policy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/catalog"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// Validate checks cfg for semantic correctness against the check catalog and
// returns all validation errors found. An empty slice means the policy is
// valid.
//
// Checks performed:
//   - version must be 1
//   - category names must be catalog categories
//   - check IDs must be catalog checks
//   - enforcement fail_on values must be PASS, FAIL, WARN or ERROR
//
// All errors are collected before returning; Validate never stops at the first error.
func Validate(cfg *Config, entries []models.CheckCatalogEntry) []error {
	if cfg == nil {
		return []error{fmt.Errorf("policy config is nil")}
	}

	knownChecks := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		knownChecks[e.ID] = struct{}{}
	}
	categories := catalog.CategoriesOf(entries)
	knownCategories := make(map[string]struct{}, len(categories))
	for _, c := range categories {
		knownCategories[c] = struct{}{}
	}

	var errs []error

	if cfg.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", cfg.Version))
	}

	for _, name := range sortedKeys(cfg.Categories) {
		if _, ok := knownCategories[name]; !ok {
			errs = append(errs, fmt.Errorf("categories.%s: unknown category; valid values: %s", name, strings.Join(categories, ", ")))
		}
	}

	for _, id := range sortedKeys(cfg.Checks) {
		if _, ok := knownChecks[id]; !ok {
			errs = append(errs, fmt.Errorf("checks.%s: unknown check ID", id))
		}
	}

	for i, s := range cfg.Enforcement.FailOn {
		if !models.CheckStatus(strings.ToUpper(strings.TrimSpace(s))).Known() {
			errs = append(errs, fmt.Errorf("enforcement.fail_on[%d]: invalid value %q; valid values: PASS, FAIL, WARN, ERROR", i, s))
		}
	}

	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
