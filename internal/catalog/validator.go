package catalog

import (
	"fmt"
	"sort"
	"strings"
)

// Validate checks f for semantic correctness and returns every error found.
// An empty slice means the artifact is usable.
//
// Checks performed:
//   - version must be 1
//   - at least one check must be listed
//   - every check needs a non-empty id and category
//   - check ids must be unique
//   - guideline category values must be non-empty
//
// Guideline categories may name checks that are not in the selection list;
// the engine still reports some retired check ids.
func Validate(f *File) []error {
	if f == nil {
		return []error{fmt.Errorf("catalog is nil")}
	}

	var errs []error

	if f.Version != 1 {
		errs = append(errs, fmt.Errorf("version: unsupported value %d; must be 1", f.Version))
	}
	if len(f.Checks) == 0 {
		errs = append(errs, fmt.Errorf("checks: at least one check is required"))
	}

	seen := make(map[string]int, len(f.Checks))
	for i, c := range f.Checks {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			errs = append(errs, fmt.Errorf("checks[%d].id: must not be empty", i))
			continue
		}
		if first, dup := seen[id]; dup {
			errs = append(errs, fmt.Errorf("checks[%d].id: duplicate id %q (first at checks[%d])", i, id, first))
		} else {
			seen[id] = i
		}
		if strings.TrimSpace(c.Category) == "" {
			errs = append(errs, fmt.Errorf("checks[%d].category: must not be empty for %q", i, id))
		}
	}

	ids := make([]string, 0, len(f.GuidelineCategories))
	for id := range f.GuidelineCategories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if strings.TrimSpace(f.GuidelineCategories[id]) == "" {
			errs = append(errs, fmt.Errorf("guideline_categories.%s: must not be empty", id))
		}
	}

	return errs
}
