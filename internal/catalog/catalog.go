package catalog

import (
	"sort"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// Catalog is the read-only registry of checks the audit engine can run.
// Implementations are immutable after construction and safe for concurrent
// readers.
type Catalog interface {
	// ListChecks returns every entry in catalog order. Each call returns a
	// fresh copy with identical contents.
	ListChecks() []models.CheckCatalogEntry

	// Lookup returns the entry for checkID.
	Lookup(checkID string) (models.CheckCatalogEntry, bool)

	// GuidelineCategoryFor returns the guide section documenting remediation
	// for checkID. Unknown checks report false; this is never an error.
	GuidelineCategoryFor(checkID string) (string, bool)
}

// DefaultCatalog is an in-memory Catalog built from a validated File.
type DefaultCatalog struct {
	entries    []models.CheckCatalogEntry
	index      map[string]int
	guidelines map[string]string
}

// New builds a DefaultCatalog from f. f must already have passed Validate;
// on duplicate IDs the first entry wins.
func New(f *File) *DefaultCatalog {
	c := &DefaultCatalog{
		entries:    make([]models.CheckCatalogEntry, 0, len(f.Checks)),
		index:      make(map[string]int, len(f.Checks)),
		guidelines: make(map[string]string, len(f.GuidelineCategories)),
	}
	for _, e := range f.Checks {
		if _, dup := c.index[e.ID]; dup {
			continue
		}
		c.index[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	for id, cat := range f.GuidelineCategories {
		c.guidelines[id] = cat
	}
	return c
}

func (c *DefaultCatalog) ListChecks() []models.CheckCatalogEntry {
	out := make([]models.CheckCatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *DefaultCatalog) Lookup(checkID string) (models.CheckCatalogEntry, bool) {
	i, ok := c.index[checkID]
	if !ok {
		return models.CheckCatalogEntry{}, false
	}
	return c.entries[i], true
}

func (c *DefaultCatalog) GuidelineCategoryFor(checkID string) (string, bool) {
	cat, ok := c.guidelines[checkID]
	if !ok || cat == "" {
		return "", false
	}
	return cat, true
}

// ByCategory returns the entries of category in catalog order.
func ByCategory(entries []models.CheckCatalogEntry, category string) []models.CheckCatalogEntry {
	var out []models.CheckCatalogEntry
	for _, e := range entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}

// CategoriesOf returns the distinct categories of entries, sorted ascending.
func CategoriesOf(entries []models.CheckCatalogEntry) []string {
	seen := make(map[string]struct{}, len(entries))
	var out []string
	for _, e := range entries {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	sort.Strings(out)
	return out
}
