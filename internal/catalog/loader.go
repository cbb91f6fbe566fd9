package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

//go:embed checks.yaml
var embeddedChecks []byte

// File is the on-disk catalog artifact.
type File struct {
	Version             int                        `yaml:"version"`
	Checks              []models.CheckCatalogEntry `yaml:"checks"`
	GuidelineCategories map[string]string          `yaml:"guideline_categories"`
}

// Parse decodes and validates a catalog artifact.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if errs := Validate(&f); len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}
	if f.GuidelineCategories == nil {
		f.GuidelineCategories = make(map[string]string)
	}
	return &f, nil
}

// LoadFile reads and validates the catalog artifact at path.
func LoadFile(path string) (*DefaultCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %q: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", path, err)
	}
	return New(f), nil
}

// Embedded returns the catalog compiled into the binary. The artifact is
// covered by tests, so a parse failure here is a build defect.
func Embedded() *DefaultCatalog {
	f, err := Parse(embeddedChecks)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return New(f)
}

// Load returns the catalog at path, or the embedded one when path is empty.
func Load(path string) (*DefaultCatalog, error) {
	if path == "" {
		return Embedded(), nil
	}
	return LoadFile(path)
}
