package models

// CheckCatalogEntry describes one check the audit engine can run.
// Category groups the check in selection views; it is not the guideline
// category used for remediation links, which is looked up separately.
type CheckCatalogEntry struct {
	ID          string `json:"id"           yaml:"id"`
	DisplayName string `json:"display_name" yaml:"name"`
	Category    string `json:"category"     yaml:"category"`
}
