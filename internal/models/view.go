package models

// GuidelineLink identifies the remediation guideline for a finding.
// Target is "{category}/{guidelineId}"; presentation code decides the prefix.
type GuidelineLink struct {
	Category    string `json:"category"`
	GuidelineID string `json:"guideline_id"`
	Target      string `json:"target"`
}

// CorrelatedResult is a CheckResult augmented with catalog and guideline data.
type CorrelatedResult struct {
	CheckResult

	// DisplayName is the catalog name, or the check ID for checks the catalog
	// does not know.
	DisplayName string `json:"display_name"`

	// Category is the catalog grouping category. Empty for unknown checks.
	Category string `json:"category,omitempty"`

	// GuidelineCategory is where the remediation for this check is documented.
	GuidelineCategory string `json:"guideline_category,omitempty"`

	// Link is set only when a remediation deep-link should be offered.
	Link *GuidelineLink `json:"link,omitempty"`
}

// SummarySource records where AuditView.Summary came from.
type SummarySource string

const (
	SummaryFromEngine SummarySource = "engine"
	SummaryDerived    SummarySource = "derived"
)

// SummaryMismatch is a non-fatal data-integrity issue: the engine-declared
// summary disagrees with the counts derived from the results.
type SummaryMismatch struct {
	Declared Summary `json:"declared"`
	Derived  Summary `json:"derived"`
}

// AuditView is the display-ready form of a terminal job.
type AuditView struct {
	AuditID       string             `json:"audit_id"`
	AccountID     string             `json:"account_id"`
	Status        JobStatus          `json:"status"`
	StartedAt     Timestamp          `json:"started_at"`
	CompletedAt   *Timestamp         `json:"completed_at,omitempty"`
	Error         string             `json:"error,omitempty"`
	Summary       Summary            `json:"summary"`
	SummarySource SummarySource      `json:"summary_source"`
	Integrity     *SummaryMismatch   `json:"integrity,omitempty"`
	Results       []CorrelatedResult `json:"results"`
}

// Findings returns the results that carry a remediation link, in order.
func (v *AuditView) Findings() []CorrelatedResult {
	var out []CorrelatedResult
	for _, r := range v.Results {
		if r.Link != nil {
			out = append(out, r)
		}
	}
	return out
}
