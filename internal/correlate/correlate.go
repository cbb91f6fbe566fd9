// Package correlate joins a terminal audit job with the check catalog to
// produce the display-ready view: catalog grouping, guideline categories and
// remediation deep-links.
package correlate

import (
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/catalog"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/metrics"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// Correlator builds AuditViews. The zero value is usable and silent.
type Correlator struct {
	Catalog catalog.Catalog
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

// New returns a Correlator over cat.
func New(cat catalog.Catalog, logger *zap.Logger, m *metrics.Recorder) *Correlator {
	return &Correlator{Catalog: cat, Logger: logger, Metrics: m}
}

// Correlate is shorthand for a Correlator without logging or metrics.
func Correlate(job *models.AuditJob, cat catalog.Catalog) *models.AuditView {
	return New(cat, nil, nil).Correlate(job)
}

// Correlate builds the view for job. Results keep the engine's order.
// A nil job yields an empty view.
func (c *Correlator) Correlate(job *models.AuditJob) *models.AuditView {
	view := &models.AuditView{Results: []models.CorrelatedResult{}}
	if job == nil {
		view.SummarySource = models.SummaryDerived
		return view
	}

	view.AuditID = job.AuditID
	view.AccountID = job.AccountID
	view.Status = job.Status
	view.StartedAt = job.StartedAt
	view.CompletedAt = job.CompletedAt
	view.Error = job.Error

	for _, r := range job.Results {
		view.Results = append(view.Results, c.correlateResult(r, job.GuidelineIDs))
	}

	c.summarize(view, job)
	return view
}

func (c *Correlator) correlateResult(r models.CheckResult, ids models.GuidelineIDs) models.CorrelatedResult {
	out := models.CorrelatedResult{CheckResult: r, DisplayName: r.CheckID}
	if c.Catalog == nil {
		return out
	}

	if entry, ok := c.Catalog.Lookup(r.CheckID); ok {
		out.DisplayName = entry.DisplayName
		out.Category = entry.Category
	}

	category, ok := c.Catalog.GuidelineCategoryFor(r.CheckID)
	if !ok {
		return out
	}
	out.GuidelineCategory = category

	if !r.Status.Actionable() {
		return out
	}
	if id, ok := ids.Lookup(r.CheckID); ok {
		out.Link = &models.GuidelineLink{
			Category:    category,
			GuidelineID: id,
			Target:      category + "/" + id,
		}
	}
	return out
}

// summarize fills the view summary. The engine-declared summary is
// authoritative; a disagreement with the results is recorded, not resolved.
func (c *Correlator) summarize(view *models.AuditView, job *models.AuditJob) {
	derived := models.SummarizeResults(job.Results)

	if job.Summary == nil {
		view.Summary = derived
		view.SummarySource = models.SummaryDerived
		return
	}

	view.Summary = *job.Summary
	view.SummarySource = models.SummaryFromEngine
	if *job.Summary == derived {
		return
	}

	view.Integrity = &models.SummaryMismatch{Declared: *job.Summary, Derived: derived}
	c.Metrics.Mismatch()
	if c.Logger != nil {
		c.Logger.Warn("engine summary disagrees with results",
			zap.String("audit_id", job.AuditID),
			zap.Any("declared", *job.Summary),
			zap.Any("derived", derived),
		)
	}
}
