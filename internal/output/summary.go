package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/catalog"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// RenderSummary writes the job header and outcome counts.
func RenderSummary(w io.Writer, view *models.AuditView, colored bool) {
	status := string(view.Status)
	if c, ok := jobColors[view.Status]; ok && colored {
		status = c.Sprint(status)
	}

	fmt.Fprintf(w, "Audit:    %s\n", view.AuditID)
	fmt.Fprintf(w, "Account:  %s\n", view.AccountID)
	fmt.Fprintf(w, "Status:   %s\n", status)
	if !view.StartedAt.IsZero() {
		fmt.Fprintf(w, "Started:  %s\n", view.StartedAt.Format(time.RFC3339))
	}
	if view.CompletedAt != nil && !view.CompletedAt.IsZero() {
		fmt.Fprintf(w, "Finished: %s (%s)\n",
			view.CompletedAt.Format(time.RFC3339),
			view.CompletedAt.Sub(view.StartedAt.Time).Round(time.Second))
	}
	if view.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", view.Error)
	}

	s := view.Summary
	fmt.Fprintf(w, "Checks:   %d total, %s %d, %s %d, %s %d, %s %d\n",
		s.Total,
		ColorStatus(models.CheckPass, colored), s.Pass,
		ColorStatus(models.CheckFail, colored), s.Fail,
		ColorStatus(models.CheckWarn, colored), s.Warn,
		ColorStatus(models.CheckError, colored), s.Error,
	)
	if view.Integrity != nil {
		d := view.Integrity.Derived
		fmt.Fprintf(w, "Warning:  engine summary disagrees with results (results give %d total, %d pass, %d fail, %d warn, %d error)\n",
			d.Total, d.Pass, d.Fail, d.Warn, d.Error)
	}
}

// RenderJSON writes view as indented JSON.
func RenderJSON(w io.Writer, view *models.AuditView) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("encode audit view: %w", err)
	}
	return nil
}

// RenderChecks lists catalog entries grouped by category, categories sorted,
// entries in catalog order within each group.
func RenderChecks(w io.Writer, entries []models.CheckCatalogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No checks.")
		return
	}
	for i, category := range catalog.CategoriesOf(entries) {
		if i > 0 {
			fmt.Fprintln(w)
		}
		group := catalog.ByCategory(entries, category)
		fmt.Fprintf(w, "%s (%d)\n", category, len(group))
		for _, e := range group {
			fmt.Fprintf(w, "  %-38s  %s\n", e.ID, e.DisplayName)
		}
	}
}
