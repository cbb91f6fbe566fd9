// Package render provides presentation-layer helpers for cdaudit CLI output.
// It is a pure rendering package: no correlation logic and no engine calls.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/output"
)

// statusOrder fixes the order in which status groups are printed.
var statusOrder = []models.CheckStatus{models.CheckFail, models.CheckWarn, models.CheckError, models.CheckPass}

// FindResults returns the correlated results for checkID in engine order.
func FindResults(view *models.AuditView, checkID string) []models.CorrelatedResult {
	var out []models.CorrelatedResult
	for _, r := range view.Results {
		if r.CheckID == checkID {
			out = append(out, r)
		}
	}
	return out
}

// RenderCheckExplanation writes a breakdown of every result for one check:
// where its remediation lives and each evaluated resource, grouped by status.
// Details keys are printed sorted for stable output.
//
// Example output:
//
//	CHECK S3PublicAccessAndPolicyCheck
//	Name: S3 public access block and bucket policy
//	Category: s3
//	Guideline: /guide/s3/42
//
//	Results (2):
//
//	  FAIL
//	    - arn:aws:s3:::customer-exports: Bucket policy grants s3:GetObject to *.
//	        public_policy: true
func RenderCheckExplanation(w io.Writer, checkID string, results []models.CorrelatedResult, linkBase string) {
	fmt.Fprintf(w, "CHECK %s\n", checkID)
	if len(results) == 0 {
		fmt.Fprintln(w, "No results for this check in the audit.")
		return
	}

	first := results[0]
	if first.DisplayName != "" && first.DisplayName != checkID {
		fmt.Fprintf(w, "Name: %s\n", first.DisplayName)
	}
	if first.Category != "" {
		fmt.Fprintf(w, "Category: %s\n", first.Category)
	}
	fmt.Fprintf(w, "Guideline: %s\n", guidelineLine(results, linkBase))
	fmt.Fprintln(w)

	byStatus := make(map[models.CheckStatus][]models.CorrelatedResult)
	var extra []models.CheckStatus
	for _, r := range results {
		if _, seen := byStatus[r.Status]; !seen && !r.Status.Known() {
			extra = append(extra, r.Status)
		}
		byStatus[r.Status] = append(byStatus[r.Status], r)
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	fmt.Fprintf(w, "Results (%d):\n", len(results))
	for _, status := range append(append([]models.CheckStatus{}, statusOrder...), extra...) {
		group := byStatus[status]
		if len(group) == 0 {
			continue
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "  %s\n", status)
		for _, r := range group {
			line := "    - " + r.ResourceID
			if r.Message != "" {
				line += ": " + r.Message
			}
			fmt.Fprintln(w, line)
			writeDetails(w, r.Details)
		}
	}
}

func guidelineLine(results []models.CorrelatedResult, linkBase string) string {
	for _, r := range results {
		if r.Link != nil {
			return output.GuideURL(linkBase, r.Link)
		}
	}
	if results[0].GuidelineCategory == "" {
		return "none (no remediation content for this check)"
	}
	return "none (no actionable finding)"
}

func writeDetails(w io.Writer, details map[string]any) {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "        %s: %s\n", k, detailValue(details[k]))
	}
}

func detailValue(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case nil:
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSpace(string(data))
}

// WriteExplainJSON writes the explanation for checkID as indented JSON to w.
//
// When results is non-empty, the output is:
//
//	{"check_id": "...", "results": [ ...correlated results... ]}
//
// Otherwise:
//
//	{"error": "No results for check X in audit Y"}
func WriteExplainJSON(w io.Writer, auditID, checkID string, results []models.CorrelatedResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if len(results) == 0 {
		return enc.Encode(map[string]string{
			"error": fmt.Sprintf("No results for check %s in audit %s", checkID, auditID),
		})
	}
	return enc.Encode(map[string]any{
		"check_id": checkID,
		"results":  results,
	})
}
