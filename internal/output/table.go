package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
)

// TableOptions controls which columns RenderTable renders and how status is coloured.
type TableOptions struct {
	// Colored wraps status labels in terminal colours. Default false (CI-safe).
	Colored bool

	// IncludeCategory adds a CATEGORY column.
	IncludeCategory bool

	// IncludeLink adds a GUIDE column with the remediation link, if any.
	IncludeLink bool

	// LinkBase prefixes guideline targets in the GUIDE column.
	// Defaults to DefaultLinkBase.
	LinkBase string

	// FindingsOnly hides results without a remediation link.
	FindingsOnly bool
}

// DefaultLinkBase is the guide route used when no absolute base is configured.
const DefaultLinkBase = "/guide"

var statusColors = map[models.CheckStatus]*color.Color{
	models.CheckFail:  color.New(color.FgRed, color.Bold),
	models.CheckWarn:  color.New(color.FgYellow),
	models.CheckPass:  color.New(color.FgGreen),
	models.CheckError: color.New(color.FgMagenta),
}

var jobColors = map[models.JobStatus]*color.Color{
	models.JobCompleted: color.New(color.FgGreen),
	models.JobFailed:    color.New(color.FgRed, color.Bold),
}

func init() {
	// Colouring is decided per call by Colored, not by terminal detection.
	for _, c := range statusColors {
		c.EnableColor()
	}
	for _, c := range jobColors {
		c.EnableColor()
	}
}

// ColorStatus wraps a status string in its colour when colored is true.
// When colored is false the string is returned unchanged (CI-safe default).
func ColorStatus(status models.CheckStatus, colored bool) string {
	s := string(status)
	if !colored {
		return s
	}
	if c, ok := statusColors[status]; ok {
		return c.Sprint(s)
	}
	return s
}

// ShortenMessage truncates msg to at most max runes, appending "..." when truncated.
// max is treated as at least 4 to guarantee space for the ellipsis.
func ShortenMessage(msg string, max int) string {
	if max < 4 {
		max = 4
	}
	runes := []rune(msg)
	if len(runes) <= max {
		return msg
	}
	return string(runes[:max-3]) + "..."
}

// GuideURL joins base and the link target. An empty base selects
// DefaultLinkBase.
func GuideURL(base string, link *models.GuidelineLink) string {
	if link == nil {
		return ""
	}
	if base == "" {
		base = DefaultLinkBase
	}
	return strings.TrimRight(base, "/") + "/" + link.Target
}

// statusCell returns the status padded to width characters.
// Colour codes wrap only the text so trailing padding stays aligned.
func statusCell(status models.CheckStatus, width int, colored bool) string {
	text := string(status)
	c, ok := statusColors[status]
	if !colored || !ok {
		return fmt.Sprintf("%-*s", width, text)
	}
	spaces := width - len(text)
	if spaces < 0 {
		spaces = 0
	}
	return c.Sprint(text) + strings.Repeat(" ", spaces)
}

// truncateField shortens s to at most max runes for ID/label columns.
func truncateField(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

// RenderTable writes the per-check results of view to w in engine order.
//
// Column order:
//
//	CHECK  RESOURCE ID  STATUS  [CATEGORY]  MESSAGE  [GUIDE]
func RenderTable(w io.Writer, view *models.AuditView, opts TableOptions) {
	results := view.Results
	if opts.FindingsOnly {
		results = view.Findings()
	}
	if len(results) == 0 {
		if view.Error != "" {
			fmt.Fprintf(w, "Audit failed: %s\n", view.Error)
			return
		}
		fmt.Fprintln(w, "No results.")
		return
	}

	const (
		wCheck    = 34
		wResource = 30
		wStatus   = 6
		wCategory = 12
		wMessage  = 55
	)

	var hb strings.Builder
	hb.WriteString(fmt.Sprintf("%-*s", wCheck, "CHECK"))
	hb.WriteString(fmt.Sprintf("  %-*s", wResource, "RESOURCE ID"))
	hb.WriteString(fmt.Sprintf("  %-*s", wStatus, "STATUS"))
	if opts.IncludeCategory {
		hb.WriteString(fmt.Sprintf("  %-*s", wCategory, "CATEGORY"))
	}
	hb.WriteString(fmt.Sprintf("  %-*s", wMessage, "MESSAGE"))
	if opts.IncludeLink {
		hb.WriteString("  GUIDE")
	}
	header := strings.TrimRight(hb.String(), " ")

	fmt.Fprintln(w, header)
	fmt.Fprintln(w, strings.Repeat("-", len(header)))

	for _, r := range results {
		var rb strings.Builder
		rb.WriteString(fmt.Sprintf("%-*s", wCheck, truncateField(r.DisplayName, wCheck)))
		rb.WriteString(fmt.Sprintf("  %-*s", wResource, truncateField(r.ResourceID, wResource)))
		rb.WriteString("  " + statusCell(r.Status, wStatus, opts.Colored))
		if opts.IncludeCategory {
			rb.WriteString(fmt.Sprintf("  %-*s", wCategory, truncateField(r.Category, wCategory)))
		}
		rb.WriteString(fmt.Sprintf("  %-*s", wMessage, ShortenMessage(r.Message, wMessage)))
		if opts.IncludeLink && r.Link != nil {
			rb.WriteString("  " + GuideURL(opts.LinkBase, r.Link))
		}
		fmt.Fprintln(w, strings.TrimRight(rb.String(), " "))
	}
}
