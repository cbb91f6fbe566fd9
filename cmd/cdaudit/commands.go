package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/catalog"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/output"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/version"
)

func newChecksCmd(g *globalOptions) *cobra.Command {
	var (
		category string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "checks",
		Short: "List the checks an audit can run, grouped by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.loadConfig()
			if err != nil {
				return err
			}
			cat, err := catalog.Load(cfg.Catalog.File)
			if err != nil {
				return err
			}

			entries := cat.ListChecks()
			if category != "" {
				entries = catalog.ByCategory(entries, category)
				if len(entries) == 0 {
					return fmt.Errorf("no checks in category %q (known: %v)", category, catalog.CategoriesOf(cat.ListChecks()))
				}
			}
			return printChecks(cmd.OutOrStdout(), entries, format)
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "Only list checks in this category")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	return cmd
}

func printChecks(w io.Writer, entries []models.CheckCatalogEntry, format string) error {
	switch format {
	case "json":
		return printJSON(w, entries)
	case "table", "":
		output.RenderChecks(w, entries)
		return nil
	}
	return fmt.Errorf("unknown format %q: want table or json", format)
}

func newHealthCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the audit engine is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.ErrOrStderr())

			status, err := a.engine.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Engine %s: %s\n", a.engine.BaseURL(), status)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.Info())
		},
	}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// viewFormat selects how a terminal audit is printed.
type viewFormat string

const (
	formatTable   viewFormat = "table"
	formatSummary viewFormat = "summary"
	formatJSON    viewFormat = "json"
)

func parseViewFormat(s string) (viewFormat, error) {
	switch f := viewFormat(s); f {
	case formatTable, formatSummary, formatJSON:
		return f, nil
	case "":
		return formatTable, nil
	}
	return "", fmt.Errorf("unknown format %q: want table, summary or json", s)
}

var errUnknownFormat = errors.New("unknown format")

// printView renders a correlated audit in the chosen format.
func printView(w io.Writer, view *models.AuditView, format viewFormat, opts output.TableOptions) error {
	switch format {
	case formatJSON:
		return output.RenderJSON(w, view)
	case formatSummary:
		output.RenderSummary(w, view, opts.Colored)
		return nil
	case formatTable:
		output.RenderSummary(w, view, opts.Colored)
		fmt.Fprintln(w)
		output.RenderTable(w, view, opts)
		return nil
	}
	return fmt.Errorf("%w %q", errUnknownFormat, format)
}
