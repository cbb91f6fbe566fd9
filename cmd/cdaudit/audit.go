package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/archive"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditerr"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/correlate"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/jobclient"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/models"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/output"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/policy"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/render"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/request"
)

func newAuditCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Run and inspect audits of an AWS account",
	}
	cmd.AddCommand(newAuditStartCmd(g))
	cmd.AddCommand(newAuditStatusCmd(g))
	cmd.AddCommand(newAuditExplainCmd(g))
	return cmd
}

// viewFlags are the presentation flags shared by start and status.
type viewFlags struct {
	format         string
	findingsOnly   bool
	showCategory   bool
	output         string
	archive        bool
	failOnFindings bool
	policyPath     string
}

func (f *viewFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.format, "format", "table", "Output format: table, summary or json")
	cmd.Flags().BoolVar(&f.findingsOnly, "findings-only", false, "Only show FAIL and WARN results")
	cmd.Flags().BoolVar(&f.showCategory, "show-category", false, "Add a CATEGORY column to the table")
	cmd.Flags().StringVar(&f.output, "output", "", "Also write the correlated audit as JSON to this file")
	cmd.Flags().BoolVar(&f.archive, "archive", false, "Upload the finished job to the configured S3 archive bucket")
	cmd.Flags().BoolVar(&f.failOnFindings, "fail-on-findings", false, "Exit with status 3 when any FAIL or WARN result is present")
	cmd.Flags().StringVar(&f.policyPath, "policy", policy.DefaultFile, "Project audit policy file; a missing default file is ignored")
}

// loadPolicy reads the policy file named by --policy. The default file is
// optional; an explicitly named one must exist.
func (a *app) loadPolicy(cmd *cobra.Command, path string) (*policy.Config, error) {
	var (
		pol *policy.Config
		err error
	)
	if cmd.Flags().Changed("policy") {
		pol, err = policy.Load(path)
	} else {
		pol, err = policy.LoadOptional(path)
	}
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if pol == nil {
		return nil, nil
	}
	if errs := policy.Validate(pol, a.catalog.ListChecks()); len(errs) > 0 {
		return nil, fmt.Errorf("invalid policy %s: %w", path, errors.Join(errs...))
	}
	a.logger.Debug("policy loaded", zap.String("path", path))
	return pol, nil
}

func newAuditStartCmd(g *globalOptions) *cobra.Command {
	var (
		accountID string
		roleName  string
		checks    []string
		noWait    bool
		view      viewFlags
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Submit an audit and wait for its results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseViewFormat(view.format)
			if err != nil {
				return err
			}
			a, err := g.newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.ErrOrStderr())

			pol, err := a.loadPolicy(cmd, view.policyPath)
			if err != nil {
				return err
			}
			selected, err := policy.SelectChecks(checks, a.catalog.ListChecks(), pol)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			sess, err := a.session(ctx)
			if err != nil {
				return err
			}
			role := roleName
			if role == "" {
				role = a.cfg.Audit.RoleName
			}
			req, err := request.NewBuilder(role).FromSession(sess, accountID, selected)
			if err != nil {
				return err
			}

			prog := startProgress(cmd.ErrOrStderr(), a.progress && format != formatJSON, "Submitting audit of account "+req.AccountID)
			jobs := a.jobClient(prog)

			var job *models.AuditJob
			if noWait {
				job, err = jobs.Submit(ctx, req)
			} else {
				job, err = jobs.StartAudit(ctx, req)
			}
			prog.stop()
			if err != nil {
				return explainWaitError(cmd.ErrOrStderr(), err, prog.lastAuditID())
			}

			if !job.Terminal() {
				fmt.Fprintf(cmd.OutOrStdout(), "Audit %s submitted (%s)\n", job.AuditID, job.Status)
				fmt.Fprintf(cmd.OutOrStdout(), "Follow it with: cdaudit audit status --wait %s\n", job.AuditID)
				return nil
			}
			return a.present(ctx, cmd, job, format, view, pol)
		},
	}

	cmd.Flags().StringVar(&accountID, "account", "", "AWS account ID to audit (12 digits)")
	cmd.Flags().StringVar(&roleName, "role", "", "Trust role name in the target account (default from config, then CloudDoctorAuditRole)")
	cmd.Flags().StringSliceVar(&checks, "check", nil, "Check ID to run; repeat or comma-separate (default: all checks)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Submit and print the audit ID without waiting for completion")
	view.register(cmd)
	return cmd
}

func newAuditStatusCmd(g *globalOptions) *cobra.Command {
	var (
		wait bool
		view viewFlags
	)

	cmd := &cobra.Command{
		Use:   "status AUDIT_ID",
		Short: "Show the status of an audit, or its results once finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := parseViewFormat(view.format)
			if err != nil {
				return err
			}
			a, err := g.newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.ErrOrStderr())

			pol, err := a.loadPolicy(cmd, view.policyPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			auditID := args[0]
			prog := startProgress(cmd.ErrOrStderr(), wait && a.progress && format != formatJSON, "Waiting for audit "+auditID)
			jobs := a.jobClient(prog)

			var job *models.AuditJob
			if wait {
				job, err = jobs.Await(ctx, auditID)
			} else {
				job, err = jobs.GetStatus(ctx, auditID)
			}
			prog.stop()
			if err != nil {
				return explainWaitError(cmd.ErrOrStderr(), err, auditID)
			}

			if !job.Terminal() {
				w := cmd.OutOrStdout()
				if format == formatJSON {
					return printJSON(w, job)
				}
				fmt.Fprintf(w, "Audit %s: %s\n", job.AuditID, job.Status)
				if !job.StartedAt.IsZero() {
					fmt.Fprintf(w, "Started: %s\n", job.StartedAt.UTC().Format("2006-01-02 15:04:05 MST"))
				}
				return nil
			}
			return a.present(ctx, cmd, job, format, view, pol)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the audit finishes")
	view.register(cmd)
	return cmd
}

func newAuditExplainCmd(g *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "explain AUDIT_ID CHECK_ID",
		Short: "Show every result of one check in a finished audit with its remediation link",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q: want text or json", format)
			}
			a, err := g.newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.ErrOrStderr())

			auditID, checkID := args[0], args[1]
			job, err := a.jobClient(nil).GetStatus(cmd.Context(), auditID)
			if err != nil {
				return err
			}
			if !job.Terminal() {
				return fmt.Errorf("audit %s is still %s; explain needs a finished audit", auditID, job.Status)
			}

			view := correlate.New(a.catalog, a.logger, a.metrics).Correlate(job)
			results := render.FindResults(view, checkID)
			w := cmd.OutOrStdout()
			if format == "json" {
				if err := render.WriteExplainJSON(w, auditID, checkID, results); err != nil {
					return err
				}
			} else {
				render.RenderCheckExplanation(w, checkID, results, a.cfg.Guide.LinkBase)
			}
			if len(results) == 0 {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

// jobClient builds a job client wired to the engine, config and, when
// given, a progress observer.
func (a *app) jobClient(prog *progress) *jobclient.Client {
	opts := jobclient.Options{
		PollInterval: a.cfg.Polling.Interval(),
		MaxAttempts:  a.cfg.Polling.MaxAttempts,
		Logger:       a.logger,
		Metrics:      a.metrics,
	}
	if prog != nil {
		opts.OnTransition = prog.observe
	}
	return jobclient.New(a.engine, opts)
}

// present correlates a terminal job, prints it and performs the optional
// file and S3 side outputs.
func (a *app) present(ctx context.Context, cmd *cobra.Command, job *models.AuditJob, format viewFormat, flags viewFlags, pol *policy.Config) error {
	view := correlate.New(a.catalog, a.logger, a.metrics).Correlate(job)

	opts := output.TableOptions{
		Colored:         a.colored && format != formatJSON,
		IncludeCategory: flags.showCategory,
		IncludeLink:     true,
		LinkBase:        a.cfg.Guide.LinkBase,
		FindingsOnly:    flags.findingsOnly,
	}
	if err := printView(cmd.OutOrStdout(), view, format, opts); err != nil {
		return err
	}

	if flags.output != "" {
		if err := archive.WriteJSON(flags.output, view); err != nil {
			return err
		}
	}
	if flags.archive {
		loc, err := a.archive(ctx, job)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Archived to %s\n", loc)
	}

	switch {
	case job.Status == models.JobFailed:
		return &exitError{code: exitAuditFailed}
	case flags.failOnFindings && len(view.Findings()) > 0:
		return &exitError{code: exitFindings}
	case policy.ShouldFail(view, pol):
		return &exitError{code: exitFindings}
	}
	return nil
}

func (a *app) archive(ctx context.Context, job *models.AuditJob) (string, error) {
	if a.cfg.Archive.Bucket == "" {
		return "", errors.New("--archive needs archive.bucket in the config file")
	}
	archiver, err := a.newArchiver(ctx)
	if err != nil {
		return "", err
	}
	return archiver.Archive(ctx, job)
}

func (a *app) newArchiver(ctx context.Context) (archive.Archiver, error) {
	profile, err := a.aws.LoadProfile(ctx, a.cfg.AWS.Profile, a.cfg.AWS.Region)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile for archive: %w", err)
	}
	return archive.NewS3Archiver(profile.Clients.S3, a.cfg.Archive.Bucket, a.cfg.Archive.Prefix), nil
}

// explainWaitError adds a resume hint to failures that leave the remote job
// running.
func explainWaitError(w io.Writer, err error, auditID string) error {
	if auditID == "" {
		return err
	}
	if errors.Is(err, jobclient.ErrAbandoned) || errors.Is(err, auditerr.ErrTimeout) {
		fmt.Fprintf(w, "Audit %s is still running on the engine. Resume with: cdaudit audit status --wait %s\n", auditID, auditID)
	}
	return err
}
