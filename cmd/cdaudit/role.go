package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/logging"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/providers/aws/trust"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/request"
)

func newRoleCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "role",
		Short: "Inspect the trust role the audit engine assumes",
	}
	cmd.AddCommand(newRoleCheckCmd(g))
	return cmd
}

// roleCheckOptions are the inputs of cdaudit role check.
type roleCheckOptions struct {
	Profile    string
	Region     string
	RoleName   string
	AccountID  string
	ExternalID string
	Format     string
}

func newRoleCheckCmd(g *globalOptions) *cobra.Command {
	var opts roleCheckOptions

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the trust role only trusts callers presenting your external ID",
		Long: "Reads the trust role with the local AWS credentials and checks that every\n" +
			"statement allowing sts:AssumeRole carries an sts:ExternalId condition\n" +
			"matching your external ID.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := g.newApp()
			if err != nil {
				return err
			}
			defer a.close(cmd.ErrOrStderr())

			ctx := cmd.Context()
			if opts.Profile == "" {
				opts.Profile = a.cfg.AWS.Profile
			}
			if opts.Region == "" {
				opts.Region = a.cfg.AWS.Region
			}
			if opts.RoleName == "" {
				opts.RoleName = a.cfg.Audit.RoleName
			}
			if opts.RoleName == "" {
				opts.RoleName = request.DefaultRoleName
			}

			// Without an external id the check still reports whether the
			// condition exists.
			if sess, err := a.session(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: external ID unavailable, checking condition presence only: %v\n", err)
			} else {
				opts.ExternalID = sess.CurrentExternalID()
			}
			a.logger.Debug("checking trust role",
				zap.String("role", opts.RoleName),
				zap.String("profile", opts.Profile),
			)

			res, err := runRoleCheck(ctx, a.aws, cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			if !res.OK() {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Profile, "profile", "", "AWS profile with iam:GetRole in the target account")
	cmd.Flags().StringVar(&opts.Region, "region", "", "AWS region for the STS and IAM calls")
	cmd.Flags().StringVar(&opts.RoleName, "role", "", "Trust role name (default from config, then CloudDoctorAuditRole)")
	cmd.Flags().StringVar(&opts.AccountID, "account", "", "Expected AWS account ID; fails when the profile belongs to another account")
	cmd.Flags().StringVar(&opts.Format, "format", "table", `Output format: "table" or "json"`)
	return cmd
}

// roleCheckResult is the rendered outcome of a role check.
type roleCheckResult struct {
	Profile          string `json:"profile,omitempty"`
	ProfileAccountID string `json:"profile_account_id,omitempty"`
	ExternalID       string `json:"external_id,omitempty"`
	*trust.Result
}

// runRoleCheck loads the profile, evaluates the role and renders the result
// to w. The returned error covers AWS and rendering failures; policy
// problems are reported through Result.OK.
func runRoleCheck(ctx context.Context, provider common.AWSClientProvider, w io.Writer, opts roleCheckOptions) (*trust.Result, error) {
	profile, err := provider.LoadProfile(ctx, opts.Profile, opts.Region)
	if err != nil {
		return nil, fmt.Errorf("load AWS profile: %w", err)
	}

	res, err := trust.NewChecker(profile.Clients.IAM).Check(ctx, opts.RoleName, opts.ExternalID)
	if err != nil {
		return nil, err
	}
	if opts.AccountID != "" && profile.AccountID != "" && profile.AccountID != opts.AccountID {
		res.Problems = append(res.Problems, fmt.Sprintf(
			"profile %s belongs to account %s, not %s", profile.ProfileName, profile.AccountID, opts.AccountID))
	}

	out := roleCheckResult{
		Profile:          profile.ProfileName,
		ProfileAccountID: profile.AccountID,
		ExternalID:       logging.MaskSecret(opts.ExternalID),
		Result:           res,
	}
	switch opts.Format {
	case "json":
		if err := json.NewEncoder(w).Encode(out); err != nil {
			return nil, fmt.Errorf("encode role check: %w", err)
		}
	default:
		renderRoleCheck(w, out)
	}
	return res, nil
}

func renderRoleCheck(w io.Writer, r roleCheckResult) {
	fmt.Fprintf(w, "Trust role %s\n", r.RoleName)
	if r.RoleARN != "" {
		doctorPrint(w, "ARN", r.RoleARN, "")
	}
	doctorPrint(w, "Profile", r.Profile, "account "+r.ProfileAccountID)
	for _, p := range r.TrustedPrincipals {
		doctorPrint(w, "Trusted principal", p, "")
	}
	if r.RequiresExternalID {
		doctorPrint(w, "External ID condition", "OK", "")
	} else {
		doctorPrint(w, "External ID condition", "FAIL", "")
	}
	switch {
	case r.ExternalID == "":
		doctorPrint(w, "External ID match", "SKIPPED", "no external ID available")
	case r.ExternalIDMatches:
		doctorPrint(w, "External ID match", "OK", r.ExternalID)
	default:
		doctorPrint(w, "External ID match", "FAIL", r.ExternalID)
	}
	if r.OK() {
		fmt.Fprintln(w, "\nRole is ready for audits.")
		return
	}
	fmt.Fprintln(w, "\nProblems:")
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
}
