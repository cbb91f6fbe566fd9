package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditengine"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/catalog"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/config"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/logging"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/policy"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/session"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/transport"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/version"
)

// DoctorResult is the structured output of cdaudit doctor. It can be
// serialised to JSON via --format=json or rendered as a table (default).
type DoctorResult struct {
	Config struct {
		Path    string   `json:"path"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"config"`

	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		Error       string `json:"error,omitempty"`

		// KnownProfiles is filled only when the requested profile is missing
		// from the shared AWS files.
		KnownProfiles []string `json:"known_profiles,omitempty"`
	} `json:"aws"`

	Engine struct {
		URL       string `json:"url"`
		Reachable bool   `json:"reachable"`
		Status    string `json:"status,omitempty"`
		Error     string `json:"error,omitempty"`
	} `json:"engine"`

	Identity struct {
		Authenticated bool   `json:"authenticated"`
		ExternalID    string `json:"external_id,omitempty"`
		Error         string `json:"error,omitempty"`
	} `json:"identity"`

	Catalog struct {
		Source string   `json:"source"`
		Checks int      `json:"checks"`
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors,omitempty"`
	} `json:"catalog"`

	Policy struct {
		Path    string   `json:"path"`
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"policy"`

	OverallHealthy bool `json:"overall_healthy"`
}

func newDoctorCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			profile, _ := cmd.Flags().GetString("profile")
			result, err := runDoctor(cmd.Context(), g, cmd.OutOrStdout(), format, profile)
			if err != nil {
				return err
			}
			if !result.OverallHealthy {
				// The report already says what is wrong.
				return &exitError{code: 1}
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("profile", "", "AWS profile to use (default: config, then credential chain)")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures. Callers must inspect
// result.OverallHealthy to decide whether the environment is healthy.
func runDoctor(ctx context.Context, g *globalOptions, w io.Writer, format, profile string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, g, profile)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a
// DoctorResult. Each check runs even when an earlier one failed; a broken
// config file falls back to defaults so the remaining checks still report.
func collectDoctorResult(ctx context.Context, g *globalOptions, profile string) DoctorResult {
	var result DoctorResult

	// Config: stat → load → validate.
	loader := config.NewFileLoader(g.configPath)
	result.Config.Path = loader.ConfigPath()
	if _, err := os.Stat(loader.ConfigPath()); err == nil {
		result.Config.Present = true
	}
	cfg, err := loader.Load()
	if err != nil {
		result.Config.Errors = splitErrors(err)
		cfg = config.Default()
	}
	g.applyFlags(cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			result.Config.Errors = append(result.Config.Errors, e.Error())
		}
		cfg = config.Default()
		g.applyFlags(cfg)
	}
	result.Config.Valid = len(result.Config.Errors) == 0

	// AWS: credentials → STS account ID → region discovery.
	if profile == "" {
		profile = cfg.AWS.Profile
	}
	result.AWS.Profile = profile
	profileCfg, err := g.awsProvider.LoadProfile(ctx, profile, cfg.AWS.Region)
	if err != nil {
		result.AWS.Error = err.Error()
		if known, lerr := g.awsProvider.ListProfiles(); lerr == nil && profile != "" && !slices.Contains(known, profile) {
			result.AWS.KnownProfiles = known
		}
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = profileCfg.AccountID
		if _, err := g.awsProvider.GetActiveRegions(ctx, profileCfg); err != nil {
			result.AWS.Error = err.Error()
		} else {
			result.AWS.RegionsOK = true
		}
	}

	// Engine: /health.
	result.Engine.URL = cfg.Engine.BaseURL
	httpOpts := []transport.Option{
		transport.WithTimeout(cfg.Engine.Timeout()),
		transport.WithToken(cfg.Identity.Token),
		transport.WithUserAgent(version.UserAgent()),
	}
	if engineHTTP, err := transport.New(cfg.Engine.BaseURL, httpOpts...); err != nil {
		result.Engine.Error = err.Error()
	} else if status, err := auditengine.New(engineHTTP).Health(ctx); err != nil {
		result.Engine.Error = err.Error()
	} else {
		result.Engine.Reachable = true
		result.Engine.Status = status
	}

	// Identity: token → external id.
	if identityHTTP, err := transport.New(cfg.IdentityBaseURL(), httpOpts...); err != nil {
		result.Identity.Error = err.Error()
	} else {
		identity := session.NewIdentityClient(identityHTTP, cfg.Identity.ExternalIDPath)
		sess, err := session.Resolve(ctx, cfg.Identity.Token, cfg.Identity.ExternalID, identity)
		switch {
		case err != nil:
			result.Identity.Error = err.Error()
		case !sess.IsAuthenticated():
			result.Identity.Error = "no access token or external ID configured"
		default:
			result.Identity.Authenticated = true
			result.Identity.ExternalID = logging.MaskSecret(sess.CurrentExternalID())
		}
	}

	// Catalog: embedded or override file.
	result.Catalog.Source = cfg.Catalog.File
	if result.Catalog.Source == "" {
		result.Catalog.Source = "embedded"
	}
	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		result.Catalog.Errors = splitErrors(err)
	} else {
		result.Catalog.Valid = true
		result.Catalog.Checks = len(cat.ListChecks())
	}

	// Policy: optional cdaudit.yaml in the working directory.
	result.Policy.Path = policy.DefaultFile
	pol, err := policy.LoadOptional(policy.DefaultFile)
	switch {
	case err != nil:
		result.Policy.Present = true
		result.Policy.Errors = []string{err.Error()}
	case pol != nil:
		result.Policy.Present = true
		if cat != nil {
			for _, e := range policy.Validate(pol, cat.ListChecks()) {
				result.Policy.Errors = append(result.Policy.Errors, e.Error())
			}
		}
	}
	result.Policy.Valid = len(result.Policy.Errors) == 0

	result.OverallHealthy = result.Config.Valid &&
		result.AWS.Credentials &&
		result.AWS.RegionsOK &&
		result.Engine.Reachable &&
		result.Identity.Authenticated &&
		result.Catalog.Valid &&
		result.Policy.Valid

	return result
}

// splitErrors unpacks an errors.Join tree into one message per error.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	fmt.Fprintln(w, "\nConfig:")
	if result.Config.Present {
		doctorPrint(w, "Config file", "YES", result.Config.Path)
	} else {
		doctorPrint(w, "Config file", "Not found (defaults)", result.Config.Path)
	}
	if result.Config.Valid {
		doctorPrint(w, "Config valid", "OK", "")
	} else {
		for _, e := range result.Config.Errors {
			doctorPrint(w, "Config valid", "FAIL", e)
		}
	}

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		if len(result.AWS.KnownProfiles) > 0 {
			doctorPrint(w, "Profile", "FAIL", "not in ~/.aws; known: "+strings.Join(result.AWS.KnownProfiles, ", "))
		}
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "Regions API", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		if result.AWS.RegionsOK {
			doctorPrint(w, "Regions API", "OK", "")
		} else {
			doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
		}
	}

	fmt.Fprintf(w, "\nAudit engine (%s):\n", result.Engine.URL)
	if result.Engine.Reachable {
		doctorPrint(w, "Health", "OK", result.Engine.Status)
	} else {
		doctorPrint(w, "Health", "FAIL", result.Engine.Error)
	}

	fmt.Fprintln(w, "\nIdentity:")
	if result.Identity.Authenticated {
		doctorPrint(w, "External ID", "OK", result.Identity.ExternalID)
	} else {
		doctorPrint(w, "External ID", "FAIL", result.Identity.Error)
	}

	fmt.Fprintf(w, "\nCheck catalog (%s):\n", result.Catalog.Source)
	if result.Catalog.Valid {
		doctorPrint(w, "Catalog", "OK", strconv.Itoa(result.Catalog.Checks)+" checks")
	} else {
		for _, e := range result.Catalog.Errors {
			doctorPrint(w, "Catalog", "FAIL", e)
		}
	}

	fmt.Fprintln(w, "\nPolicy:")
	if !result.Policy.Present {
		doctorPrint(w, result.Policy.Path, "Not found (all checks enabled)", "")
	} else if result.Policy.Valid {
		doctorPrint(w, result.Policy.Path, "OK", "")
	} else {
		for _, e := range result.Policy.Errors {
			doctorPrint(w, result.Policy.Path, "FAIL", e)
		}
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
