package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/auditengine"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/catalog"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/config"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/logging"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/metrics"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/providers/aws/common"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/session"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/transport"
	"github.com/pankaj-dahiya-devops/clouddoctor-audit/internal/version"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	engineURL  string
	token      string
	externalID string
	noColor    bool
	noProgress bool

	// awsProvider is replaced in tests.
	awsProvider common.AWSClientProvider
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(&globalOptions{awsProvider: common.NewDefaultAWSClientProvider()})
}

func newRootCmdWith(g *globalOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "cdaudit",
		Short:         "CloudDoctor audit client: submit AWS security audits and review the findings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default: ~/.config/clouddoctor/config.yaml)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: console or json")
	pf.StringVar(&g.engineURL, "engine-url", "", "Audit engine base URL (overrides config and "+config.EnvEngineURL+")")
	pf.StringVar(&g.token, "token", "", "Access token (overrides "+config.EnvToken+")")
	pf.StringVar(&g.externalID, "external-id", "", "External ID to use instead of fetching it from the identity service")
	pf.BoolVar(&g.noColor, "no-color", false, "Disable coloured output")
	pf.BoolVar(&g.noProgress, "no-progress", false, "Do not show a progress spinner while waiting")

	root.AddCommand(newChecksCmd(g))
	root.AddCommand(newAuditCmd(g))
	root.AddCommand(newHealthCmd(g))
	root.AddCommand(newRoleCmd(g))
	root.AddCommand(newDoctorCmd(g))
	root.AddCommand(newVersionCmd())
	return root
}

// loadConfig reads the config file and applies flag overrides on top of the
// file and environment values.
func (g *globalOptions) loadConfig() (*config.Config, string, error) {
	loader := config.NewFileLoader(g.configPath)
	cfg, err := loader.Load()
	if err != nil {
		return nil, loader.ConfigPath(), err
	}
	g.applyFlags(cfg)
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, loader.ConfigPath(), fmt.Errorf("invalid flags: %w", errors.Join(errs...))
	}
	return cfg, loader.ConfigPath(), nil
}

func (g *globalOptions) applyFlags(cfg *config.Config) {
	if g.engineURL != "" {
		cfg.Engine.BaseURL = g.engineURL
	}
	if g.token != "" {
		cfg.Identity.Token = g.token
	}
	if g.externalID != "" {
		cfg.Identity.ExternalID = g.externalID
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		cfg.Log.Format = g.logFormat
	}
}

// app is the wired dependency graph for one command invocation.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Recorder
	engine   *auditengine.Client
	identity *session.IdentityClient
	catalog  catalog.Catalog
	aws      common.AWSClientProvider
	colored  bool
	progress bool
}

func (g *globalOptions) newApp() (*app, error) {
	cfg, _, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	httpOpts := []transport.Option{
		transport.WithTimeout(cfg.Engine.Timeout()),
		transport.WithToken(cfg.Identity.Token),
		transport.WithLogger(logger),
		transport.WithUserAgent(version.UserAgent()),
	}
	engineHTTP, err := transport.New(cfg.Engine.BaseURL, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	identityHTTP, err := transport.New(cfg.IdentityBaseURL(), httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("identity service: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog.File)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.NewRecorder(),
		engine:   auditengine.New(engineHTTP),
		identity: session.NewIdentityClient(identityHTTP, cfg.Identity.ExternalIDPath),
		catalog:  cat,
		aws:      g.awsProvider,
		colored:  !g.noColor,
		progress: !g.noProgress,
	}, nil
}

func (a *app) session(ctx context.Context) (session.Context, error) {
	return session.Resolve(ctx, a.cfg.Identity.Token, a.cfg.Identity.ExternalID, a.identity)
}

// close flushes the logger and writes the metrics textfile when configured.
func (a *app) close(w io.Writer) {
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			fmt.Fprintf(w, "warning: %v\n", err)
		}
	}
	_ = a.logger.Sync()
}
