package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vulnverified/watchtower/internal/config"
	"github.com/vulnverified/watchtower/internal/engine"
	"github.com/vulnverified/watchtower/internal/inventory"
	"github.com/vulnverified/watchtower/internal/logger"
	"github.com/vulnverified/watchtower/internal/notify"
	"github.com/vulnverified/watchtower/internal/output"
	"github.com/vulnverified/watchtower/internal/recon"
)

// Set via ldflags at build time.
var version = "dev"

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	dsn        string
	driver     string
	logLevel   string
	noColor    bool
	jsonOutput bool
	verbose    bool
	silent     bool
}

// app is the wired runtime for one command invocation.
type app struct {
	cfg      *config.Config
	flags    *globalFlags
	log      logger.Logger
	db       *inventory.DB
	inv      *inventory.Inventory
	pipeline *engine.Pipeline
	progress *output.Progress
}

func main() {
	output.Version = version

	flags := &globalFlags{}
	rootCmd := &cobra.Command{
		Use:           "watchtower",
		Short:         "Continuous attack surface monitoring for bug bounty programs",
		Long:          "Tracks programs and their scopes, enumerates and resolves subdomains, probes HTTP services and open ports, and alerts on every change.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default: ./watchtower.yaml if present)")
	pf.StringVar(&flags.dsn, "db", "", "Database DSN (overrides config)")
	pf.StringVar(&flags.driver, "driver", "", "Database driver: sqlite or postgres (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVar(&flags.noColor, "no-color", false, "Disable terminal colors")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Output structured JSON to stdout")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Verbose per-program progress")
	pf.BoolVar(&flags.silent, "silent", false, "Results only, no progress")

	rootCmd.AddCommand(
		syncCmd(flags),
		stageCmd(flags, "enum", "Enumerate subdomains for every program", (*engine.Pipeline).Enumerate),
		stageCmd(flags, "resolve", "Resolve tracked subdomains into live records", (*engine.Pipeline).Resolve),
		stageCmd(flags, "http", "Probe live subdomains for HTTP services", (*engine.Pipeline).ProbeHTTP),
		stageCmd(flags, "ports", "Port-scan live subdomains", (*engine.Pipeline).ScanPorts),
		runCmd(flags),
		urlsCmd(flags),
		nucleiCmd(flags),
		programsCmd(flags),
	)

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("watchtower {{.Version}}\n")

	// Set up context with signal handling for clean Ctrl+C.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, cleaning up...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// setup loads configuration and opens the inventory. Callers must defer close.
func setup(ctx context.Context, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.driver != "" {
		cfg.Database.Driver = flags.driver
	}
	if flags.dsn != "" {
		cfg.Database.DSN = flags.dsn
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	// Respect NO_COLOR env var.
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		flags.noColor = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	db, err := inventory.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	var notifier notify.Notifier
	if wh := notify.NewWebhook(notify.WebhookConfig{
		URL:       cfg.Notify.WebhookURL,
		UserAgent: cfg.Notify.UserAgent,
		Timeout:   cfg.Notify.Timeout,
		Rate:      cfg.Notify.Rate,
		Burst:     cfg.Notify.Burst,
	}, log); wh != nil {
		notifier = wh
	}

	sources, err := buildSources(cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	inv := inventory.New(db, notifier)
	progress := output.NewProgress(os.Stderr, flags.verbose, flags.silent || flags.jsonOutput, flags.noColor)

	pipeline := engine.NewPipeline(inv, sources, log)
	pipeline.Notifier = notifier
	pipeline.Progress = progress
	pipeline.TempDir = cfg.TempDir

	return &app{
		cfg:      cfg,
		flags:    flags,
		log:      log,
		db:       db,
		inv:      inv,
		pipeline: pipeline,
		progress: progress,
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.log.Warn("closing database", logger.Error(err))
	}
	_ = a.log.Sync()
}

// buildSources wires the configured recon adapters.
func buildSources(cfg *config.Config, log logger.Logger) (engine.Sources, error) {
	runner := &recon.ExecRunner{Timeout: cfg.ToolTimeout, Log: log}

	subdomains, err := recon.Providers(cfg.Providers, recon.ProviderDeps{
		Runner:    runner,
		UserAgent: fmt.Sprintf("watchtower/%s", version),
		Log:       log,
	})
	if err != nil {
		return engine.Sources{}, err
	}

	var resolver engine.ResolutionSource
	switch cfg.Resolver.Mode {
	case "native":
		resolver = &recon.DNSResolver{
			Resolvers: cfg.Resolver.Resolvers,
			Threads:   cfg.Resolver.Threads,
			Timeout:   cfg.Resolver.Timeout,
			Log:       log,
		}
	default:
		resolver = &recon.Dnsx{
			Runner:    runner,
			Resolvers: cfg.Resolver.Resolvers,
			RateLimit: cfg.Resolver.RateLimit,
			Threads:   cfg.Resolver.Threads,
			Log:       log,
		}
	}

	return engine.Sources{
		Subdomains: subdomains,
		Resolver:   resolver,
		Prober: &recon.Httpx{
			Runner:    runner,
			Threads:   cfg.Httpx.Threads,
			RateLimit: cfg.Httpx.RateLimit,
			Timeout:   cfg.Httpx.Timeout,
			Retries:   cfg.Httpx.Retries,
			Ports:     cfg.Httpx.Ports,
			UserAgent: cfg.Httpx.UserAgent,
			Log:       log,
		},
		Ports: &recon.Naabu{
			Runner:      runner,
			Rate:        cfg.Naabu.Rate,
			Concurrency: cfg.Naabu.Concurrency,
			Ports:       cfg.Naabu.Ports,
			Log:         log,
		},
		Vulns: &recon.Nuclei{
			Runner:    runner,
			Templates: cfg.Nuclei.Templates,
			Log:       log,
		},
		Archive: &recon.Waybackurls{
			Runner:  runner,
			Timeout: cfg.Wayback.Timeout,
		},
	}, nil
}
