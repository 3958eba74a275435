package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"mercator-hq/pulse/pkg/aggregator"
	"mercator-hq/pulse/pkg/audit"
	"mercator-hq/pulse/pkg/audit/recorder"
	"mercator-hq/pulse/pkg/audit/retention"
	"mercator-hq/pulse/pkg/audit/storage"
	"mercator-hq/pulse/pkg/cli"
	"mercator-hq/pulse/pkg/collector"
	"mercator-hq/pulse/pkg/config"
	"mercator-hq/pulse/pkg/ratelimit"
	"mercator-hq/pulse/pkg/reporter"
	"mercator-hq/pulse/pkg/security/auth"
	sectls "mercator-hq/pulse/pkg/security/tls"
	"mercator-hq/pulse/pkg/server"
	"mercator-hq/pulse/pkg/telemetry/health"
	"mercator-hq/pulse/pkg/telemetry/logging"
	"mercator-hq/pulse/pkg/telemetry/metrics"
	"mercator-hq/pulse/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the collector server",
	Long: `Start the collector with the specified configuration.

The server accepts samples on /send-metrics and exposes the aggregate on
/metrics. Self metrics are served on /metrics/self, probes on /health and
/ready.

When watch is enabled in the configuration, or on SIGHUP, the log level, the
web route allow-list and the producer tokens are reloaded from the config
file. TLS certificates are picked up when their files change.

With audit enabled, every ingestion request is recorded in a SQLite database
that "pulse audit" can read.

Examples:
  # Start with default config
  pulse run

  # Start with custom config
  pulse run --config /etc/pulse/config.yaml

  # Override listen address
  pulse run --listen 0.0.0.0:9405

  # Validate config without starting server
  pulse run --dry-run`,
	Args: cobra.NoArgs,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cfgFile)
	if err != nil {
		return err
	}

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "configuration valid")
		return nil
	}

	a, err := newApp(cfg, cmd.ErrOrStderr())
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	if err := a.run(cmd.Context()); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// loadRunConfig loads the configuration and applies the run flag overrides.
func loadRunConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		return nil, err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app wires the collector pipeline together.
type app struct {
	cfg        *config.Config
	logger     *logging.Logger
	log        *slog.Logger
	aggregator *aggregator.Aggregator
	server     *server.Server
	scheduler  *reporter.Scheduler
	tracer     *tracing.Tracer
	tokens     *auth.TokenValidator
	certs      *sectls.CertificateReloader

	auditStore audit.Storage
	auditLog   *recorder.Recorder
	pruner     *retention.Scheduler
}

func newApp(cfg *config.Config, logOutput io.Writer) (*app, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		Writer:    logOutput,
	})
	if err != nil {
		return nil, err
	}
	base := logger.Slog()

	self := metrics.NewRecorder(cfg.Collector.Namespace, nil)

	agg, err := aggregator.New(aggregator.Options{
		Collector: collector.Options{
			Namespace:     cfg.Collector.Namespace,
			ProcessMaxAge: cfg.Collector.ProcessMaxAge,
			Routes:        cfg.Collector.Routes,
			Logger:        base,
			Observer:      self.Samples,
		},
		Watermark:     cfg.Relay.QueueWatermark,
		RelayObserver: self.Relay,
		Logger:        base,
	})
	if err != nil {
		return nil, err
	}

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		_ = agg.Close()
		return nil, err
	}

	checker := health.New(0)
	checker.RegisterCheck("aggregator", agg.Check)

	a := &app{
		cfg:        cfg,
		logger:     logger,
		log:        logger.Component("run"),
		aggregator: agg,
		tracer:     tracer,
	}

	if cfg.Server.Auth.Enabled() {
		a.tokens = auth.NewTokenValidator(cfg.Server.Auth.Tokens)
	}

	var tlsConfig *tls.Config
	if cfg.Server.TLS.Enabled {
		a.certs = sectls.NewCertificateReloader(
			cfg.Server.TLS.CertFile,
			cfg.Server.TLS.KeyFile,
			cfg.Server.TLS.ReloadInterval,
			logger.Component("tls"),
		)
		if tlsConfig, err = sectls.ServerConfig(&cfg.Server.TLS, a.certs); err != nil {
			_ = agg.Close()
			return nil, err
		}
	}

	var limiter *ratelimit.Limiter
	if limits := cfg.Server.Limits; limits.Enabled() {
		limiter = ratelimit.New(ratelimit.Config{
			SamplesPerSecond: limits.SamplesPerSecond,
			Burst:            limits.Burst,
			MaxConcurrent:    limits.MaxConcurrent,
		})
	}

	var auditLog server.AuditRecorder
	if cfg.Audit.Enabled {
		store, err := storage.Open(storage.Config{
			Driver:  cfg.Audit.Driver,
			Path:    cfg.Audit.Path,
			WALMode: cfg.Audit.WALMode,
		}, logger.Component("audit"))
		if err != nil {
			_ = agg.Close()
			return nil, err
		}
		a.auditStore = store
		a.auditLog = recorder.New(store, recorder.Config{
			Buffer:       cfg.Audit.Buffer,
			WriteTimeout: cfg.Audit.WriteTimeout,
		}, base)
		a.pruner = retention.NewScheduler(retention.NewPruner(store, retention.Config{
			MaxAge:     cfg.Audit.Retention.MaxAge,
			MaxRecords: cfg.Audit.Retention.MaxRecords,
			Schedule:   cfg.Audit.Retention.Schedule,
		}, base))
		auditLog = a.auditLog
	}

	a.server = server.NewServer(&cfg.Server, server.Options{
		Pipeline:  agg,
		Health:    checker,
		BuildInfo: buildInfo(),
		Recorder:  self,
		Namespace: cfg.Collector.Namespace,
		Tracer:    tracer,
		TLSConfig: tlsConfig,
		Tokens:    a.tokens,
		Limiter:   limiter,
		Audit:     auditLog,
		Logger:    base,
	})

	if cfg.Reporter.IsEnabled() {
		a.scheduler = reporter.NewScheduler(
			reporter.NewProcessReporter(cfg.Reporter.Type),
			agg,
			cfg.Reporter.Schedule,
			base,
		)
	}

	return a, nil
}

// run serves until ctx is canceled.
func (a *app) run(ctx context.Context) error {
	defer func() {
		a.closeAudit()
		if err := a.aggregator.Close(); err != nil {
			a.log.Warn("aggregator close failed", "error", err)
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.log.Info("starting pulse",
		"version", Version,
		"config", cfgFile,
		"listen_address", a.cfg.Server.ListenAddress,
		"namespace", a.cfg.Collector.Namespace,
		"reporter", a.scheduler != nil,
		"watch", a.cfg.Watch,
		"tracing", a.tracer.Enabled(),
		"tls", a.certs != nil,
		"auth", a.tokens != nil,
		"audit", a.auditLog != nil,
	)

	if a.certs != nil {
		if err := a.certs.Start(ctx); err != nil {
			return err
		}
	}

	if a.pruner != nil {
		if err := a.pruner.Start(ctx); err != nil {
			return err
		}
		defer a.pruner.Stop()
	}

	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
		defer a.scheduler.Stop()
	}

	var wg sync.WaitGroup

	if cfgFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range cli.ReloadSignals(ctx) {
				a.log.Info("received SIGHUP")
				if err := a.reload(); err != nil {
					a.log.Error("config reload failed", "error", err)
				}
			}
		}()

		if a.cfg.Watch {
			watcher, err := config.NewFileWatcher(cfgFile, 0, a.logger.Component("config"))
			if err != nil {
				return err
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer watcher.Stop()
				if err := watcher.Watch(ctx, a.reload); err != nil {
					a.log.Error("config watcher stopped", "error", err)
				}
			}()
		}
	}

	// Start blocks until ctx is canceled and the server has drained.
	err := a.server.Start(ctx)
	cancel()
	wg.Wait()

	a.log.Info("pulse stopped")
	return err
}

// closeAudit drains queued audit records and closes the database.
func (a *app) closeAudit() {
	if a.auditLog == nil {
		return
	}
	_ = a.auditLog.Close()
	if err := a.auditStore.Close(); err != nil {
		a.log.Warn("audit storage close failed", "error", err)
	}
}

// reload applies the settings that can change without a restart: the log
// level, the web route allow-list and, when auth is on, the token set.
func (a *app) reload() error {
	next, err := loadRunConfig(cfgFile)
	if err != nil {
		return err
	}
	if err := a.logger.SetLevel(next.Telemetry.Logging.Level); err != nil {
		return err
	}
	a.aggregator.Collector().SetRoutes(next.Collector.Routes)
	if a.tokens != nil {
		if !next.Server.Auth.Enabled() {
			a.log.Warn("auth cannot be disabled without a restart; keeping current tokens")
		} else {
			a.tokens.Replace(next.Server.Auth.Tokens)
		}
	}

	a.log.Info("configuration reloaded",
		"log_level", next.Telemetry.Logging.Level,
		"routes", len(next.Collector.Routes),
	)
	return nil
}
