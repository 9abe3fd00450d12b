package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/vango-dev/streamres/internal/config"
	"github.com/vango-dev/streamres/internal/logging"
	"github.com/vango-dev/streamres/pkg/lifecycle"
	"github.com/vango-dev/streamres/pkg/metrics"
	"github.com/vango-dev/streamres/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		dir  string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured feeds",
		Long: `Serve the feeds declared in streamres.yaml over HTTP.

Without --config the current directory is searched; if it has no
streamres.yaml the server starts with defaults and no feeds.

Examples:
  streamres serve
  streamres serve --config ./deploy
  streamres serve --addr :9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(dir)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&dir, "config", "c", "", "Directory containing streamres.yaml")
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")

	return cmd
}

// loadConfig loads dir/streamres.yaml. An empty dir falls back to the
// working directory and then to defaults.
func loadConfig(dir string) (*config.Config, error) {
	if dir != "" {
		return config.Load(dir)
	}
	if config.Exists(".") {
		return config.Load(".")
	}
	cfg := config.New()
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

func runServe(ctx context.Context, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scope := lifecycle.FromContext(ctx)
	defer scope.Dispose()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.New(metrics.WithRegistry(registry))

	feeds, err := buildFeeds(cfg, newBackends(cfg, scope, logger, collector))
	if err != nil {
		return err
	}

	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled() {
		gatherer = registry
	}
	srv := server.New(&server.Config{
		Addr:        cfg.Server.Addr,
		MetricsPath: cfg.Server.MetricsPath,
	}, feeds,
		server.WithLogger(logger),
		server.WithScope(scope),
		server.WithMetrics(collector, gatherer),
	)

	printBanner()
	success("Serving %d feeds on %s", feeds.Len(), cfg.Server.Addr)
	for _, f := range feeds.List() {
		info("%-16s %s", f.Name(), f.Kind())
	}
	if gatherer != nil {
		info("metrics at %s", cfg.Server.MetricsPath)
	}
	if cfg.Path() == "" {
		warn("No %s found, running with defaults", config.ConfigFileName)
	}

	return srv.Run(ctx)
}
