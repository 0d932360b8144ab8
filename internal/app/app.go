// Package app bootstraps and runs the hub: configuration, logging, the
// component graph, startup of configured upstreams, and graceful shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"mcphub/internal/aggregator"
	"mcphub/internal/catalog"
	"mcphub/internal/config"
	"mcphub/internal/router"
	"mcphub/internal/supervisor"
	"mcphub/internal/tracking"
	"mcphub/internal/upstream"
	"mcphub/pkg/logging"
)

// Options are the command-line overrides applied on top of the loaded
// configuration.
type Options struct {
	Debug bool
	Host  string
	Port  int
}

// Application owns the component graph for one hub process.
type Application struct {
	cfg        *config.Config
	supervisor *supervisor.Supervisor
	registry   *upstream.Registry
	catalog    *catalog.Catalog
	aggregator *aggregator.Server
}

// NewApplication loads configuration, initializes logging, and wires the
// components. Nothing is started yet.
func NewApplication(opts Options) (*Application, error) {
	loaded, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	cfg := &loaded

	if opts.Debug {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}

	logging.Init(logging.ParseLevel(cfg.LogLevel), os.Stdout, true)
	logging.Info("Bootstrap", "Configuration loaded: %d upstreams, listening on %s:%d",
		len(cfg.Upstreams), cfg.Host, cfg.Port)

	sup := supervisor.New()
	reg := upstream.NewRegistry(sup)
	cat := catalog.New()
	rt := router.New(cat, reg)
	tracker := tracking.NewManager()
	agg := aggregator.New(cfg, sup, reg, cat, rt, tracker)

	return &Application{
		cfg:        cfg,
		supervisor: sup,
		registry:   reg,
		catalog:    cat,
		aggregator: agg,
	}, nil
}

// Run starts the hub, brings up the configured upstreams, and blocks until
// the context is cancelled or an interrupt arrives.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.aggregator.Start(ctx); err != nil {
		return fmt.Errorf("starting aggregator: %w", err)
	}

	a.startConfiguredUpstreams(ctx)

	logging.Info("App", "Hub is up: %s", a.aggregator.Endpoint())

	<-ctx.Done()

	logging.Info("App", "Shutdown signal received")

	// The run context is already cancelled; shutdown gets its own.
	shutdownCtx := context.Background()
	return a.aggregator.Stop(shutdownCtx)
}

// startConfiguredUpstreams registers every configured upstream. A broken
// definition or unreachable upstream is logged and skipped; the others come
// up regardless. Discovery then runs once, concurrently, over everything
// that connected.
func (a *Application) startConfiguredUpstreams(ctx context.Context) {
	for _, def := range a.cfg.Upstreams {
		if _, err := a.registry.Add(ctx, def); err != nil {
			logging.Error("App", err, "Skipping upstream %s", def.Name)
		}
	}

	a.catalog.RefreshAll(ctx, a.registry, config.DefaultDiscoveryConcurrency)
}
