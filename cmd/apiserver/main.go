// Command apiserver runs the sanctions screening API: it restores the
// repository from its snapshot (or parses the source lists), optionally
// watches the data directory for list updates, and serves the screening
// endpoints until signalled to stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkweli/amlscreen/internal/application/registry"
	"github.com/mkweli/amlscreen/internal/application/screening"
	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/mkweli/amlscreen/internal/infrastructure/watcher"
	httpiface "github.com/mkweli/amlscreen/internal/interfaces/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "config file path (default: environment only)")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:            cfg.Log.Level,
		Format:           cfg.Log.Format,
		OutputPaths:      cfg.Log.OutputPaths,
		ErrorOutputPaths: cfg.Log.ErrorOutputPaths,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := prommetrics.New()
	repo := registry.New(cfg, logger, metrics)

	// Snapshot first, full parse only when the snapshot cannot serve.
	restored, err := repo.RestoreFromDurable(ctx)
	if err != nil {
		logger.Warn("snapshot restore failed, loading from sources", logging.Err(err))
	}
	if _, err := repo.Reload(ctx); err != nil && !restored {
		return err
	}

	matcher := screening.NewMatcher(cfg.Matching, repo, logger, metrics)
	orchestrator := screening.NewOrchestrator(cfg.Screening, matcher, logger, metrics)

	handler := httpiface.NewHandler(cfg, matcher, orchestrator, repo, logger)
	router := httpiface.NewRouter(cfg, handler, metrics, logger)
	server := httpiface.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 2)

	if cfg.Watch.Enabled {
		w, err := watcher.New(cfg.Sources.DataDir, cfg.Watch.Debounce, func(ctx context.Context) error {
			_, err := repo.Reload(ctx)
			return err
		}, logger)
		if err != nil {
			return err
		}
		go func() {
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- err
			}
		}()
	}

	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return server.Stop(shutdownCtx)
}
