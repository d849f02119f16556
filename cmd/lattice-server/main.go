// lattice-server is the Lattice key-value server: a single-threaded
// poll-based engine serving the framed binary protocol over TCP.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/latticekv/lattice/internal/engine"
	"github.com/latticekv/lattice/internal/infra/buildinfo"
	"github.com/latticekv/lattice/internal/infra/confloader"
	"github.com/latticekv/lattice/internal/infra/shutdown"
	"github.com/latticekv/lattice/internal/server/config"
	"github.com/latticekv/lattice/internal/telemetry/logger"
	"github.com/latticekv/lattice/internal/telemetry/metric"
)

func main() {
	app := &cli.App{
		Name:    "lattice-server",
		Usage:   "Lattice in-memory key-value server",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				EnvVars: []string{"LATTICE_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override the listen address",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Override the log level (debug, info, warn, error)",
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	log.Info("starting lattice-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"addr", cfg.Server.Addr)

	var metrics *metric.Metrics
	var metricsSrv *http.Server
	if cfg.Telemetry.Metrics.Enabled {
		metrics = metric.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Telemetry.Metrics.Addr, Handler: mux}
		go func() {
			log.Info("metrics endpoint listening", "addr", cfg.Telemetry.Metrics.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics endpoint error", "error", err)
			}
		}()
	}

	eng := engine.New(engine.Config{
		Addr:           cfg.Server.Addr,
		AcceptRate:     cfg.Server.AcceptRate,
		IdleTimeout:    cfg.Engine.IdleTimeout,
		Workers:        cfg.Engine.Workers,
		LargeZSetLen:   cfg.Engine.LargeZSetLen,
		TTLSweepBudget: cfg.Engine.TTLSweepBudget,
		MaxResponseLen: cfg.Engine.MaxResponseLen,
	}, log, metrics)

	if err := eng.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down engine")
		return eng.Shutdown(ctx)
	})
	if metricsSrv != nil {
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics endpoint")
			return metricsSrv.Shutdown(ctx)
		})
	}

	if path := c.String("config"); path != "" {
		if err := watchConfig(path, log, shutdownHandler); err != nil {
			log.Warn("config watcher disabled", "error", err)
		}
	}

	go func() {
		if err := eng.Run(); err != nil {
			// Readiness-wait failure is fatal; bring the process down.
			log.Error("engine exited", "error", err)
			shutdownHandler.Trigger()
		}
	}()

	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig merges defaults, the optional config file, environment
// variables, and flag overrides.
func loadConfig(c *cli.Context) (*config.ServerConfig, error) {
	cfg := config.Default()

	opts := []confloader.Option{}
	if path := c.String("config"); path != "" {
		opts = append(opts, confloader.WithConfigFile(path))
	}
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}

	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := c.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// watchConfig re-applies the log level when the config file changes.
func watchConfig(path string, log logger.Logger, h *shutdown.Handler) error {
	watcher, err := confloader.NewWatcher(log)
	if err != nil {
		return err
	}
	if err := watcher.Watch(path); err != nil {
		return err
	}

	watcher.OnChange(func(string) {
		cfg := config.Default()
		if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
			log.Warn("config reload failed", "error", err)
			return
		}
		if err := cfg.Verify(); err != nil {
			log.Warn("config reload rejected", "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			log.Info("log level changed", "level", cfg.Log.Level)
			logger.SetLevel(cfg.Log.Level)
		}
	})
	watcher.StartAsync()

	h.OnShutdown(func(context.Context) error {
		return watcher.Stop()
	})
	return nil
}
