// Package main provides the entry point for nimbis-server, a
// Redis-wire-compatible database over sharded LSM key-value engines.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nimbis-db/nimbis/internal/command"
	"github.com/nimbis-db/nimbis/internal/infra/buildinfo"
	"github.com/nimbis-db/nimbis/internal/infra/confloader"
	"github.com/nimbis-db/nimbis/internal/infra/shutdown"
	"github.com/nimbis-db/nimbis/internal/server"
	"github.com/nimbis-db/nimbis/internal/server/config"
	"github.com/nimbis-db/nimbis/internal/storage"
	"github.com/nimbis-db/nimbis/internal/telemetry/logger"
	"github.com/nimbis-db/nimbis/internal/telemetry/metric"
)

func main() {
	app := &cli.App{
		Name:    "nimbis-server",
		Usage:   "Redis-compatible database over sharded LSM storage",
		Version: buildinfo.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to YAML config file"},
			&cli.StringFlag{Name: "host", Usage: "TCP bind address"},
			&cli.IntFlag{Name: "port", Usage: "TCP port"},
			&cli.StringFlag{Name: "data-path", Usage: "root directory for shard storage"},
			&cli.StringFlag{Name: "log-level", Usage: "log level (debug, info, warn, error)"},
			&cli.StringFlag{Name: "log-format", Value: "json", Usage: "log format (json, text)"},
			&cli.IntFlag{Name: "worker-threads", Usage: "number of worker shards (default: CPU count)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "expose prometheus metrics on this address"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cliCtx.String("log-format"),
	})
	slog.SetDefault(log)

	log.Info("starting nimbis-server",
		"version", buildinfo.Get().Version,
		"commit", buildinfo.Get().Commit,
		"data_path", cfg.DataPath,
		"workers", cfg.Workers())

	dyn := config.NewDynamic(cfg)
	if err := dyn.OnChange("log_level", logger.SetLevel); err != nil {
		return err
	}

	// One storage engine per worker shard.
	engines := make([]*storage.Engine, cfg.Workers())
	for i := range engines {
		engines[i], err = storage.Open(storage.Config{
			Path:   filepath.Join(cfg.DataPath, fmt.Sprintf("shard-%d", i)),
			Shard:  i,
			Logger: log,
		})
		if err != nil {
			closeEngines(engines[:i], log)
			return fmt.Errorf("open storage shard %d: %w", i, err)
		}
	}

	var metrics *metric.Collector
	if cfg.MetricsAddr != "" {
		metrics = metric.NewCollector()
		go func() {
			log.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metrics.Serve(cfg.MetricsAddr); err != nil {
				log.Error("metrics server failed", "error", err)
			}
		}()
		go engineMetricsLoop(metrics, engines)
	}

	srv := server.New(dyn, command.NewTable(dyn), engines, log, metrics)
	if err := srv.Start(context.Background()); err != nil {
		closeEngines(engines, log)
		return err
	}

	shutdownHandler := shutdown.NewHandler(30 * time.Second)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down storage engines")
		closeEngines(engines, log)
		return nil
	})
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down server")
		return srv.Shutdown(ctx)
	})

	// Re-apply mutable fields when the config file changes on disk.
	if path := cliCtx.String("config"); path != "" {
		watcher, err := confloader.NewWatcher(path, log)
		if err != nil {
			log.Warn("config watch unavailable", "error", err)
		} else {
			watcher.Start(func() { reloadMutableFields(path, dyn, log) })
			shutdownHandler.OnShutdown(func(ctx context.Context) error {
				watcher.Stop()
				return nil
			})
		}
	}

	return shutdownHandler.Wait()
}

// loadConfig resolves defaults < file < env < flags.
func loadConfig(cliCtx *cli.Context) (*config.ServerConfig, error) {
	loader := confloader.NewLoader(confloader.WithConfigFile(cliCtx.String("config")))
	cfg, err := loader.Load()
	if err != nil {
		return nil, err
	}

	if cliCtx.IsSet("host") {
		cfg.Host = cliCtx.String("host")
	}
	if cliCtx.IsSet("port") {
		cfg.Port = cliCtx.Int("port")
	}
	if cliCtx.IsSet("data-path") {
		cfg.DataPath = cliCtx.String("data-path")
	}
	if cliCtx.IsSet("log-level") {
		cfg.LogLevel = cliCtx.String("log-level")
	}
	if cliCtx.IsSet("worker-threads") {
		cfg.WorkerThreads = cliCtx.Int("worker-threads")
	}
	if cliCtx.IsSet("metrics-addr") {
		cfg.MetricsAddr = cliCtx.String("metrics-addr")
	}
	return cfg, nil
}

func closeEngines(engines []*storage.Engine, log *slog.Logger) {
	for _, eng := range engines {
		if eng == nil {
			continue
		}
		if err := eng.Close(); err != nil {
			log.Error("close storage engine", "shard", eng.Shard(), "error", err)
		}
	}
}

// engineMetricsLoop feeds shard storage sizes and reap counts into the
// collector.
func engineMetricsLoop(metrics *metric.Collector, engines []*storage.Engine) {
	lastReaped := make([]uint64, len(engines))
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		for i, eng := range engines {
			lsm, vlog := eng.Sizes()
			metrics.SetEngineSizes(fmt.Sprintf("%d", i), lsm, vlog)

			if total := eng.ReapedTotal(); total > lastReaped[i] {
				metrics.ReapedRecords.Add(float64(total - lastReaped[i]))
				lastReaped[i] = total
			}
		}
	}
}

// reloadMutableFields re-reads the config file and pushes changed mutable
// fields through the dynamic registry, firing their callbacks.
func reloadMutableFields(path string, dyn *config.Dynamic, log *slog.Logger) {
	cfg, err := confloader.NewLoader(confloader.WithConfigFile(path)).Load()
	if err != nil {
		log.Warn("config reload failed", "error", err)
		return
	}

	cur := dyn.Snapshot()
	for _, f := range []struct{ name, old, next string }{
		{"save", cur.Save, cfg.Save},
		{"appendonly", cur.AppendOnly, cfg.AppendOnly},
		{"log_level", cur.LogLevel, cfg.LogLevel},
	} {
		if f.old == f.next {
			continue
		}
		if err := dyn.SetField(f.name, f.next); err != nil {
			log.Warn("config reload rejected", "field", f.name, "error", err)
			continue
		}
		log.Info("config field updated", "field", f.name, "value", f.next)
	}
}
