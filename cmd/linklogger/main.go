package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"linklogger/internal/config"
	"linklogger/internal/metrics"
	"linklogger/internal/monitor"
	"linklogger/internal/server"
	"linklogger/internal/storage"
)

const (
	statsFile          = "link_stats.json"
	validClicksFile    = "click_validi.csv"
	activityLogFile    = "status_log.txt"
	rawClicksFile      = "log_click.csv"
	externalStatusFile = "external_status_log.csv"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file (YAML)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	logger.Info("loaded configuration", slog.Int("links", len(cfg.Links)), slog.String("config", *configPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("error running application", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("closing server gracefully")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	mon, collector, err := build(cfg, logger)
	if err != nil {
		return err
	}
	srv := server.New(cfg.Addr(), mon, collector, time.Duration(cfg.PushSeconds)*time.Second, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("linklogger listening", slog.String("address", cfg.Addr()))
		if err := srv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", slog.String("error", err.Error()))
		}
		return nil
	})

	return g.Wait()
}

func build(cfg config.Config, logger *slog.Logger) (*monitor.Monitor, *metrics.Collector, error) {
	dataPath := func(name string) string {
		return filepath.Join(cfg.DataDirectory, name)
	}

	stats, err := storage.NewStatsStore(dataPath(statsFile), cfg.Links, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise stats: %w", err)
	}
	activity, err := storage.NewActivityLog(dataPath(activityLogFile), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialise activity log: %w", err)
	}
	rawLog, err := storage.NewCSVJournal(dataPath(rawClicksFile))
	if err != nil {
		return nil, nil, fmt.Errorf("initialise click log: %w", err)
	}
	validClicks, err := storage.NewCSVJournal(dataPath(validClicksFile))
	if err != nil {
		return nil, nil, fmt.Errorf("initialise valid clicks: %w", err)
	}
	external, err := storage.NewCSVJournal(dataPath(externalStatusFile))
	if err != nil {
		return nil, nil, fmt.Errorf("initialise external status log: %w", err)
	}

	cpaPath := cfg.CPALinksFile
	if !filepath.IsAbs(cpaPath) {
		cpaPath = dataPath(cpaPath)
	}

	collector := metrics.NewCollector()
	prober := monitor.NewProber(nil)
	mon := monitor.New(cfg.Links, monitor.Deps{
		Prober:   prober,
		Stats:    stats,
		Activity: activity,
		RawLog:   rawLog,
		External: external,
		Clicks:   monitor.NewClickRecorder(validClicks, stats, collector, logger),
		CPA:      monitor.NewCPATask(cpaPath, prober, activity, collector, logger),
		Metrics:  collector,
		Logger:   logger,
	})
	return mon, collector, nil
}
