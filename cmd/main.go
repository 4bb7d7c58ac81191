package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angeloszaimis/upstream-selector/config"
	"github.com/angeloszaimis/upstream-selector/internal/engine"
	"github.com/angeloszaimis/upstream-selector/internal/handler"
	"github.com/angeloszaimis/upstream-selector/internal/healthcache"
	"github.com/angeloszaimis/upstream-selector/internal/httpserver"
	"github.com/angeloszaimis/upstream-selector/internal/metrics"
	"github.com/angeloszaimis/upstream-selector/internal/prober"
	"github.com/angeloszaimis/upstream-selector/internal/registry"
	"github.com/angeloszaimis/upstream-selector/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	reg, err := buildRegistry(cfg)
	if err != nil {
		log.Error("Failed to build upstream pool", slog.Any("err", err))
		os.Exit(1)
	}

	probeOpts, err := proberOptions(cfg)
	if err != nil {
		log.Error("Invalid probe configuration", slog.Any("err", err))
		os.Exit(1)
	}

	p := prober.New(probeOpts, log)
	defer p.Close()

	cache, err := buildCache(cfg)
	if err != nil {
		log.Error("Invalid cache configuration", slog.Any("err", err))
		os.Exit(1)
	}

	collector := metrics.NewCollector(cfg.Metrics.BufferSize, prometheus.DefaultRegisterer, log)
	collector.Start(ctx)

	engineOpts, err := engineOptions(cfg)
	if err != nil {
		log.Error("Invalid engine configuration", slog.Any("err", err))
		os.Exit(1)
	}

	eng, err := engine.New(reg, p, cache, collector, engineOpts, log)
	if err != nil {
		log.Error("Failed to build engine", slog.Any("err", err))
		os.Exit(1)
	}

	apiHandler := handler.New(log, eng)

	srv, err := httpserver.New(cfg.Server.Address, setupRouter(apiHandler, collector))
	if err != nil {
		log.Error("Failed to create server", slog.Any("err", err))
		os.Exit(1)
	}

	log.Info("Upstream selector listening",
		slog.String("address", cfg.Server.Address),
		slog.Int("upstreams", reg.Len()))

	srvErrCh := make(chan error, 1)

	go func() {
		srvErrCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Error starting server", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func buildRegistry(cfg *config.Config) (*registry.Registry, error) {
	defs := make([]registry.Definition, 0, len(cfg.Upstreams))

	for _, u := range cfg.Upstreams {
		defs = append(defs, registry.Definition{
			Name:   u.Name,
			URL:    u.URL,
			Weight: u.Weight,
		})
	}

	return registry.New(defs)
}

func proberOptions(cfg *config.Config) (prober.Options, error) {
	timeout, err := time.ParseDuration(cfg.Probe.Timeout)
	if err != nil {
		return prober.Options{}, fmt.Errorf("probe timeout: %w", err)
	}

	backoff, err := time.ParseDuration(cfg.Probe.RetryBackoff)
	if err != nil {
		return prober.Options{}, fmt.Errorf("retry backoff: %w", err)
	}

	return prober.Options{
		Timeout:    timeout,
		MaxRetries: cfg.Probe.MaxRetries,
		Backoff:    backoff,
		PoolSize:   cfg.Probe.PoolSize,
		Curve:      scoringCurve(cfg),
	}, nil
}

func scoringCurve(cfg *config.Config) prober.Curve {
	return prober.Curve{
		FastMillis: cfg.Scoring.FastThresholdMillis,
		SlowMillis: cfg.Scoring.SlowThresholdMillis,
		MidSlope:   cfg.Scoring.MidPenaltyPerMilli,
		SlowSlope:  cfg.Scoring.SlowPenaltyPerMilli,
		MaxScore:   cfg.Scoring.MaxScore,
		MinScore:   cfg.Scoring.MinScore,
	}
}

func buildCache(cfg *config.Config) (*healthcache.Cache, error) {
	ttl, err := time.ParseDuration(cfg.Cache.TTL)
	if err != nil {
		return nil, fmt.Errorf("cache ttl: %w", err)
	}

	return healthcache.New(ttl)
}

func engineOptions(cfg *config.Config) (engine.Options, error) {
	timeout, err := time.ParseDuration(cfg.Probe.Timeout)
	if err != nil {
		return engine.Options{}, fmt.Errorf("probe timeout: %w", err)
	}

	return engine.Options{
		ProbeTimeout: timeout,
		Concurrency:  cfg.Probe.Concurrency,
	}, nil
}
