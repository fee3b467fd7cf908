package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"route-animator/internal/anim"
	"route-animator/internal/config"
	"route-animator/internal/handler"
	"route-animator/internal/hub"
	"route-animator/internal/metrics"
	"route-animator/internal/provider"
	"route-animator/internal/publisher"
	"route-animator/internal/quota"
)

// fanout delivers animation events to every attached sink.
type fanout []anim.Notifier

func (f fanout) Frame(fr anim.Frame) {
	for _, n := range f {
		n.Frame(fr)
	}
}

func (f fanout) StateChange(c anim.StateChange) {
	for _, n := range f {
		n.StateChange(c)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting route animator",
		"http_addr", cfg.HTTPAddr,
		"frame_interval", cfg.FrameInterval,
		"nats_enabled", cfg.NATSURL != "",
		"quota_enabled", cfg.RedisAddr != "",
		"persistent_cache_enabled", cfg.DatabaseURL != "",
	)

	collector := metrics.NewCollector(cfg.FrameInterval)
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr, logger)
	}

	wsHub := hub.NewHub(logger)
	notifiers := fanout{wsHub}

	var pub *publisher.NATSPublisher
	if cfg.NATSURL != "" {
		pub, err = publisher.NewNATSPublisher(cfg.NATSURL, collector, logger)
		if err != nil {
			logger.Error("nats connection failed", "url", cfg.NATSURL, "error", err)
			os.Exit(1)
		}
		notifiers = append(notifiers, pub)
	}

	var limiter *quota.Limiter
	if cfg.RedisAddr != "" {
		limiter, err = quota.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.DailyStartLimit, logger)
		if err != nil {
			logger.Error("redis connection failed", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
	}

	var store provider.Store
	var pg *provider.PostgresStore
	if cfg.DatabaseURL != "" {
		pg, err = provider.OpenPostgres(cfg.DatabaseURL, cfg.CacheTTL)
		if err != nil {
			logger.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := pg.Ping(ctx); err != nil {
			cancel()
			logger.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		if err := pg.InitSchema(ctx); err != nil {
			cancel()
			logger.Error("postgres schema init failed", "error", err)
			os.Exit(1)
		}
		cancel()
		store = pg
	}

	resolver := provider.NewResolver(
		provider.NewOSRMClient(cfg.DirectionsBaseURL),
		provider.NewMemoryCache(cfg.CacheTTL),
		store,
		collector,
		logger,
	)

	// limiter.Check on a nil limiter allows every start.
	manager := anim.NewManager(cfg.FrameInterval, notifiers, limiter.Check, collector, logger)

	api := handler.NewAPI(manager, resolver, wsHub, logger)
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket streams outlive any write deadline
	}

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics shutdown error", "error", err)
		}
	}

	manager.Shutdown()
	if pub != nil {
		pub.Close()
	}
	if limiter != nil {
		if err := limiter.Close(); err != nil {
			logger.Error("redis close error", "error", err)
		}
	}
	if pg != nil {
		if err := pg.Close(); err != nil {
			logger.Error("postgres close error", "error", err)
		}
	}
	logger.Info("shutdown complete")
}
