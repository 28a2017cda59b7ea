package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"dlcoracle/internal/backend"
	"dlcoracle/internal/config"
	cronrunner "dlcoracle/internal/cron"
	"dlcoracle/internal/handler"
	"dlcoracle/internal/logger"
	"dlcoracle/internal/repository/instrumented"
)

func main() {
	cfgPath := os.Getenv("ORACLE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("ORACLE_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	raw, err := backend.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("store open failed", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := instrumented.NewMetrics(registry)
	if err != nil {
		log.Fatal("metrics registration failed", zap.Error(err))
	}
	store := instrumented.New(raw, cfg.Store.Backend, metrics, logger.Named(log, "store"))
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("store close failed", zap.Error(err))
		}
	}()

	if err := store.RefreshStats(ctx); err != nil {
		log.Warn("initial store stats failed", zap.Error(err))
	}
	startFields := []zap.Field{zap.String("backend", cfg.Store.Backend)}
	if next, ok := store.NextIndex(); ok {
		startFields = append(startFields, zap.Uint64("next_nonce_index", next))
	}
	log.Info("event store ready", startFields...)

	cronRunner := cronrunner.New(logger.Named(log, "cron"), ctx)
	if cfg.Stats.Schedule != "" {
		if _, err := cronRunner.Add("store_stats", cfg.Stats.Schedule, store.RefreshStats); err != nil {
			log.Warn("cron register store stats failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{
		Store:       store,
		Gatherer:    registry,
		PingTimeout: cfg.Store.OpTimeout,
	}
	healthHandler.Register(engine)

	srv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
	case err := <-errCh:
		log.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
