package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dmsiq/internal/config"
	"dmsiq/internal/httputil"
	"dmsiq/internal/middleware"
	"dmsiq/internal/repository/postgres"
	"dmsiq/internal/service"
	"dmsiq/internal/service/filecache"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, closer := config.NewLogger(cfg)
	defer closer.Close()

	logger.Info("server starting",
		"environment", cfg.Environment,
		"table_prefix", cfg.TablePrefix,
		"dms_root", cfg.DMSRoot,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunSchema(ctx, pool, postgres.NewTableNames(cfg.TablePrefix)); err != nil {
		log.Fatalf("Failed to run schema: %v", err)
	}
	logger.Info("database connected")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	services, err := service.SetupServices(pool, cfg, registry, logger)
	if err != nil {
		log.Fatalf("Failed to setup services: %v", err)
	}

	worker, err := filecache.NewWorker(services.Files, cfg.CacheSchedule, cfg.CacheBatchSize, logger)
	if err != nil {
		log.Fatalf("Failed to create cache worker: %v", err)
	}
	if err := worker.Start(ctx); err != nil {
		log.Fatalf("Failed to start cache worker: %v", err)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			httputil.RespondError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		stats, err := services.Storage.Stats(r.Context())
		if err != nil {
			httputil.RespondError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		httputil.RespondJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"storage": stats,
		})
	})

	server := &http.Server{
		Addr:         cfg.MetricsAddr,
		Handler:      middleware.Recovery(logger)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("metrics listener starting", "addr", cfg.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics listener failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics listener shutdown", "error", err)
	}
	if err := worker.Stop(); err != nil {
		logger.Error("cache worker shutdown", "error", err)
	}
	logger.Info("server stopped")
}
