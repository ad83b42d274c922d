package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/exchange/reconciler/internal/client"
	"github.com/exchange/reconciler/internal/config"
	"github.com/exchange/reconciler/internal/events"
	"github.com/exchange/reconciler/internal/lock"
	"github.com/exchange/reconciler/internal/metrics"
	"github.com/exchange/reconciler/internal/service"
	"github.com/exchange/reconciler/internal/store"
	"github.com/exchange/reconciler/pkg/health"
	"github.com/exchange/reconciler/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, os.Stdout)

	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid configuration")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var redisClient *redis.Client
	if cfg.RedisEnabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.WithError(err).Error("failed to connect to Redis")
			os.Exit(1)
		}
		log.Info("connected to Redis")
	}

	orderStore := store.NewFileStore(cfg.OrdersFile, log)
	exchange := client.NewExchangeClient(cfg.APIBaseURL, cfg.APIKey, cfg.HTTPTimeout, log)
	metricsClient := metrics.New()

	reconciler := service.NewReconciler(orderStore, exchange, metricsClient, log, cfg.RepriceRate)

	var runLock *lock.RunLock
	if redisClient != nil {
		reconciler.SetPublisher(events.NewPublisher(redisClient, cfg.EventStream))
		runLock = lock.NewRunLock(redisClient, cfg.LockKey, cfg.LockTTL)
	}

	if cfg.ReconcileInterval <= 0 {
		if err := runOnce(ctx, reconciler, runLock, log); err != nil {
			os.Exit(1)
		}
		return
	}

	runDaemon(ctx, cancel, cfg, reconciler, runLock, metricsClient, log)
}

// runOnce executes a single reconciliation pass. Per-order failures are
// reported but do not fail the run; only fatal errors do.
func runOnce(ctx context.Context, reconciler *service.Reconciler, runLock *lock.RunLock, log *logger.Logger) error {
	if runLock != nil {
		if err := runLock.Acquire(ctx); err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				log.Warn("another reconciliation run is in progress, skipping")
				return nil
			}
			log.WithError(err).Error("failed to acquire run lock")
			return err
		}
		defer func() {
			if err := runLock.Release(ctx); err != nil {
				log.WithError(err).Warn("failed to release run lock")
			}
		}()
	}

	res, err := reconciler.Run(ctx)
	if err != nil {
		log.WithError(err).Error("reconciliation pass failed")
		return err
	}
	for _, orderErr := range res.Errors {
		log.WithError(orderErr).Warn("order left for next run")
	}
	return nil
}

func runDaemon(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, reconciler *service.Reconciler, runLock *lock.RunLock, metricsClient *metrics.Metrics, log *logger.Logger) {
	monitor := &health.PassMonitor{}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsClient.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		// A pass is allowed to miss one interval before the service
		// reports unhealthy.
		ok, age, lastErr := monitor.Healthy(time.Now(), 2*cfg.ReconcileInterval)
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"healthy":     ok,
			"lastPassAge": age.String(),
			"lastError":   lastErr,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}
	go func() {
		log.Infof("HTTP server listening", map[string]interface{}{"port": cfg.HTTPPort})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("HTTP server error")
			cancel()
		}
	}()

	runPass := func() {
		if err := runOnce(ctx, reconciler, runLock, log); err != nil {
			monitor.SetError(err)
			return
		}
		monitor.MarkPass()
	}

	log.Infof("reconciler started", map[string]interface{}{
		"interval":   cfg.ReconcileInterval.String(),
		"ordersFile": cfg.OrdersFile,
	})
	runPass()

	ticker := time.NewTicker(cfg.ReconcileInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-ticker.C:
			runPass()
		case <-sigCh:
			log.Info("shutting down")
			cancel()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			server.Shutdown(shutdownCtx)
			shutdownCancel()
			log.Info("shutdown complete")
			return
		case <-ctx.Done():
			server.Shutdown(context.Background())
			return
		}
	}
}
