package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/arena/internal/adapters/http/api"
	"github.com/okian/arena/internal/adapters/http/swagger"
	"github.com/okian/arena/internal/adapters/repository"
	app "github.com/okian/arena/internal/app"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	rateLimitIdle             = 3 * time.Minute
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		_, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() { _ = logger.Sync() }()

	loggerInstance := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	metricsManager := initMetrics(cfg)

	journal, err := repository.OpenJournal(ctx, cfg.StorageDriver, cfg.StorageDSN)
	if err != nil {
		loggerInstance.Error(ctx, "failed to open storage", logger.String("driver", cfg.StorageDriver), logger.Error(err))
		return
	}

	// Create and start the service with configuration options
	svc := app.New(serviceOptions(cfg, loggerInstance, journal)...)
	if err := svc.Start(ctx); err != nil {
		loggerInstance.Error(ctx, "failed to start service", logger.Error(err))
		_ = journal.Close()
		return
	}
	defer func() {
		svc.Stop()
		if err := journal.Close(); err != nil {
			loggerInstance.Warn(context.Background(), "closing storage", logger.Error(err))
		}
	}()

	if metricsManager.Enabled() {
		go startSystemMetricsUpdater(ctx, metricsManager.RefreshInterval())
		go startServiceMetricsUpdater(ctx, svc, metricsManager.RefreshInterval())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("storage", cfg.StorageDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			loggerInstance.Error(ctx, "HTTP server failed", logger.Error(err))
			stop()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(shutdownCtx, "server stopped")
}

// initMetrics rebuilds the global metrics manager from configuration.
func initMetrics(cfg *config.Config) *metrics.Manager {
	return metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(time.Duration(cfg.MetricsRefreshSeconds)*time.Second),
	)
}

// serviceOptions maps configuration onto service options.
func serviceOptions(cfg *config.Config, l logger.Logger, journal repository.Journal) []app.Option {
	return []app.Option{
		app.WithLogger(l),
		app.WithJournal(journal),
		app.WithMatchBookSize(cfg.MatchBookSize),
		app.WithAllowSelfJudging(cfg.AllowSelfJudging),
		app.WithMaxScoreDifference(cfg.MaxScoreDifference),
		app.WithJWTSecret(cfg.JWTSecret),
		app.WithTokenIssuer(cfg.JWTIssuer),
		app.WithTokenTTL(time.Duration(cfg.TokenTTLMinutes) * time.Minute),
	}
}

// newMux registers the API, docs and metrics routes.
func newMux(ctx context.Context, cfg *config.Config, svc *app.Service) *http.ServeMux {
	mux := http.NewServeMux()

	swagger.Register(ctx, mux)

	var opts []api.ServerOption
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, api.WithRateLimiter(api.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, rateLimitIdle)))
	}
	api.NewServer(svc, svc, opts...).Register(ctx, mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes the tournament gauges until ctx ends
// or the service stops.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	done := svc.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			// GetStats refreshes the totals and issued-match gauges.
			_ = svc.GetStats()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)

	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		// Calculate average GC pause time
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
