package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voucherwatch/internal/api"
	"voucherwatch/internal/cache"
	"voucherwatch/internal/cdc"
	"voucherwatch/internal/config"
	"voucherwatch/internal/links"
	"voucherwatch/internal/logger"
	"voucherwatch/internal/models"
	"voucherwatch/internal/observability"
	"voucherwatch/internal/ratelimit"
	"voucherwatch/internal/secure"
	"voucherwatch/internal/storage"
	"voucherwatch/internal/version"
)

var (
	configFile   = flag.String("config", "", "Path to configuration file")
	writeExample = flag.String("write-example", "", "Write an example configuration file to this path and exit")
	showVersion  = flag.Bool("version", false, "Print version information and exit")
)

func main() {
	flag.Parse()

	ver := version.GetInfo()
	if *showVersion {
		fmt.Println(ver.String())
		return
	}

	if *writeExample != "" {
		if err := config.SaveExample(*writeExample); err != nil {
			slog.Error("Failed to write example configuration", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Example configuration written to %s\n", *writeExample)
		return
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize structured logging
	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	if closer != nil {
		defer closer.Close()
	}
	slog.SetDefault(log)

	slog.Info("Starting voucherwatch",
		"environment", cfg.Environment,
		"storage", cfg.Storage.Type,
		"release", ver.IsRelease())

	// Initialize observability (OpenTelemetry)
	otelProvider, err := observability.Setup(cfg.Metrics, cfg.Observability, cfg.Environment, ver)
	if err != nil {
		slog.Error("Failed to initialize observability", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelProvider.Shutdown(shutdownCtx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}()

	// Initialize storage
	storageInstance, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer storageInstance.Close()

	// Wrap storage with instrumentation if metrics are enabled
	var activeStorage storage.Storage = storageInstance
	if cfg.Metrics.Enabled {
		instrumented, err := observability.NewInstrumentedStorage(storageInstance)
		if err != nil {
			slog.Error("Failed to create instrumented storage", "error", err)
			os.Exit(1)
		}
		activeStorage = instrumented
	}

	voucherCache, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("Failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer voucherCache.Close()

	sealer, err := secure.NewSealer(cfg.Security.EncryptionKey)
	if err != nil {
		slog.Error("Failed to initialize encryption", "error", err)
		os.Exit(1)
	}

	fetcher, err := newFetcher(cfg, ver)
	if err != nil {
		slog.Error("Failed to initialize voucher API client", "error", err)
		os.Exit(1)
	}

	linkService := links.NewService(activeStorage, fetcher, voucherCache, sealer, cfg.Cache.TTL,
		links.WithFetchTimeout(cfg.Upstream.Timeout),
	)

	handlers := api.NewHandlers(linkService,
		api.WithStorage(activeStorage),
		api.WithVersion(ver.Version),
	)

	// Setup routes with middleware
	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	// Client rate limiting only applies in production
	if cfg.IsProduction() && cfg.Security.RateLimit.Enabled {
		limiter, err := newLimiter(cfg)
		if err != nil {
			slog.Error("Failed to initialize rate limiter", "error", err)
			os.Exit(1)
		}
		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(limiter)))
		slog.Info("Rate limiting enabled",
			"capacity", cfg.Security.RateLimit.Capacity,
			"window", cfg.Security.RateLimit.Window)
	} else {
		slog.Info("Rate limiting disabled", "environment", cfg.Environment)
	}

	router := api.SetupRoutes(handlers, cfg, routeOpts...)

	// Start metrics server if enabled
	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled && cfg.Metrics.Exporter != models.MetricsExporterStdout {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, otelProvider)
		go func() {
			if err := metricsServer.Start(); err != nil && err != http.ErrServerClosed {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "addr", server.Addr)

		var err error
		if cfg.Server.TLSEnabled {
			slog.Info("Starting HTTPS server with TLS")
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			slog.Info("Starting HTTP server")
			err = server.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
}

// newFetcher builds the CDC API client, instrumented when metrics are on.
func newFetcher(cfg *models.Config, ver version.Info) (cdc.Fetcher, error) {
	upstream := cfg.Upstream
	if upstream.UserAgent == "" {
		upstream.UserAgent = ver.UserAgent()
	}

	client, err := cdc.NewClientFromConfig(upstream)
	if err != nil {
		return nil, err
	}
	if !cfg.Metrics.Enabled {
		return client, nil
	}
	return observability.NewInstrumentedFetcher(client)
}

// newLimiter builds the per-client token bucket limiter.
func newLimiter(cfg *models.Config) (ratelimit.Limiter, error) {
	rl := cfg.Security.RateLimit
	limiter, err := ratelimit.NewTokenBucketLimiter(ratelimit.Config{
		Capacity:        rl.Capacity,
		Window:          rl.Window,
		CleanupInterval: rl.CleanupInterval,
		StaleAfter:      rl.StaleAfter,
	})
	if err != nil {
		return nil, err
	}
	if !cfg.Metrics.Enabled {
		return limiter, nil
	}
	return observability.NewInstrumentedLimiter(limiter)
}
