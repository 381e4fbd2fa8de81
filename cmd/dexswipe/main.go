package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/apfl99/DexSwipe-Backend/internal/config"
	"github.com/apfl99/DexSwipe-Backend/internal/pipeline"
	"github.com/apfl99/DexSwipe-Backend/internal/tracing"
	"golang.org/x/sync/errgroup"
)

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.Log.Level)}))
	slog.SetDefault(logger)

	logger.Info("starting dexswipe backend",
		"plan", cfg.Plan.Tier,
		"store_backend", cfg.Pipeline.StoreBackend,
		"redis", cfg.Redis.URL != "",
		"chains", len(cfg.Chains.Chains),
		"scheduler_enabled", cfg.Pipeline.SchedulerEnabled,
		"port", cfg.Server.Port,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("dexswipe exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("dexswipe shut down gracefully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		tctx, tcancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer tcancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close()

	a, err := buildApp(ctx, cfg, b, logger)
	if err != nil {
		return err
	}
	defer a.limiter.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	g, gCtx := errgroup.WithContext(ctx)

	scheduler := pipeline.NewScheduler(logger)
	if cfg.Pipeline.SchedulerEnabled {
		for _, name := range a.registry.Names() {
			if err := scheduler.Add(gCtx, a.schedules[name], a.registry.Get(name)); err != nil {
				return err
			}
		}
		scheduler.Start()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer scancel()
			if err := scheduler.Stop(sctx); err != nil {
				logger.Warn("scheduler did not drain before timeout", "error", err)
			}
		}()
	}

	if b.db != nil {
		startDBPoolStatsPump(gCtx, b.db.DB, dbPoolStatsInterval, logger)
	}

	g.Go(func() error {
		return serveHTTP(gCtx, cfg.Server, a.server.Handler(), logger)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg config.ServerConfig, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown error", "error", err)
		}
	}()

	logger.Info("http server started", "port", cfg.Port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
