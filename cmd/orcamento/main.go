package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"orcamento/internal/advice"
	"orcamento/internal/backend"
	"orcamento/internal/cache"
	"orcamento/internal/cli"
	"orcamento/internal/config"
	"orcamento/internal/core"
	"orcamento/internal/entries"
	apphttp "orcamento/internal/http"
	"orcamento/internal/log"
	"orcamento/internal/middleware/ratelimit"
)

func main() {
	cli.LoadEnvFile()

	cfg, err := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Failure(context.Background(), "Server stopped with error", err)
		cancel()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).Create(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DataBackend, err)
	}
	defer func() {
		if err := res.Close(); err != nil {
			logger.Failure(context.Background(), "Backend cleanup failed", err)
		}
	}()

	// Recurring entries touch every month, so any mutation purges the
	// whole cache; 120 months is ten years of browsing.
	views := cache.NewLRUCache[core.MonthView](120, cfg.CacheTTL)
	caches := cache.NewManager(logger)
	caches.Register(views)

	store, err := entries.Open(ctx, res.Docs,
		entries.WithPublisher(res.Publisher),
		entries.WithLogger(logger),
		entries.WithViewCache(views))
	if err != nil {
		return fmt.Errorf("load budget entries: %w", err)
	}

	gen, err := advice.NewGenerator(cfg.AIProvider, advice.ClientConfig{
		APIKey:          cfg.AIAPIKey,
		BaseURL:         cfg.AIBaseURL,
		Model:           cfg.AIModel,
		Timeout:         cfg.AITimeout,
		Temperature:     advice.Float(cfg.AITemperature),
		MaxOutputTokens: cfg.AIMaxOutputTokens,
	})
	if err != nil {
		return err
	}
	if !cfg.HasAICredential() {
		logger.Warn("No AI API key configured, advice will show setup instructions", log.FieldProvider, cfg.AIProvider)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:    ":" + cfg.Port,
		Store:   store,
		Advisor: advice.NewAdvisor(gen, cfg.AIProvider, cfg.AIModel, logger),
		Logger:  logger,
		Ready:   res.Ready,
		AdviceRateLimit: ratelimit.Config{
			RequestsPerMinute: cfg.AdviceRateLimitPerMinute,
			Burst:             cfg.AdviceRateLimitBurst,
		},
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting orcamento server",
			"port", cfg.Port,
			log.FieldBackend, cfg.DataBackend,
			log.FieldProvider, cfg.AIProvider,
			"entries", len(store.List()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on :%s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		return caches.Run(gctx, time.Minute)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		logger.Info("Shutting down server", log.FieldOperation, log.OpShutdown)
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
