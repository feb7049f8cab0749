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
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackmichael/snippet-feed/internal/config"
	"github.com/blackmichael/snippet-feed/internal/domain"
	"github.com/blackmichael/snippet-feed/internal/gemini"
	"github.com/blackmichael/snippet-feed/internal/httpserver"
	"github.com/blackmichael/snippet-feed/internal/metrics"
	"github.com/blackmichael/snippet-feed/internal/notify"
	"github.com/blackmichael/snippet-feed/internal/postgres"
	"github.com/blackmichael/snippet-feed/internal/redisx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := postgres.NewRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()
	if err := repo.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	logger.Info("connected to database")

	// The stats cache is optional; without it stats are computed per request.
	var cache domain.StatsCache
	if cfg.RedisAddr != "" {
		rdb, err := redisx.Open(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, stats cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			defer rdb.Close()
			cache = redisx.NewStatsCache(rdb, redisx.DefaultStatsTTL)
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
		}
	}

	m := metrics.New()
	hub := notify.NewHub(logger, m.EventSubscribers)
	defer hub.Close()

	generator := gemini.New(gemini.Config{
		APIKey:        cfg.GeminiAPIKey,
		Model:         cfg.GeminiModel,
		RatePerMinute: cfg.GenerationRatePerMinute,
		Logger:        logger,
	})

	feedService := domain.NewFeedService(repo, repo, cache, logger)
	generationService := domain.NewGenerationService(
		repo,
		repo,
		m.InstrumentGenerator(generator),
		hub,
		cfg.PostsPerTopic,
		logger,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Background jobs share gctx; Wait below keeps the repository open until
	// an in-flight generation run has unwound.
	g, gctx := errgroup.WithContext(ctx)

	if generator.Available() {
		g.Go(func() error {
			generationService.Start(gctx, cfg.GenerationInterval)
			return nil
		})
	} else {
		logger.Warn("GEMINI_API_KEY not set, scheduled post generation disabled")
	}

	server := httpserver.NewServer(cfg, httpserver.Deps{
		Feed:       feedService,
		Generation: generationService,
		Events:     hub,
		Metrics:    m,
	}, logger)
	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	logger.Info("server started",
		"port", cfg.Port,
		"generation_interval", cfg.GenerationInterval,
		"posts_per_topic", cfg.PostsPerTopic,
	)

	select {
	case sig := <-sigCh:
		logger.Info("received signal, shutting down", "signal", sig)
	case <-gctx.Done():
		logger.Error("background job failed, shutting down")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return g.Wait()
}
