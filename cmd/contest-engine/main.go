package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/audithq/contest-engine/internal/api"
	"github.com/audithq/contest-engine/internal/cache"
	"github.com/audithq/contest-engine/internal/cleanup"
	"github.com/audithq/contest-engine/internal/config"
	"github.com/audithq/contest-engine/internal/contests"
	"github.com/audithq/contest-engine/internal/rating"
	"github.com/audithq/contest-engine/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.Info("starting contest-engine",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	// Run database migrations
	slog.Info("running database migrations", "dir", cfg.Database.MigrationsDir)
	if err := storage.MigrateFromDSN(initCtx, cfg.Database.DSN, cfg.Database.MigrationsDir); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Initialize database repository
	repo, err := storage.NewPostgresRepository(initCtx, storage.PostgresConfig{
		DSN:          cfg.Database.DSN,
		MaxOpenConns: int32(cfg.Database.MaxOpenConns),
		MaxIdleConns: int32(cfg.Database.MaxIdleConns),
	})
	if err != nil {
		slog.Error("failed to create database repository", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected successfully")

	// Initialize leaderboard cache
	var leaderboardCache rating.LeaderboardCache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewLeaderboardCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		leaderboardCache = redisCache
		slog.Info("redis connected successfully")
	}

	// Seed contests from fixtures
	contestLoader := contests.NewLoader(repo)
	if _, err := contestLoader.LoadFromDir(initCtx, cfg.Contests.Dir); err != nil {
		slog.Warn("failed to load contest fixtures", "dir", cfg.Contests.Dir, "error", err)
	}

	// Initialize the scoring core
	engine := rating.NewEngine(repo)
	classifier := rating.NewClassifier(repo)
	processor := rating.NewProcessor(repo, engine, classifier, leaderboardCache)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the contest sweep worker
	cleaner := cleanup.NewCleaner(repo, cfg.Sweep.Interval)
	cleaner.Start(ctx)

	// Setup HTTP server
	server := api.NewServer(cfg.Server, cfg.Auth, repo, processor)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background workers
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := repo.Close(); err != nil {
		slog.Error("repository close error", "error", err)
	}

	slog.Info("contest-engine stopped")
}
