package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatmsg/internal/api"
	"github.com/eldtechnologies/chatmsg/internal/config"
	"github.com/eldtechnologies/chatmsg/internal/pipeline"
	"github.com/eldtechnologies/chatmsg/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()

	// Initialize message store
	msgStore, err := openStore(ctx, logger, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.DatabaseDriver).Msg("database connection failed")
	}
	defer msgStore.Close()

	// Initialize Redis store
	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	p, err := pipeline.New(msgStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup failed")
	}

	// Create router
	router := api.NewRouter(logger, cfg, msgStore, redisStore, p)

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("driver", cfg.DatabaseDriver).
			Msg("starting chatmsg server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}

// openStore connects the configured message store and wraps it with latency
// metrics.
func openStore(ctx context.Context, logger zerolog.Logger, cfg *config.Config) (store.MessageStore, error) {
	var (
		s   store.MessageStore
		err error
	)

	switch cfg.DatabaseDriver {
	case config.DriverPostgres:
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Msg("migrations completed")
		s, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
	case config.DriverMySQL:
		s, err = store.NewMySQLStore(ctx, cfg.DatabaseURL)
	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store, messages are lost on restart")
		s = store.NewMemoryStore()
	default:
		s, err = store.NewSQLiteStore(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("connected to database")
	return store.Instrumented(s, cfg.DatabaseDriver), nil
}
