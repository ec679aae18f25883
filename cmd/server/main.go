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

	"securechat/internal/config"
	"securechat/internal/feed"
	"securechat/internal/httpserver"
	"securechat/internal/logging"
	"securechat/internal/security"
	"securechat/internal/store"
	"securechat/internal/ws"
)

// @title           SecureChat API
// @version         1.0
// @description     Accounts, contacts, direct and group messaging.

// @host            localhost:8000
// @BasePath        /api

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment() || cfg.Debug,
		File:        cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	if err := run(cfg, logger); err != nil {
		logger.Error().Err(err).Msg("server exited")
		logCloser.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx := context.Background()

	// Initialize database
	repos, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer repos.Close()
	logger.Info().Str("driver", cfg.DBDriver).Msg("database ready")

	// Live feed
	var broker feed.Broker
	if cfg.RedisURL != "" {
		rb, err := feed.NewRedisBroker(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		broker = rb
		logger.Info().Msg("feed: using redis broker")
	} else {
		broker = feed.NewMemoryBroker()
		logger.Info().Msg("feed: using in-process broker")
	}
	defer broker.Close()

	// Security components
	tokenSvc := security.NewTokenService(cfg.JWTSecret, cfg.AccessTokenTTL())
	passwordHasher := security.NewPasswordHasher(cfg.BcryptCost)

	addrHasher, err := security.NewAddressHasher([]byte(cfg.AddressHashKey))
	if err != nil {
		return fmt.Errorf("initialize address hasher: %w", err)
	}
	encryptor, err := security.NewEncryptor([]byte(cfg.EncryptKey), cfg.LegacyEncryptKeys)
	if err != nil {
		return fmt.Errorf("initialize encryptor: %w", err)
	}

	hub := ws.NewHub()

	// Build HTTP router
	router := httpserver.NewRouter(cfg, logger, repos, hub, broker, tokenSvc, passwordHasher, addrHasher, encryptor)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr()).Str("env", cfg.Env).Msg("starting SecureChat server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}

	logger.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
