package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/HolyWalley/money-sub000/internal/server/actor"
	"github.com/HolyWalley/money-sub000/internal/server/config"
	"github.com/HolyWalley/money-sub000/internal/server/handlers"
	"github.com/HolyWalley/money-sub000/internal/server/middleware"
	"github.com/HolyWalley/money-sub000/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	configPath := flag.String("config", "", "Path to config file (default config.yaml)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.Log.Level)
	logger.Info("starting server", "version", Version, "addr", cfg.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	registry := actor.NewRegistry(logger, store)

	jwtConfig := handlers.JWTConfig{
		Secret:          []byte(cfg.JWT.Secret),
		AccessTokenTTL:  cfg.JWT.AccessTokenTTL,
		RefreshTokenTTL: cfg.JWT.RefreshTokenTTL,
	}

	authHandler := handlers.NewAuthHandler(logger, store, store, jwtConfig)
	syncHandler := handlers.NewSyncHandler(logger, registry)
	backupHandler := handlers.NewBackupHandler(logger, registry)
	diagHandler := handlers.NewDiagnosticsHandler(logger, registry)
	healthHandler := handlers.NewHealthHandler(logger)

	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingWithSkip(logger, []string{"/api/v1/health"}))

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)

	// Auth endpoints с жёстким лимитом против перебора паролей
	auth := v1.PathPrefix("/auth").Subrouter()
	auth.Use(middleware.RateLimitMiddleware(cfg.RateLimit.AuthRate, cfg.RateLimit.AuthWindow, logger))
	auth.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	auth.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", authHandler.Refresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", authHandler.Logout).Methods(http.MethodPost)

	// Защищённые endpoints репликации
	protected := v1.NewRoute().Subrouter()
	protected.Use(middleware.RateLimitMiddleware(cfg.RateLimit.Rate, cfg.RateLimit.Window, logger))
	protected.Use(middleware.AuthMiddleware(logger, jwtConfig))
	protected.HandleFunc("/updates", syncHandler.HandleUpdates).Methods(http.MethodGet, http.MethodPost)
	protected.HandleFunc("/updates/cleanup", diagHandler.Cleanup).Methods(http.MethodPost)
	protected.HandleFunc("/storage", diagHandler.StorageSize).Methods(http.MethodGet)
	protected.HandleFunc("/backup/export", backupHandler.Export).Methods(http.MethodGet)
	protected.HandleFunc("/backup/import", backupHandler.Import).Methods(http.MethodPost)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		// Без общего WriteTimeout: экспорт бэкапа стримит произвольно долго
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// setupLogger настраивает структурированный JSON логгер
func setupLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func printVersion() {
	fmt.Printf("MoneySync Server\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
