package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mostafaosama999/Marketing-agent-sub004/internal/config"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/database"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/handler"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/remote"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/scheduler"
	"github.com/mostafaosama999/Marketing-agent-sub004/internal/service"
	"github.com/mostafaosama999/Marketing-agent-sub004/pkg/middleware"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	config.InitLogger(cfg)

	slog.Info("Starting Prospect Pipeline Service", "version", version)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to MongoDB
	db, err := database.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, cfg.MongoTimeout)
	if err != nil {
		slog.Error("Failed to connect to MongoDB", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := db.Disconnect(context.Background()); err != nil {
			slog.Error("Failed to disconnect from MongoDB", "error", err)
		}
	}()

	// Create indexes
	if err := database.CreateIndexes(ctx, db); err != nil {
		slog.Error("Failed to create indexes", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	companyRepo := database.NewCompanyRepository(db)
	runRepo := database.NewRunRepository(db)
	lockRepo := database.NewLockRepository(db)

	// Initialize research backend client
	backendClient := remote.NewClient(cfg.BackendBaseURL, cfg.BackendAPIKey, cfg.BackendTimeout)

	// Initialize services
	companyService := service.NewCompanyService(companyRepo)
	runService := service.NewRunService(cfg, companyRepo, runRepo, backendClient)

	// Initialize refresh scheduler
	sched := scheduler.NewScheduler(cfg, runService, lockRepo, companyRepo)
	sched.Start(ctx)

	// Initialize handlers
	companyHandler := handler.NewCompanyHandler(companyService)
	runHandler := handler.NewRunHandler(runService)
	healthHandler := handler.NewHealthHandler(db, backendClient, version)

	// Create CORS config
	corsConfig := middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: cfg.CORSAllowCredentials,
		MaxAge:           cfg.CORSMaxAge,
	}

	// Create router
	router := handler.NewRouter(
		companyHandler,
		runHandler,
		healthHandler,
		corsConfig,
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Handler(),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting HTTP server", "port", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	slog.Info("Received shutdown signal, initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop scheduler first (wait for in-flight refresh runs)
	slog.Info("Stopping refresh scheduler...")
	sched.Stop(shutdownCtx)

	// Shutdown HTTP server
	slog.Info("Shutting down HTTP server...")
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Prospect Pipeline Service stopped")
}
