package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ndewijer/portfolio-dashboard/internal/api"
	"github.com/ndewijer/portfolio-dashboard/internal/config"
	"github.com/ndewijer/portfolio-dashboard/internal/database"
	"github.com/ndewijer/portfolio-dashboard/internal/repository"
	"github.com/ndewijer/portfolio-dashboard/internal/scheduler"
	"github.com/ndewijer/portfolio-dashboard/internal/schema"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
	"github.com/ndewijer/portfolio-dashboard/internal/upstream"
	"github.com/ndewijer/portfolio-dashboard/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootstrap := logger.New(logger.Config{Level: "info"})
		bootstrap.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	if cfg.Session.KeyGenerated {
		log.Warn().Msg("CREDENTIAL_KEY not set; generated a key, stored credentials will not survive a restart")
	}

	// Open database connection
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Database.Path).Msg("Failed to open database")
	}
	defer db.Close()

	if err := database.Migrate(context.Background(), db, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	log.Info().Str("path", cfg.Database.Path).Msg("Connected to database")

	registry, err := schema.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load table registry")
	}

	client := upstream.NewClient(cfg.Upstream.BaseURL, cfg.Upstream.Timeout, log)

	// Create repositories
	sessionRepo := repository.NewSessionRepository(db)
	tableStateRepo := repository.NewTableStateRepository(db)
	credentialRepo := repository.NewCredentialRepository(db, cfg.Session.CredentialKey)

	// Create services
	systemService := service.NewSystemService(db, version)
	sessionService := service.NewSessionService(
		sessionRepo,
		tableStateRepo,
		credentialRepo,
		registry,
		client,
		cfg.Session.DefaultCurrency,
		log,
	)
	tableService := service.NewTableService(sessionService, log)
	panelService := service.NewPanelService(sessionService)
	breakdownService := service.NewBreakdownService(sessionService)

	sched := scheduler.New(log)
	sweep := scheduler.NewSessionSweepJob(sessionService, cfg.Session.IdleTimeout, cfg.Session.Retention, log)
	if err := sched.AddJob(cfg.Session.SweepSchedule, sweep); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.Session.SweepSchedule).Msg("Failed to schedule session sweep")
	}
	sched.Start()

	// Create router
	router := api.NewRouter(systemService, sessionService, tableService, panelService, breakdownService, cfg, log)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info().
			Str("addr", cfg.Server.Addr).
			Str("version", version).
			Str("upstream", cfg.Upstream.BaseURL).
			Msg("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	sched.Stop()
	sessionService.Close()

	log.Info().Msg("Server exited")
}
