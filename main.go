package main

import (
	"context"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"datalens/adapters/dataservice"
	"datalens/adapters/postgres"
	"datalens/app"
	"datalens/internal"
	"datalens/internal/config"
	"datalens/ports"
	"datalens/ui"
)

func main() {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	logger := internal.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	client, err := dataservice.NewClient(dataservice.Config{
		BaseURL:     cfg.Service.URL,
		Timeout:     cfg.Service.Timeout,
		MaxInFlight: cfg.Service.MaxInFlight,
	})
	if err != nil {
		log.Fatalf("Data service client error: %v", err)
	}

	actions := initActionLog(cfg, logger)

	figures := ui.NewFigureCache()
	sessions := app.NewRegistry(client, figures, actions, logger)
	go purgeLoop(sessions)

	server, err := ui.NewServer(ui.Config{
		Port:    cfg.Server.Port,
		GinMode: cfg.Server.GinMode,
	}, sessions, figures, actions, logger)
	if err != nil {
		log.Fatalf("UI server error: %v", err)
	}

	logger.Info("[Main] data service at %s", cfg.Service.URL)
	if err := server.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// initActionLog connects the optional Postgres action log. Without a
// DATABASE_URL the app runs with logging disabled.
func initActionLog(cfg *config.Config, logger *internal.Logger) ports.ActionLog {
	if cfg.Database.URL == "" {
		logger.Info("[Main] no DATABASE_URL set, action log disabled")
		return nil
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		logger.Warn("[Main] action log unavailable: %v", err)
		return nil
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	repo := postgres.NewActionLogRepository(db)
	if r, ok := repo.(*postgres.ActionLogRepository); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := r.EnsureSchema(ctx); err != nil {
			logger.Warn("[Main] action log schema setup failed: %v", err)
			return nil
		}
	}
	logger.Info("[Main] action log enabled")
	return repo
}

func purgeLoop(sessions *app.Registry) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		sessions.PurgeIdle(2 * time.Hour)
	}
}
