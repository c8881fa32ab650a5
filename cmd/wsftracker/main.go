package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wsf-tracker/internal/api"
	"github.com/wsf-tracker/internal/common/config"
	"github.com/wsf-tracker/internal/common/db"
	"github.com/wsf-tracker/internal/common/logger"
	"github.com/wsf-tracker/internal/common/maintenance"
	"github.com/wsf-tracker/internal/wsf/cache"
	"github.com/wsf-tracker/internal/wsf/capacity"
	"github.com/wsf-tracker/internal/wsf/overrides"
	"github.com/wsf-tracker/internal/wsf/refresher"
	"github.com/wsf-tracker/internal/wsf/upstream"
)

func main() {
	// Load .env file if it exists; plain environment variables work too
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		panic("Failed to load .env file: " + err.Error())
	}

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := logger.DefaultLoggerConfig()
	logCfg.Level = logger.ParseLogLevel(cfg.Logging.Level)
	if cfg.Logging.FilePath != "" {
		logCfg.File = true
		logCfg.FilePath = cfg.Logging.FilePath
	}
	logCfg.DiscordURL = cfg.Logging.DiscordURL
	log := logger.NewFromConfig(logCfg)

	log.Info("WSF Tracker starting",
		"version", "1.0.0",
		"log_level", cfg.Logging.Level,
		"db_driver", cfg.Database.Driver,
		"long_interval", cfg.WSF.LongInterval,
		"short_interval", cfg.WSF.ShortInterval,
	)

	if cfg.Database.Driver == db.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0o755); err != nil {
			log.Fatal("Failed to create SQLite directory", "error", err)
		}
	}

	database, err := db.New(cfg.Database.Driver, cfg.Database.ConnectionString(), log)
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	defer database.Close()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to prepare schema", "error", err)
	}

	table, err := overrides.Default()
	if err != nil {
		log.Fatal("Failed to load terminal overrides", "error", err)
	}

	store := cache.New()
	capacityStore := capacity.NewStore(database, log)
	client := upstream.NewClient(cfg.WSF.BaseURL, cfg.WSF.APIAccessCode, cfg.WSF.RequestTimeout, log)

	ref := refresher.New(client, store, capacityStore, table, refresher.Config{
		Location:            cfg.WSF.Location(),
		ScheduleConcurrency: cfg.WSF.ScheduleConcurrency,
	}, log)
	manager := refresher.NewManager(ref, refresher.ManagerConfig{
		LongInterval:  cfg.WSF.LongInterval,
		ShortInterval: cfg.WSF.ShortInterval,
	}, log)

	cleanupCfg := maintenance.DefaultSchedulerConfig()
	cleanupCfg.CleanupInterval = cfg.Cleanup.Interval
	cleanupCfg.Retention = cfg.Cleanup.Retention
	cleanup := maintenance.NewCleanupScheduler(database, capacityStore, log, cleanupCfg)

	server := api.NewServer(store, api.Config{
		Port: cfg.HTTP.Port,
		Status: func() map[string]interface{} {
			return map[string]interface{}{
				"refresher": manager.Status(),
				"cleanup":   cleanup.GetStatus(),
			}
		},
	}, log)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := manager.Start(ctx); err != nil {
		log.Fatal("Failed to start refresh manager", "error", err)
	}
	if err := cleanup.Start(ctx); err != nil {
		log.Fatal("Failed to start cleanup scheduler", "error", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx); err != nil {
			log.Error("API server error", "error", err)
			select {
			case sigChan <- syscall.SIGTERM:
			default:
			}
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("Shutdown signal received")

	cancel()
	manager.Stop()
	cleanup.Stop()
	wg.Wait()

	log.Info("WSF Tracker stopped")
}
