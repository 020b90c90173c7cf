package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/Adlikkk/gamehost-one/internal/api"
	"github.com/Adlikkk/gamehost-one/internal/backup"
	"github.com/Adlikkk/gamehost-one/internal/config"
	"github.com/Adlikkk/gamehost-one/internal/console"
	"github.com/Adlikkk/gamehost-one/internal/events"
	"github.com/Adlikkk/gamehost-one/internal/fetch"
	"github.com/Adlikkk/gamehost-one/internal/logging"
	"github.com/Adlikkk/gamehost-one/internal/process"
	"github.com/Adlikkk/gamehost-one/internal/worldio"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatalf("Failed to prepare storage directories: %v", err)
	}

	// Set up logging
	if err := setupLogging(cfg); err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	// Initialize server registry and metadata store
	registry, err := config.NewRegistry(cfg.Storage.ConfigDir)
	if err != nil {
		log.Fatalf("Failed to initialize server registry: %v", err)
	}
	meta := config.NewMetaStore(cfg.Storage.ConfigDir)

	// Initialize activity logger
	activityLogger, err := logging.NewActivityLogger(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize activity logger: %v", err)
	}
	defer activityLogger.Close()

	// Initialize event hub
	log.Println("Initializing event hub...")
	hub := events.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	notifier := events.NewPublisher(hub)

	// Initialize console buffer and process manager
	bufferLines := cfg.Console.BufferLines
	if bufferLines <= 0 {
		bufferLines = 1000
	}
	buffer := console.NewBuffer(bufferLines)
	proc := process.NewManager(notifier, buffer, cfg.Storage.LogsDir)

	// Initialize fetcher and backup service
	fetcher := fetch.NewFetcher(nil)
	stager := worldio.NewStager(filepath.Join(cfg.Storage.DataDir, "staging"))
	service := backup.NewService(cfg.Storage.BackupDir, registry, meta, proc,
		notifier, activityLogger, stager, cfg.Backup.Offsite)

	// Start backup scheduler
	scheduler := backup.NewScheduler(registry, meta, service)
	scheduler.Start(ctx)

	log.Println("All components initialized successfully")

	// Set up HTTP server
	router := api.SetupRouter(cfg, registry, meta, proc, service, fetcher,
		activityLogger, hub, buffer, notifier)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Stop any managed game server before exiting.
	if proc.IsRunning() {
		log.Println("Stopping managed server process...")
		if err := proc.Stop(); err != nil {
			log.Printf("Failed to stop server process: %v", err)
		}
	}

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func setupLogging(cfg *config.Config) error {
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) == "" {
		dataDir := cfg.Storage.DataDir
		if dataDir == "" {
			dataDir = "./data"
		}
		cfg.Logging.File = filepath.Join(dataDir, "logs", "server.log")
	}
	if cfg != nil && strings.TrimSpace(cfg.Logging.File) != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			return err
		}
	}
	_, err := logging.Init(cfg.Logging)
	return err
}
