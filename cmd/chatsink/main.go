package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatsink/internal/config"
	"chatsink/internal/constants"
	"chatsink/internal/database"
	"chatsink/internal/dedup"
	"chatsink/internal/media"
	"chatsink/internal/retry"
	"chatsink/internal/service"
	"chatsink/internal/tracing"
	"chatsink/pkg/gateway"
	"chatsink/pkg/notify"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("chatsink %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting chatsink")

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the database with exponential backoff; sqlite on network
	// storage can need a moment at startup.
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	pipeline, err := media.NewPipeline(cfg.Media, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize media pipeline: %w", err)
	}

	gate := dedup.NewMemoryGate(logger)
	go dedup.RunJanitor(ctx, gate, time.Duration(cfg.Dedup.SweepIntervalSec)*time.Second)

	var hub *notify.Hub
	var publisher notify.Publisher
	if cfg.Notify.Mode == "websocket" {
		hub = notify.NewHub(logger)
		publisher = hub
	} else {
		publisher = notify.NewLogPublisher(logger)
	}

	directory := service.NewChatDirectory(db, logger)
	tracker := service.NewStatusTracker(db, publisher, logger)
	scheduler := service.NewRetryScheduler(cfg.Retry, logger)

	engine := service.NewIngestionEngine(
		gate,
		directory,
		pipeline,
		db,
		tracker,
		publisher,
		scheduler,
		time.Duration(cfg.Dedup.TTLSec)*time.Second,
		logger,
	)

	scheduler.Start(ctx)
	defer scheduler.Stop()

	janitor := service.NewJanitor(db, cfg.RetentionDays, cfg.Server.CleanupIntervalHours, logger)
	go janitor.Start(ctx)

	var sender gateway.Sender
	if cfg.Gateway.BaseURL != "" {
		sender = gateway.NewClient(cfg.Gateway, logger)
		logger.WithField("gateway_url", cfg.Gateway.BaseURL).Info("Outbound gateway configured")
	}

	server := NewServer(cfg, engine, tracker, directory, hub, sender, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
