package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"bookkeeper-backend/application/services"
	"bookkeeper-backend/infrastructure/config"
	"bookkeeper-backend/infrastructure/events"
	"bookkeeper-backend/infrastructure/persistence"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The worker drains the deferred job queue on a fixed interval. It shares
// the persistence configuration with the API server and can run alongside
// any number of API replicas.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	publisher := events.NewLoggingPublisher(logger)

	backend, err := persistence.New(ctx, cfg, logger, publisher)
	if err != nil {
		logger.Fatal("Failed to initialize persistence", zap.Error(err))
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close persistence", zap.Error(err))
		}
	}()

	repos := backend.Repos
	attachmentService := services.NewAttachmentService(
		repos.Attachments,
		repos.Jobs,
		cfg.AttachmentBucket,
		cfg.AttachmentPendingTTL,
		logger,
	)

	dispatcher := services.NewJobDispatcher(repos.Jobs, logger)
	dispatcher.Register(services.EventTypeAttachmentCleanup, attachmentService.CleanupStalePending)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

	logger.Info("Starting worker",
		zap.Duration("interval", cfg.DispatchInterval),
		zap.String("database", string(cfg.DatabaseType)),
	)

	dispatcher.Run(ctx, cfg.DispatchInterval)

	logger.Info("Worker stopped")
}

func buildLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
