package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookkeeper-backend/application/services"
	"bookkeeper-backend/infrastructure/config"
	"bookkeeper-backend/infrastructure/events"
	"bookkeeper-backend/infrastructure/persistence"
	"bookkeeper-backend/interfaces/http/rest"
	"bookkeeper-backend/pkg/auth"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

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

	validator, err := auth.NewJWTValidator(auth.JWTConfig{
		SecretKey: cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
	})
	if err != nil {
		logger.Fatal("Failed to initialize token validator", zap.Error(err))
	}

	repos := backend.Repos
	attachmentService := services.NewAttachmentService(
		repos.Attachments,
		repos.Jobs,
		cfg.AttachmentBucket,
		cfg.AttachmentPendingTTL,
		logger,
	)
	inventoryService := services.NewInventoryService(
		repos.InventoryLocations,
		repos.InventoryTypes,
		repos.InventoryItems,
		logger,
	)
	numberingService := services.NewNumberingService(repos.Sequences, nil, logger)

	handler := rest.NewRouter(rest.Dependencies{
		Config:     cfg,
		Logger:     logger,
		Validator:  validator,
		Attachment: attachmentService,
		Inventory:  inventoryService,
		Numbering:  numberingService,
		Jobs:       repos.Jobs,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("database", string(cfg.DatabaseType)),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
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
