// Package persistence selects and boots a storage backend.
package persistence

import (
	"context"
	"fmt"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/infrastructure/config"
	"bookkeeper-backend/infrastructure/persistence/dynamodb"
	"bookkeeper-backend/infrastructure/persistence/memory"
	"bookkeeper-backend/infrastructure/persistence/postgres"

	"go.uber.org/zap"
)

// Backend is a fully wired persistence layer plus its teardown.
type Backend struct {
	Repos *ports.Persistence
	Close func() error
}

// New builds the backend named by the configuration. Exactly one backend
// exists per process; both binaries call this at boot.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, publisher ports.EventPublisher) (*Backend, error) {
	switch cfg.DatabaseType {
	case config.DatabasePostgres:
		db, err := postgres.Open(ctx, postgres.PoolConfig{
			DSN:          cfg.PostgresDSN,
			MaxOpenConns: cfg.PostgresMaxOpenConns,
			MaxIdleConns: cfg.PostgresMaxIdleConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		return &Backend{
			Repos: postgres.NewPersistence(db, logger, publisher),
			Close: db.Close,
		}, nil

	case config.DatabaseDynamoDB:
		client, err := dynamodb.NewClient(ctx, cfg.AWSRegion)
		if err != nil {
			return nil, err
		}
		// Production tables are provisioned out of band.
		if !cfg.IsProduction() {
			if err := dynamodb.EnsureTable(ctx, client, cfg.DynamoDBTable, logger); err != nil {
				return nil, err
			}
		}
		return &Backend{
			Repos: dynamodb.NewPersistence(client, cfg.DynamoDBTable, logger, publisher),
			Close: func() error { return nil },
		}, nil

	case config.DatabaseMemory:
		return &Backend{
			Repos: memory.NewPersistence(publisher),
			Close: func() error { return nil },
		}, nil

	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.DatabaseType)
	}
}
