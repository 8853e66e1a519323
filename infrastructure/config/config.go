package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DatabaseType selects the persistence backend at boot.
type DatabaseType string

const (
	DatabasePostgres DatabaseType = "postgres"
	DatabaseDynamoDB DatabaseType = "dynamodb"
	DatabaseMemory   DatabaseType = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// Persistence backend selection
	DatabaseType DatabaseType

	// PostgreSQL configuration
	PostgresDSN          string
	PostgresMaxOpenConns int
	PostgresMaxIdleConns int

	// DynamoDB configuration
	AWSRegion     string
	DynamoDBTable string

	// Attachment storage
	AttachmentBucket     string
	AttachmentPendingTTL time.Duration

	// Worker configuration
	DispatchInterval time.Duration

	// Logging
	LogLevel string

	// Authentication
	JWTSecret string
	JWTIssuer string

	// Feature flags
	EnableMetrics bool
	EnableCORS    bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress: getEnv("SERVER_ADDRESS", ":8080"),
		Environment:   getEnv("ENVIRONMENT", "development"),

		DatabaseType: DatabaseType(getEnv("DATABASE_TYPE", string(DatabasePostgres))),

		PostgresDSN:          getEnv("POSTGRES_DSN", "host=localhost port=5432 user=bookkeeper password=dev dbname=bookkeeper sslmode=disable"),
		PostgresMaxOpenConns: getEnvInt("POSTGRES_MAX_OPEN_CONNS", 25),
		PostgresMaxIdleConns: getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),

		AWSRegion:     getEnv("AWS_REGION", "eu-central-1"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "bookkeeper"),

		AttachmentBucket:     getEnv("ATTACHMENT_BUCKET", "bookkeeper-uploads"),
		AttachmentPendingTTL: getEnvDuration("ATTACHMENT_PENDING_TTL", 24*time.Hour),

		DispatchInterval: getEnvDuration("DISPATCH_INTERVAL", 30*time.Second),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "bookkeeper-backend"),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", true),
		EnableCORS:    getEnvBool("ENABLE_CORS", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is an alias for LoadConfig.
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.DatabaseType {
	case DatabasePostgres, DatabaseDynamoDB, DatabaseMemory:
	default:
		return fmt.Errorf("unknown DATABASE_TYPE %q", c.DatabaseType)
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DatabaseType == DatabaseMemory {
			return fmt.Errorf("DATABASE_TYPE memory is not allowed in production")
		}
		if c.DatabaseType == DatabaseDynamoDB && c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.DatabaseType == DatabasePostgres && c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
