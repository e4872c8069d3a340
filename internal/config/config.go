// Package config loads service configuration from the environment.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Marketplace configures the HTTP API service.
type Marketplace struct {
	Port         string `envconfig:"PORT" default:"8080"`
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" default:""`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	SeedPath     string `envconfig:"STORE_SEED" default:""`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	// EmbedPromoter runs the scheduled-order promoter inside the API
	// process, sharing its store. Disable when running cmd/promoter
	// separately.
	EmbedPromoter bool `envconfig:"EMBED_PROMOTER" default:"true"`
}

// Promoter configures the scheduled-order promoter worker.
type Promoter struct {
	KafkaBrokers    string `envconfig:"KAFKA_BROKERS" default:""`
	SeedPath        string `envconfig:"STORE_SEED" default:""`
	IntervalSeconds int    `envconfig:"PROMOTER_INTERVAL_SECONDS" default:"300"`
	ExpireHours     int    `envconfig:"PROMOTER_EXPIRE_HOURS" default:"24"`
}

// Archiver configures the terminal-order archive consumer.
type Archiver struct {
	KafkaBrokers string `envconfig:"KAFKA_BROKERS" required:"true"`
	GroupID      string `envconfig:"KAFKA_GROUP_ID" default:"order-archiver"`
	PostgresURL  string `envconfig:"POSTGRES_URL" required:"true"`
	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
}

// Migrate configures the archive schema migration runner.
type Migrate struct {
	PostgresURL    string `envconfig:"POSTGRES_URL" required:"true"`
	MigrationsPath string `envconfig:"MIGRATIONS_PATH" default:"file://migrations"`
}

// Load fills cfg from the environment, after best-effort loading a local
// .env file. A missing .env is not an error.
func Load(cfg any) error {
	_ = godotenv.Load()
	return envconfig.Process("", cfg)
}

// Brokers splits a comma-separated broker list; empty input yields nil.
func Brokers(list string) []string {
	if list == "" {
		return nil
	}
	parts := strings.Split(list, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}
