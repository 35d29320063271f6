package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"ledger"`
		Port int    `envconfig:"PORT" default:"8080"`
		// ProfileID is the profile the terminal UI acts as.
		ProfileID string `envconfig:"PROFILE_ID"`
	}

	DB struct {
		Host           string `envconfig:"DB_HOST" default:"localhost"`
		Port           int    `envconfig:"DB_PORT" default:"5432"`
		User           string `envconfig:"DB_USER" default:"postgres"`
		Password       string `envconfig:"DB_PASSWORD" default:""`
		Name           string `envconfig:"DB_NAME" default:"ledger"`
		MaxOpenConns   int    `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
		MigrateOnStart bool   `envconfig:"DB_MIGRATE_ON_START" default:"true"`
	}

	Server struct {
		Timeout         time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
		AllowedOrigins  []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}

	Log struct {
		Level string `envconfig:"LOG_LEVEL" default:"info"`
		// File receives the terminal UI's logs.
		File string `envconfig:"LOG_FILE" default:"ledger-tui.log"`
	}

	Auth struct {
		JWTSecret string `envconfig:"JWT_SECRET"`
	}

	RabbitMQ struct {
		// Events are only logged when URL is empty.
		URL        string `envconfig:"RABBITMQ_URL"`
		Exchange   string `envconfig:"RABBITMQ_EXCHANGE" default:"ledger.events"`
		RoutingKey string `envconfig:"RABBITMQ_ROUTING_KEY" default:"ledger.notifications"`
	}

	Events struct {
		Timeout        time.Duration `envconfig:"EVENTS_TIMEOUT" default:"5s"`
		MaxRetries     int           `envconfig:"EVENTS_MAX_RETRIES" default:"3"`
		InitialBackoff time.Duration `envconfig:"EVENTS_INITIAL_BACKOFF" default:"200ms"`
	}

	Tracing struct {
		OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
		ServiceName  string `envconfig:"OTEL_SERVICE_NAME" default:"ledger"`
	}

	Sweep struct {
		// Interval of zero runs a single sweep and exits.
		Interval    time.Duration `envconfig:"SWEEP_INTERVAL" default:"0"`
		DueSoonDays int           `envconfig:"SWEEP_DUE_SOON_DAYS" default:"3"`
		Concurrency int           `envconfig:"SWEEP_CONCURRENCY" default:"4"`
	}

	Attachments struct {
		Token string `envconfig:"ATTACHMENTS_TOKEN"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
