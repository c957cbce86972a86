package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the full application configuration
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Env      string `envconfig:"APP_ENV" default:"development"`

	DB         DBConfig
	Kafka      KafkaConfig
	Settlement SettlementConfig
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"agromarket"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// KafkaConfig holds the Kafka configuration
type KafkaConfig struct {
	Brokers       []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	EventsTopic   string   `envconfig:"KAFKA_EVENTS_TOPIC" default:"agromarket.events"`
	ConsumerGroup string   `envconfig:"KAFKA_CONSUMER_GROUP" default:"agromarket-api"`
}

// SettlementConfig holds the simulated payment settlement configuration
type SettlementConfig struct {
	Delay           time.Duration `envconfig:"SETTLEMENT_DELAY" default:"5s"`
	PollInterval    time.Duration `envconfig:"SETTLEMENT_POLL_INTERVAL" default:"2s"`
	BatchSize       int           `envconfig:"SETTLEMENT_BATCH_SIZE" default:"10"`
	StuckAfter      time.Duration `envconfig:"SETTLEMENT_STUCK_AFTER" default:"10m"`
	ReconcileEvery  time.Duration `envconfig:"SETTLEMENT_RECONCILE_EVERY" default:"1m"`
	GatewayApproval float64       `envconfig:"GATEWAY_APPROVAL_RATE" default:"1.0"`
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	return &cfg, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
