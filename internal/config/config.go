package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Kafka  KafkaConfig
	Redis  RedisConfig
	Market MarketConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// StoreConfig holds the remote store connection settings. Both fields are
// required; the service refuses to start without them.
type StoreConfig struct {
	DatabaseURL  string
	APIPublicKey string
}

// KafkaConfig holds Kafka/Redpanda configuration for the change-event feed
type KafkaConfig struct {
	Brokers       []string
	ChangesTopic  string
	ConsumerGroup string
}

// RedisConfig holds Redis configuration (sessions and market snapshot cache)
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MarketConfig holds the market data simulator settings
type MarketConfig struct {
	TickInterval time.Duration
}

// Load reads configuration from the environment. A .env file is honored when
// present. It returns an error when a required variable is missing.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8081"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Store: StoreConfig{
			DatabaseURL:  os.Getenv("DATABASE_URL"),
			APIPublicKey: os.Getenv("API_PUBLIC_KEY"),
		},
		Kafka: KafkaConfig{
			Brokers:       parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			ChangesTopic:  getEnv("KAFKA_CHANGES_TOPIC", "dashboard.changes"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "dashboard-service"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Market: MarketConfig{
			TickInterval: getEnvDuration("MARKET_TICK_INTERVAL", 2*time.Second),
		},
	}

	if cfg.Store.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.Store.APIPublicKey == "" {
		return nil, errors.New("API_PUBLIC_KEY is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}
