package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Provider ProviderConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Pipeline PipelineConfig
}

// ServerConfig holds HTTP server configuration for the read API
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ProviderConfig holds market data provider configuration
type ProviderConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
	MaxRetries        int
	CacheTTL          time.Duration
}

// KafkaConfig holds Kafka configuration for run events
type KafkaConfig struct {
	Brokers []string
	Topic   string
	Enabled bool
}

// RedisConfig holds the optional provider response cache configuration
type RedisConfig struct {
	Addr    string
	Enabled bool
}

// PipelineConfig holds run-level defaults
type PipelineConfig struct {
	Symbols          []string
	Concurrency      int
	QualityThreshold float64
	RecomputeReturns bool
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "stocketl"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Provider: ProviderConfig{
			BaseURL:           getEnv("PROVIDER_BASE_URL", "https://api.marketdata.local"),
			APIKey:            getEnv("PROVIDER_API_KEY", ""),
			RequestsPerMinute: getEnvInt("PROVIDER_REQUESTS_PER_MINUTE", 60),
			Timeout:           getEnvDuration("PROVIDER_TIMEOUT", 30*time.Second),
			MaxRetries:        getEnvInt("PROVIDER_MAX_RETRIES", 3),
			CacheTTL:          getEnvDuration("PROVIDER_CACHE_TTL", 6*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_TOPIC", "etl-run-events"),
			Enabled: getEnvBool("KAFKA_ENABLED", false),
		},
		Redis: RedisConfig{
			Addr:    getEnv("REDIS_ADDR", "localhost:6379"),
			Enabled: getEnvBool("REDIS_ENABLED", false),
		},
		Pipeline: PipelineConfig{
			Symbols:          getEnvList("PIPELINE_SYMBOLS", nil),
			Concurrency:      getEnvInt("PIPELINE_CONCURRENCY", 4),
			QualityThreshold: getEnvFloat("PIPELINE_QUALITY_THRESHOLD", 0),
			RecomputeReturns: getEnvBool("PIPELINE_RECOMPUTE_RETURNS", false),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
