package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr     string
	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBMetricsEnabled  bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RateLimit RateLimitConfig

	NATSURL        string
	NATSEnabled    bool
	NATSQueueGroup string

	SchedulerEnabled         bool
	SchedulerIntervalSeconds int
	SchedulerBatchSize       int
}

// RateLimitConfig bounds how fast one user may request priced views.
type RateLimitConfig struct {
	Enabled    bool
	QuoteRate  float64
	QuoteBurst int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:                  getenv("APP_SERVICE", "catalyser"),
		AppVersion:               getenv("APP_VERSION", "0.1.0"),
		Environment:              getenv("ENVIRONMENT", "development"),
		HTTPAddr:                 getenv("HTTP_ADDR", ":8080"),
		OTLPEndpoint:             getenv("OTLP_ENDPOINT", "localhost:4317"),
		DBType:                   getenv("DATABASE_TYPE", "postgres"),
		DBHost:                   getenv("DATABASE_HOST", "localhost"),
		DBPort:                   getenv("DATABASE_PORT", "5432"),
		DBName:                   getenv("DATABASE_NAME", "catalyser"),
		DBUser:                   getenv("DATABASE_USER", "postgres"),
		DBPassword:               getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:                getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:            getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:            getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime:        getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime:        getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBMetricsEnabled:         getenvBool("DATABASE_METRICS_ENABLED", true),
		RedisAddr:                strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getenvInt("REDIS_DB", 0),
		NATSURL:                  strings.TrimSpace(getenv("NATS_URL", "nats://localhost:4222")),
		NATSEnabled:              getenvBool("NATS_ENABLED", true),
		NATSQueueGroup:           getenv("NATS_QUEUE_GROUP", "catalyser-assistant"),
		SchedulerEnabled:         getenvBool("SCHEDULER_ENABLED", true),
		SchedulerIntervalSeconds: getenvInt("SCHEDULER_INTERVAL_SECONDS", 300),
		SchedulerBatchSize:       getenvInt("SCHEDULER_BATCH_SIZE", 100),
		RateLimit: RateLimitConfig{
			Enabled:    getenvBool("RATE_LIMIT_ENABLED", false),
			QuoteRate:  getenvFloat("RATE_LIMIT_QUOTE_RATE", 2),
			QuoteBurst: getenvInt("RATE_LIMIT_QUOTE_BURST", 10),
		},
	}

	return cfg
}

// IsProduction reports whether the service runs in the production environment.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
