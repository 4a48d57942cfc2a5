// Package config loads runtime settings from the environment and an optional .env file.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	JWTSecret   string

	DBDriver string
	DBDSN    string

	LogLevel  string
	LogFormat string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	PriceCacheTTL time.Duration

	AMQPURL      string
	AMQPExchange string

	SchedulerEnabled bool
	BillingCron      string
	ExpiryCron       string

	InvoiceDueDays  int
	DefaultCurrency string
	NCFSeries       string
	DocumentBaseURL string
}

// Load reads configs/.env and .env when present, then the process environment.
// Variables already set in the environment win.
func Load() (*Config, error) {
	for _, f := range []string{"configs/.env", ".env"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		GinMode:          getEnv("GIN_MODE", "debug"),
		CORSOrigins:      splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DBDriver:         getEnv("DB_DRIVER", "postgres"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogFormat:        getEnv("LOG_FORMAT", "json"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		RedisDB:          getInt("REDIS_DB", 0),
		PriceCacheTTL:    getDuration("PRICE_CACHE_TTL", 5*time.Minute),
		AMQPURL:          os.Getenv("AMQP_URL"),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "billing.events"),
		SchedulerEnabled: getBool("SCHEDULER_ENABLED", true),
		BillingCron:      getEnv("BILLING_CRON", "0 2 * * *"),
		ExpiryCron:       getEnv("EXPIRY_CRON", "30 0 * * *"),
		InvoiceDueDays:   getInt("INVOICE_DUE_DAYS", 30),
		DefaultCurrency:  getEnv("DEFAULT_CURRENCY", "DOP"),
		NCFSeries:        getEnv("NCF_SERIES", "B01"),
		DocumentBaseURL:  getEnv("DOCUMENT_BASE_URL", "/files"),
	}
	cfg.DBDSN = dsnFromEnv(cfg.DBDriver)

	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return nil, errors.New("JWT_SECRET is required in release mode")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}
	if cfg.InvoiceDueDays < 0 {
		return nil, errors.New("INVOICE_DUE_DAYS must not be negative")
	}
	return cfg, nil
}

func dsnFromEnv(driver string) string {
	if dsn := os.Getenv("DB_DSN"); dsn != "" {
		return dsn
	}
	if driver == "sqlite" {
		return getEnv("DB_PATH", "billing.db")
	}
	return "host=" + getEnv("DB_HOST", "localhost") +
		" user=" + getEnv("DB_USER", "postgres") +
		" password=" + getEnv("DB_PASSWORD", "postgres") +
		" dbname=" + getEnv("DB_NAME", "billing") +
		" port=" + getEnv("DB_PORT", "5432") +
		" sslmode=" + getEnv("DB_SSLMODE", "disable") +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
