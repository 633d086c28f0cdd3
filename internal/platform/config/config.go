package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the binaries need to wire themselves. Built from
// environment variables so main stays lean.
type Config struct {
	Addr string

	// DatabaseURL is a PostgreSQL DSN. Empty means in-memory stores
	// (dev mode, unit tests).
	DatabaseURL    string
	MigrationsPath string

	// RedisURL enables the postcode cache and rate limiting when set.
	RedisURL string

	// KafkaBrokers enables the audit event publisher when non-empty.
	KafkaBrokers []string
	AuditTopic   string

	JWTSigningKey string
	// AdminEmail/AdminPasswordHash seed the single admin login. The hash
	// is a bcrypt hash; generate with cmd/server -hash-password.
	AdminEmail        string
	AdminPasswordHash string
	SessionDuration   time.Duration

	// Email (SES) settings. Empty FromEmail disables sending.
	AWSRegion  string
	FromEmail  string
	FromName   string
	AppBaseURL string

	// PostcodeAPIBaseURL points at the external address lookup service.
	PostcodeAPIBaseURL string
	PostcodeCacheTTL   time.Duration

	// Public intake throttle, per client IP.
	PublicRateLimit  int
	PublicRateWindow time.Duration

	// Scanner settings.
	BirthdayHorizonDays int
	OverdueAfter        time.Duration
}

// FromEnv builds a Config from environment variables, loading a local
// .env file first when present.
func FromEnv() Config {
	_ = godotenv.Load()

	return Config{
		Addr:                getEnv("MINDERDESK_ADDR", ":8080"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		MigrationsPath:      getEnv("MIGRATIONS_PATH", "./migrations"),
		RedisURL:            os.Getenv("REDIS_URL"),
		KafkaBrokers:        splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
		AuditTopic:          getEnv("AUDIT_TOPIC", "minderdesk.audit"),
		JWTSigningKey:       getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminEmail:          getEnv("ADMIN_EMAIL", "admin@localhost"),
		AdminPasswordHash:   os.Getenv("ADMIN_PASSWORD_HASH"),
		SessionDuration:     getDuration("SESSION_DURATION", 12*time.Hour),
		AWSRegion:           getEnv("AWS_REGION", "eu-west-2"),
		FromEmail:           os.Getenv("SES_FROM_EMAIL"),
		FromName:            getEnv("SES_FROM_NAME", "MinderDesk"),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:8080"),
		PostcodeAPIBaseURL:  getEnv("POSTCODE_API_URL", "https://api.postcodes.io"),
		PostcodeCacheTTL:    getDuration("POSTCODE_CACHE_TTL", 24*time.Hour),
		PublicRateLimit:     getInt("PUBLIC_RATE_LIMIT", 60),
		PublicRateWindow:    getDuration("PUBLIC_RATE_WINDOW", time.Minute),
		BirthdayHorizonDays: getInt("BIRTHDAY_HORIZON_DAYS", 90),
		OverdueAfter:        getDuration("DBS_OVERDUE_AFTER", 30*24*time.Hour),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
