package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var loadEnv sync.Once

// Config returns the value of key, loading .env into the process environment
// on first use. Variables already set in the environment win over .env.
func Config(key string) string {
	loadEnv.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			slog.Info("no .env file found, reading from system environment variables")
		}
	})

	return os.Getenv(key)
}

func ConfigDefault(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func ConfigInt(key string, fallback int) int {
	v := Config(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer in environment, using default", "key", key, "value", v)
		return fallback
	}
	return n
}

func ConfigDuration(key string, fallback time.Duration) time.Duration {
	v := Config(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

type AppConfig struct {
	Port     string
	LogLevel string

	DatabaseURL      string
	LedgerIsolation  string
	LedgerMaxRetries int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers      []string
	PaymentEventTopic string

	PaymentGatewayURL     string
	PaymentGatewaySecret  string
	PaymentGatewayTimeout time.Duration

	JWTSecret string
	JWTExpiry time.Duration

	SMSAPIKey string
	SMSSender string

	VerificationCodeTTL        time.Duration
	VerificationResendCooldown time.Duration
	VerificationMaxAttempts    int
	VerificationSweepSchedule  string
}

func Load() AppConfig {
	return AppConfig{
		Port:     ConfigDefault("PORT", "8080"),
		LogLevel: ConfigDefault("LOG_LEVEL", "info"),

		DatabaseURL:      Config("DATABASE_URL"),
		LedgerIsolation:  ConfigDefault("LEDGER_ISOLATION", "read_committed"),
		LedgerMaxRetries: ConfigInt("LEDGER_MAX_RETRIES", 3),

		RedisAddr:     ConfigDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: Config("REDIS_PASSWORD"),
		RedisDB:       ConfigInt("REDIS_DB", 0),

		KafkaBrokers:      splitList(Config("KAFKA_BROKERS")),
		PaymentEventTopic: ConfigDefault("PAYMENT_EVENT_TOPIC", "payment.confirmed"),

		PaymentGatewayURL:     ConfigDefault("PAYMENT_GATEWAY_URL", "https://api.tosspayments.com"),
		PaymentGatewaySecret:  Config("PAYMENT_GATEWAY_SECRET_KEY"),
		PaymentGatewayTimeout: ConfigDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),

		JWTSecret: Config("JWT_SECRET"),
		JWTExpiry: ConfigDuration("JWT_EXPIRY", 72*time.Hour),

		SMSAPIKey: Config("SMS_API_KEY"),
		SMSSender: ConfigDefault("SMS_SENDER", "Attract"),

		VerificationCodeTTL:        ConfigDuration("VERIFICATION_CODE_TTL", 5*time.Minute),
		VerificationResendCooldown: ConfigDuration("VERIFICATION_RESEND_COOLDOWN", time.Minute),
		VerificationMaxAttempts:    ConfigInt("VERIFICATION_MAX_ATTEMPTS", 5),
		VerificationSweepSchedule:  ConfigDefault("VERIFICATION_SWEEP_SCHEDULE", "*/5 * * * *"),
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
