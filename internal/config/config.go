package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Webhooks   WebhookConfig
	SLA        SLAConfig
	Escalation EscalationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// WebhookConfig holds per-source shared secrets for signature verification.
type WebhookConfig struct {
	HostawaySecret  string
	BreezewaySecret string
	SignatureHeader string
}

// SLAConfig tunes the deadline sweep.
type SLAConfig struct {
	SweepIntervalSeconds int
	WarningMinutes       int
}

// EscalationConfig holds chat routing for breach notifications.
type EscalationConfig struct {
	ChatWebhookURL string
	DefaultRoute   string
	NightRoute     string
	NightStartHour int
	NightEndHour   int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ops-task-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Webhooks: WebhookConfig{
			HostawaySecret:  os.Getenv("WEBHOOK_HOSTAWAY_SECRET"),
			BreezewaySecret: os.Getenv("WEBHOOK_BREEZEWAY_SECRET"),
			SignatureHeader: getEnv("WEBHOOK_SIGNATURE_HEADER", "X-Signature"),
		},
		SLA: SLAConfig{
			SweepIntervalSeconds: getEnvAsInt("SLA_SWEEP_INTERVAL_SECONDS", 30),
			WarningMinutes:       getEnvAsInt("SLA_WARNING_MINUTES", 5),
		},
		Escalation: EscalationConfig{
			ChatWebhookURL: getEnv("ESCALATION_CHAT_WEBHOOK_URL", ""),
			DefaultRoute:   getEnv("ESCALATION_DEFAULT_ROUTE", "#ops-escalations"),
			NightRoute:     getEnv("ESCALATION_NIGHT_ROUTE", ""),
			NightStartHour: getEnvAsInt("ESCALATION_NIGHT_START_HOUR", 22),
			NightEndHour:   getEnvAsInt("ESCALATION_NIGHT_END_HOUR", 6),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SweepInterval returns the sweep cadence as a duration.
func (s SLAConfig) SweepInterval() time.Duration {
	if s.SweepIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.SweepIntervalSeconds) * time.Second
}

// WarningWindow returns the pre-deadline warning threshold.
func (s SLAConfig) WarningWindow() time.Duration {
	if s.WarningMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(s.WarningMinutes) * time.Minute
}

// SecretFor returns the shared secret for a webhook source, empty when unknown.
func (w WebhookConfig) SecretFor(source string) string {
	switch source {
	case "hostaway":
		return w.HostawaySecret
	case "breezeway":
		return w.BreezewaySecret
	}
	return ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
