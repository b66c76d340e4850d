package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Push     PushConfig
	Queue    QueueConfig
	Relay    RelayConfig
	Chat     ChatConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Secure      bool   // Use HTTPS-only cookies
	Environment string // "development", "production", "test"
	Debug       bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns         int
	MinConns         int
	StatementTimeout time.Duration // bounds every query, polls included
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type EmailConfig struct {
	Provider     string // "resend", "console"
	FromAddress  string
	FromName     string
	BaseURL      string // Application base URL for links
	ResendAPIKey string
}

type PushConfig struct {
	Provider   string // "webhook", "console"
	WebhookURL string
	APIKey     string
}

type QueueConfig struct {
	Enabled     bool
	Concurrency int
}

type RelayConfig struct {
	NatsURL       string
	SubjectPrefix string
}

type ChatConfig struct {
	SendRateLimit    int64
	SendRateWindow   time.Duration
	RequestRateLimit int64
	TypingTTL        time.Duration
	NotificationTTL  time.Duration
	EdgeRepairPeriod time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load() (*Config, error) {
	LoadDotEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Secure:      getEnvBool("SERVER_SECURE", false),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "fitchat"),
			Password: getEnv("DB_PASSWORD", "fitchat"),
			DBName:   getEnv("DB_NAME", "fitchat"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxConns:         getEnvInt("DB_MAX_CONNS", 30),
			MinConns:         getEnvInt("DB_MIN_CONNS", 5),
			StatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Email: EmailConfig{
			Provider:     getEnv("EMAIL_PROVIDER", "console"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", "noreply@fitchat.app"),
			FromName:     getEnv("EMAIL_FROM_NAME", "FitChat"),
			BaseURL:      getEnv("APP_BASE_URL", "http://localhost:8080"),
			ResendAPIKey: getEnv("RESEND_API_KEY", ""),
		},
		Push: PushConfig{
			Provider:   getEnv("PUSH_PROVIDER", "console"),
			WebhookURL: getEnv("PUSH_WEBHOOK_URL", ""),
			APIKey:     getEnv("PUSH_API_KEY", ""),
		},
		Queue: QueueConfig{
			Enabled:     getEnvBool("QUEUE_ENABLED", true),
			Concurrency: getEnvInt("QUEUE_CONCURRENCY", 10),
		},
		Relay: RelayConfig{
			NatsURL:       getEnv("NATS_URL", ""),
			SubjectPrefix: getEnvNonEmpty("NATS_SUBJECT_PREFIX", "fitchat.user"),
		},
		Chat: ChatConfig{
			SendRateLimit:    int64(getEnvInt("CHAT_SEND_RATE_LIMIT", 60)),
			SendRateWindow:   getEnvDuration("CHAT_SEND_RATE_WINDOW", time.Minute),
			RequestRateLimit: int64(getEnvInt("FRIEND_REQUEST_RATE_LIMIT", 20)),
			TypingTTL:        getEnvDuration("TYPING_TTL", 5*time.Second),
			NotificationTTL:  getEnvDuration("NOTIFICATION_TTL", 30*24*time.Hour),
			EdgeRepairPeriod: getEnvDuration("EDGE_REPAIR_PERIOD", time.Hour),
		},
	}

	if cfg.Push.Provider == "webhook" && cfg.Push.WebhookURL == "" {
		return nil, fmt.Errorf("PUSH_WEBHOOK_URL is required when PUSH_PROVIDER=webhook")
	}
	if cfg.Email.Provider == "resend" && cfg.Email.ResendAPIKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER=resend")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(value) != "" {
			return value
		}
		return defaultValue
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
