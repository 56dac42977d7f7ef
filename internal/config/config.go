package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	LogLevel string
	Env      string

	// DatabaseURL and RedisURL may be left empty, in which case the server
	// falls back to in-process stores (useful for local development and CI).
	DatabaseURL string
	RedisURL    string

	JWTSecret string

	// Broker settings.
	MaxConnections     int           // hard cap on simultaneous connections
	RateLimitPerSecond int           // inbound messages per connection per second
	IdleTimeout        time.Duration // connections idle longer than this are swept
	SweepInterval      time.Duration // how often the idle sweep runs
	CleanupInterval    time.Duration // how often the message-retention sweep runs
	OutboundBuffer     int           // per-connection outbound queue length

	// Retention settings.
	OfflineQueueCap  int
	OfflineRetention time.Duration
	HistoryCap       int
	HistoryRetention time.Duration
	ChatRetention    time.Duration
}

func LoadConfig() (*Config, error) {
	return &Config{
		Port:        GetEnv("PORT", "8081"),
		DatabaseURL: GetEnv("DATABASE_URL", ""),
		RedisURL:    GetEnv("REDIS_URL", ""),
		JWTSecret:   GetEnv("JWT_SECRET", "dev-secret-change-me"),
		Env:         GetEnv("ENV", "development"),
		LogLevel:    GetEnv("LOG_LEVEL", "info"),

		MaxConnections:     GetEnvInt("MAX_CONNECTIONS", 5000),
		RateLimitPerSecond: GetEnvInt("RATE_LIMIT_PER_SECOND", 100),
		IdleTimeout:        GetEnvDuration("IDLE_TIMEOUT", 5*time.Minute),
		SweepInterval:      GetEnvDuration("SWEEP_INTERVAL", 60*time.Second),
		CleanupInterval:    GetEnvDuration("CLEANUP_INTERVAL", time.Hour),
		OutboundBuffer:     GetEnvInt("OUTBOUND_BUFFER", 256),

		OfflineQueueCap:  GetEnvInt("OFFLINE_QUEUE_CAP", 100),
		OfflineRetention: GetEnvDuration("OFFLINE_RETENTION", 7*24*time.Hour),
		HistoryCap:       GetEnvInt("HISTORY_CAP", 1000),
		HistoryRetention: GetEnvDuration("HISTORY_RETENTION", 7*24*time.Hour),
		ChatRetention:    GetEnvDuration("CHAT_RETENTION", 30*24*time.Hour),
	}, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt reads an integer env var. A missing or unparseable value falls
// back to the default rather than failing startup.
func GetEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvDuration reads a Go duration string ("90s", "5m", "1h").
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
