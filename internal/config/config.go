package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	TemplateStoreSQLite = "sqlite"
	TemplateStoreRedis  = "redis"
)

type Config struct {
	Port          string
	DBPath        string
	JWTSecret     string
	TokenTTL      time.Duration
	CORSOrigins   []string
	MigrationsDir string

	LogLevel  string
	LogPretty bool

	SweepTick        time.Duration
	SweepGranularity time.Duration
	OutboxSize       int

	TemplateStore string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// AdminMembers holds the names of members with the admin rank.
	AdminMembers []string
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/focusbot.db"),
		JWTSecret:     getEnv("JWT_SECRET", "change-this-secret"),
		TokenTTL:      time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		CORSOrigins:   getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		MigrationsDir: getEnv("MIGRATIONS_DIR", "./migrations"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvBool("LOG_PRETTY", false),

		SweepTick:        getEnvSeconds("SWEEP_TICK_SECONDS", 10*time.Second),
		SweepGranularity: getEnvSeconds("SWEEP_GRANULARITY_SECONDS", 20*time.Second),
		OutboxSize:       getEnvInt("OUTBOX_SIZE", 64),

		TemplateStore: strings.ToLower(getEnv("TEMPLATE_STORE", TemplateStoreSQLite)),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminMembers: getEnvList("ADMIN_MEMBERS", nil),
	}
}

func (c Config) IsAdmin(name string) bool {
	for _, admin := range c.AdminMembers {
		if strings.EqualFold(admin, name) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvSeconds(key string, fallback time.Duration) time.Duration {
	seconds := getEnvInt(key, 0)
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func getEnvList(key string, fallback []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
