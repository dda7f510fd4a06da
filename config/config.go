package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Host string
	Port string

	DBHost        string
	DBPort        string
	DBUser        string
	DBPassword    string
	DBName        string
	DBSSLMode     string
	DBAutoMigrate bool

	AdminSecret   string
	WebhookSecret string
	SettingsTTL   time.Duration

	BatchEvery    time.Duration
	VelocityEvery time.Duration
	WinCapEvery   time.Duration
	JobTimeout    time.Duration

	LogLevel string
	LogFile  string
}

func Load() *Config {
	return &Config{
		Host: getEnv("HOST", "127.0.0.1"),
		Port: getEnv("PORT", "3000"),

		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnv("DB_PORT", "5432"),
		DBUser:        getEnv("DB_USER", "postgres"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        getEnv("DB_NAME", "casino"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		DBAutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),

		AdminSecret:   os.Getenv("ADMIN_SECRET"),
		WebhookSecret: os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		SettingsTTL:   getEnvDuration("SETTINGS_TTL", 30*time.Second),

		BatchEvery:    getEnvDuration("JOB_BATCH_INTERVAL", time.Minute),
		VelocityEvery: getEnvDuration("JOB_VELOCITY_INTERVAL", 5*time.Minute),
		WinCapEvery:   getEnvDuration("JOB_WINCAP_INTERVAL", 15*time.Minute),
		JobTimeout:    getEnvDuration("JOB_TIMEOUT", 30*time.Second),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  os.Getenv("LOG_FILE"),
	}
}

func getEnv(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	if n, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return n
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("90s") or bare seconds ("90").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n := getEnvInt(key, 0); n > 0 {
		return time.Duration(n) * time.Second
	}
	return fallback
}
