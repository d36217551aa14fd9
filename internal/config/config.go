package config

import (
	"os"
	"strconv"
	"time"
)

const (
	ServiceName = "inventory-engine"

	DBMaxOpenConns    = 50
	DBMaxIdleConns    = 25
	DBConnMaxLifetime = 5 * time.Minute

	ShutdownTimeout = 5 * time.Second
)

type Config struct {
	HTTPAddr    string
	MySQLDSN    string
	RedisAddr   string
	WorkerCount int
	QueueSize   int
}

// Load reads configuration from the environment, falling back to local
// development defaults.
func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:    getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/sweetshop?parseTime=true"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		WorkerCount: getEnvInt("WORKER_COUNT", 4),
		QueueSize:   getEnvInt("QUEUE_SIZE", 10000),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
