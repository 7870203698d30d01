package config

import (
	"os"
	"strconv"
)

type Config struct {
	LogLevel string
	MaxProcs int
}

func Load() *Config {
	return &Config{
		LogLevel: getEnv("WORKER_LOG_LEVEL", "info"),
		MaxProcs: getEnvAsInt("WORKER_MAX_PROCS", 1),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}
