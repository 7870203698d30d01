package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                string
	Env                 string
	WorkDir             string
	MaxUploadSize       int64
	WorkerPath          string
	RasterTimeout       time.Duration
	ProbeTimeout        time.Duration
	PipelineConcurrency int
	CleanupDelay        time.Duration
	ShutdownGrace       time.Duration

	Storage  StorageConfig
	Composer ComposerConfig

	RedisAddr    string
	StatusTTL    time.Duration
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
}

type StorageConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	CredentialsFile string
	KeyPrefix       string
	SignedURLTTL    time.Duration
	CheckTimeout    time.Duration
}

type ComposerConfig struct {
	BaseURL      string
	APIKey       string
	Space        string
	Fps          int
	PollInterval time.Duration
	PollAttempts int
	Timeout      time.Duration
}

func Load() *Config {
	return &Config{
		Port:                getEnv("SERVICE_PORT", "8081"),
		Env:                 getEnv("ENV", "development"),
		WorkDir:             getEnv("WORK_DIR", os.TempDir()),
		MaxUploadSize:       getEnvAsInt64("MAX_UPLOAD_SIZE", 50*1024*1024),
		WorkerPath:          getEnv("WORKER_PATH", "slide-worker"),
		RasterTimeout:       getEnvAsDuration("RASTER_TIMEOUT", 120*time.Second),
		ProbeTimeout:        getEnvAsDuration("PROBE_TIMEOUT", 30*time.Second),
		PipelineConcurrency: getEnvAsInt("PIPELINE_CONCURRENCY", 4),
		CleanupDelay:        getEnvAsDuration("CLEANUP_DELAY", 10*time.Minute),
		ShutdownGrace:       getEnvAsDuration("SHUTDOWN_GRACE", 30*time.Second),

		Storage: StorageConfig{
			Bucket:          getEnv("STORAGE_BUCKET", ""),
			Region:          getEnv("STORAGE_REGION", ""),
			Endpoint:        getEnv("STORAGE_ENDPOINT", ""),
			CredentialsFile: getEnv("STORAGE_CREDENTIALS_FILE", ""),
			KeyPrefix:       getEnv("STORAGE_KEY_PREFIX", "ppt2video"),
			SignedURLTTL:    getEnvAsDuration("STORAGE_SIGNED_URL_TTL", time.Hour),
			CheckTimeout:    getEnvAsDuration("STORAGE_CHECK_TIMEOUT", 10*time.Second),
		},

		Composer: ComposerConfig{
			BaseURL:      getEnv("COMPOSER_BASE_URL", ""),
			APIKey:       getEnv("COMPOSER_API_KEY", ""),
			Space:        getEnv("COMPOSER_SPACE", ""),
			Fps:          getEnvAsInt("COMPOSER_FPS", 25),
			PollInterval: getEnvAsDuration("COMPOSER_POLL_INTERVAL", 2*time.Second),
			PollAttempts: getEnvAsInt("COMPOSER_POLL_ATTEMPTS", 60),
			Timeout:      getEnvAsDuration("COMPOSER_TIMEOUT", 30*time.Second),
		},

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		StatusTTL:    getEnvAsDuration("STATUS_TTL", 24*time.Hour),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		KafkaBrokers: getEnvAsList("KAFKA_BROKERS"),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "slide_video_events"),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
