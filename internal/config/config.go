package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime settings. Values come from environment
// variables; each main loads .env via godotenv before calling Load.
type Config struct {
	DatabaseURL string
	RedisAddr   string
	Port        string
	BaseURL     string
	APIKey      string

	DataDir      string
	AudioDir     string
	ThumbnailDir string
	UploadDir    string

	WorkerConcurrency int
	JobMaxRetry       int

	RefreshInterval          time.Duration
	RefreshCheckInterval     time.Duration
	MaxNewEpisodesPerRefresh int

	InlineConvertMaxBytes int64
	MaxUploadBytes        int64

	ResolveTimeout time.Duration
	FetchTimeout   time.Duration
	ConvertTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisAddr:   getenv("REDIS_ADDR", "127.0.0.1:6379"),
		Port:        getenv("PORT", "8080"),
		BaseURL:     getenv("BASE_URL", "http://localhost:8080"),
		APIKey:      os.Getenv("API_KEY"),

		DataDir:      getenv("DATA_DIR", "./data"),
		AudioDir:     getenv("AUDIO_DIR", "./data/audio"),
		ThumbnailDir: getenv("THUMBNAIL_DIR", "./data/thumbnails"),
		UploadDir:    getenv("UPLOAD_DIR", "./data/uploads"),

		WorkerConcurrency: getint("WORKER_CONCURRENCY", 2),
		JobMaxRetry:       getint("JOB_MAX_RETRY", 3),

		RefreshInterval:          getseconds("REFRESH_INTERVAL", 86400),
		RefreshCheckInterval:     getseconds("REFRESH_CHECK_INTERVAL", 300),
		MaxNewEpisodesPerRefresh: getint("MAX_NEW_EPISODES_PER_REFRESH", 50),

		InlineConvertMaxBytes: getint64("INLINE_CONVERT_MAX_BYTES", 10*1024*1024),
		MaxUploadBytes:        getint64("MAX_UPLOAD_BYTES", 500*1024*1024),

		ResolveTimeout: getseconds("RESOLVE_TIMEOUT", 60),
		FetchTimeout:   getseconds("FETCH_TIMEOUT", 1800),
		ConvertTimeout: getseconds("CONVERT_TIMEOUT", 600),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getint64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func getseconds(key string, fallback int) time.Duration {
	return time.Duration(getint(key, fallback)) * time.Second
}
