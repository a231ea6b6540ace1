package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	PersistencePostgres = "postgres"
	PersistenceSQLite   = "sqlite"
	PersistenceNone     = "none"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv            string
	Port              string
	DatabaseURL       string
	SQLitePath        string
	PersistenceDriver string
	StoragePath       string
	GeminiAPIKey      string
	GeminiModel       string
	GeminiBaseURL     string
	NanoBananaAPIKey  string
	NanoBananaBaseURL string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	ModesPath         string
	MaxConcurrent     int
	ImageWorkers      int
	JobMaxAge         time.Duration
	CleanupInterval   time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	HTTPIdleTimeout   time.Duration
	RateLimitPerMin   int
	CORSOrigins       []string
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:            getEnv("APP_ENV", "development"),
		Port:              getEnv("PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		SQLitePath:        getEnv("SQLITE_PATH", "imagebatch.db"),
		PersistenceDriver: strings.ToLower(strings.TrimSpace(os.Getenv("PERSISTENCE_DRIVER"))),
		StoragePath:       getEnv("STORAGE_PATH", "./data"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		NanoBananaAPIKey:  os.Getenv("NANOBANANA_API_KEY"),
		NanoBananaBaseURL: getEnv("NANOBANANA_BASE_URL", "https://api.nanobananaapi.ai/v1"),
		OpenRouterAPIKey:  os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ModesPath:         os.Getenv("BATCH_MODES_PATH"),
		MaxConcurrent:     getEnvInt("BATCH_MAX_CONCURRENT", 3),
		ImageWorkers:      getEnvInt("IMAGE_WORKERS", 4),
		JobMaxAge:         time.Hour * time.Duration(getEnvInt("JOB_MAX_AGE_HOURS", 24)),
		CleanupInterval:   time.Minute * time.Duration(getEnvInt("CLEANUP_INTERVAL_MINUTES", 30)),
		HTTPReadTimeout:   time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:  time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:   time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:   getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	if cfg.PersistenceDriver == "" {
		if cfg.DatabaseURL != "" {
			cfg.PersistenceDriver = PersistencePostgres
		} else {
			cfg.PersistenceDriver = PersistenceSQLite
		}
	}

	switch cfg.PersistenceDriver {
	case PersistencePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when PERSISTENCE_DRIVER=postgres")
		}
	case PersistenceSQLite:
		if strings.TrimSpace(cfg.SQLitePath) == "" {
			return nil, fmt.Errorf("SQLITE_PATH is required when PERSISTENCE_DRIVER=sqlite")
		}
	case PersistenceNone:
	default:
		return nil, fmt.Errorf("unsupported PERSISTENCE_DRIVER %q", cfg.PersistenceDriver)
	}

	if cfg.MaxConcurrent < 1 {
		return nil, fmt.Errorf("BATCH_MAX_CONCURRENT must be at least 1")
	}
	if cfg.ImageWorkers < 1 {
		return nil, fmt.Errorf("IMAGE_WORKERS must be at least 1")
	}
	if cfg.JobMaxAge <= 0 {
		return nil, fmt.Errorf("JOB_MAX_AGE_HOURS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
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
