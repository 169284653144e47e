package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultGatewayBaseURL is the aggregation service every provider call goes through.
const DefaultGatewayBaseURL = "https://ai.danzhichen.com"

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	GatewayBaseURL     string
	GatewayAPIKey      string
	LockGatewayBaseURL bool
	GatewayTimeout     time.Duration
	StorePath          string
	DatabaseURL        string
	MediaDir           string
	MediaBaseURL       string
	DefaultLocale      string
	ModelCatalogPath   string
	PollMaxErrors      int
	PollBackoffFactor  float64
	PollMaxInterval    time.Duration
	ReconcileSchedule  string
	CORSAllowedOrigins []string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		GatewayBaseURL:     strings.TrimRight(getEnv("GATEWAY_BASE_URL", DefaultGatewayBaseURL), "/"),
		GatewayAPIKey:      strings.TrimSpace(os.Getenv("GATEWAY_API_KEY")),
		LockGatewayBaseURL: getEnvBool("GATEWAY_LOCK_BASE_URL", true),
		GatewayTimeout:     time.Second * time.Duration(getEnvInt("GATEWAY_TIMEOUT_SECONDS", 300)),
		StorePath:          getEnv("STORE_PATH", "./data/assets.db"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MediaDir:           os.Getenv("MEDIA_DIR"),
		MediaBaseURL:       strings.TrimRight(os.Getenv("MEDIA_BASE_URL"), "/"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		ModelCatalogPath:   os.Getenv("MODEL_CATALOG_PATH"),
		PollMaxErrors:      getEnvInt("POLL_MAX_TRANSPORT_ERRORS", 0),
		PollBackoffFactor:  getEnvFloat("POLL_BACKOFF_FACTOR", 1),
		PollMaxInterval:    time.Second * time.Duration(getEnvInt("POLL_MAX_INTERVAL_SECONDS", 60)),
		ReconcileSchedule:  getEnv("RECONCILE_SCHEDULE", "@every 1m"),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
	}

	if cfg.MediaBaseURL == "" && cfg.MediaDir != "" {
		cfg.MediaBaseURL = fmt.Sprintf("http://localhost:%s/media", cfg.Port)
	}
	if cfg.PollMaxErrors < 0 {
		return nil, fmt.Errorf("POLL_MAX_TRANSPORT_ERRORS must be >= 0")
	}
	if cfg.PollBackoffFactor < 1 {
		return nil, fmt.Errorf("POLL_BACKOFF_FACTOR must be >= 1")
	}
	if cfg.DatabaseURL == "" && strings.TrimSpace(cfg.StorePath) == "" {
		return nil, fmt.Errorf("STORE_PATH or DATABASE_URL is required")
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

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
