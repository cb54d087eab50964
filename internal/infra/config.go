package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	GeoIPDBPath        string
	DefaultLocale      string
	VideoProvider      string
	GeminiAPIKey       string
	GeminiBaseURL      string
	VeoModel           string
	MediaPath          string
	PollInterval       time.Duration
	PollTimeout        time.Duration
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	CORSAllowedOrigins []string
}

// Supported values for VIDEO_PROVIDER.
const (
	VideoProviderGemini    = "gemini"
	VideoProviderSynthetic = "synthetic"
)

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		GeoIPDBPath:        os.Getenv("GEOIP_DB_PATH"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		VideoProvider:      strings.ToLower(getEnv("VIDEO_PROVIDER", VideoProviderGemini)),
		GeminiAPIKey:       strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:      getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		VeoModel:           getEnv("VEO_MODEL", "veo-3.1-fast-generate-preview"),
		MediaPath:          os.Getenv("MEDIA_PATH"),
		PollInterval:       time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 8)),
		PollTimeout:        time.Second * time.Duration(getEnvInt("POLL_TIMEOUT_SECONDS", 900)),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
	}

	switch cfg.VideoProvider {
	case VideoProviderGemini, VideoProviderSynthetic:
	default:
		return nil, fmt.Errorf("unsupported VIDEO_PROVIDER %q", cfg.VideoProvider)
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}

	if cfg.PollTimeout < 0 {
		return nil, fmt.Errorf("POLL_TIMEOUT_SECONDS must not be negative")
	}

	return cfg, nil
}

// MaxPolls converts the poll timeout into a status-check ceiling. Zero means unbounded.
func (c *Config) MaxPolls() int {
	if c == nil || c.PollTimeout <= 0 || c.PollInterval <= 0 {
		return 0
	}
	polls := int(c.PollTimeout / c.PollInterval)
	if polls < 1 {
		return 1
	}
	return polls
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

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
