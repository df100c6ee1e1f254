package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultCookieSecret is the development signing secret used when none is
// configured. main warns loudly when it is in use.
const DefaultCookieSecret = "novachat-dev-secret"

// Config contains all runtime settings for the chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string
	AllowAnyOrigin   bool

	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	UpstreamTimeout time.Duration

	SessionDailyLimit int
	DataDir           string
	CookieSecret      string
	DatabaseURL       string
}

// UpstreamEnabled reports whether an upstream completion API is configured.
func (c Config) UpstreamEnabled() bool {
	return strings.TrimSpace(c.OpenAIAPIKey) != ""
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:          bindAddrFromEnv("PORT", "3000"),
		MetricsNamespace:  envOrDefault("APP_METRICS_NAMESPACE", "novachat"),
		AllowAnyOrigin:    false,
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:     envOrDefault("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:       envOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		SessionDailyLimit: 200,
		DataDir:           envOrDefault("NOVACHAT_DATA_DIR", "data"),
		CookieSecret:      envOrDefault("NOVACHAT_COOKIE_SECRET", DefaultCookieSecret),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ShutdownTimeout:   15 * time.Second,
		UpstreamTimeout:   60 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.UpstreamTimeout, err = durationFromEnv("APP_UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionDailyLimit, err = intFromEnv("SESSION_DAILY_LIMIT", cfg.SessionDailyLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionDailyLimit <= 0 {
		return Config{}, fmt.Errorf("SESSION_DAILY_LIMIT must be positive")
	}
	if cfg.UpstreamTimeout < time.Second {
		return Config{}, fmt.Errorf("APP_UPSTREAM_TIMEOUT must be at least 1s")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return Config{}, fmt.Errorf("NOVACHAT_DATA_DIR must not be empty")
	}

	return cfg, nil
}

func bindAddrFromEnv(key, fallbackPort string) string {
	port := envOrDefault(key, fallbackPort)
	if strings.Contains(port, ":") {
		return port
	}
	return ":" + port
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
