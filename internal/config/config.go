package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the companion session service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	BrainProvider     string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	ChatModel         string
	ChatTimeout       time.Duration
	SystemPrompt      string
	HTTPReferer       string
	AppTitle          string

	DeviceStorePath     string
	RememberedDeviceCap int
	EventLogCap         int

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:         envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace: envOrDefault("APP_METRICS_NAMESPACE", "companiond"),
		AllowAnyOrigin:   false,
		BrainProvider:    envOrDefault("BRAIN_PROVIDER", "auto"),
		OpenRouterAPIKey: envTrimmed("OPENROUTER_API_KEY"),
		// OpenRouter-compatible chat completions endpoint.
		OpenRouterBaseURL: envOrDefault("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1/chat/completions"),
		ChatModel:         envOrDefault("CHAT_MODEL", "deepseek/deepseek-r1"),
		SystemPrompt:      envTrimmed("CHAT_SYSTEM_PROMPT"),
		HTTPReferer:       envOrDefault("CHAT_HTTP_REFERER", "http://localhost:8080"),
		AppTitle:          envOrDefault("CHAT_APP_TITLE", "RoadSense Companion"),
		DeviceStorePath:   envOrDefault("DEVICE_STORE_PATH", ".data/devices.db"),
		DatabaseURL:       envTrimmed("DATABASE_URL"),

		RememberedDeviceCap: 5,
		EventLogCap:         50,
		ShutdownTimeout:     15 * time.Second,
		ChatTimeout:         60 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ChatTimeout, err = durationFromEnv("CHAT_TIMEOUT", cfg.ChatTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.RememberedDeviceCap, err = intFromEnv("REMEMBERED_DEVICE_CAP", cfg.RememberedDeviceCap)
	if err != nil {
		return Config{}, err
	}
	cfg.EventLogCap, err = intFromEnv("EVENT_LOG_CAP", cfg.EventLogCap)
	if err != nil {
		return Config{}, err
	}

	if cfg.RememberedDeviceCap <= 0 {
		return Config{}, fmt.Errorf("REMEMBERED_DEVICE_CAP must be positive")
	}
	if cfg.EventLogCap <= 0 {
		return Config{}, fmt.Errorf("EVENT_LOG_CAP must be positive")
	}
	if cfg.ChatTimeout < time.Second {
		return Config{}, fmt.Errorf("CHAT_TIMEOUT must be at least 1s")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func envTrimmed(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := envTrimmed(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(envTrimmed(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
