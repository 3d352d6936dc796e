// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the chat service.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings. It is constructed once
// and handed to NewServer; nothing in this package keeps ambient state.
type Config struct {
	// ListenAddr is the TCP address the chat listener binds to.
	ListenAddr string

	// HTTPAddr is the address of the HTTP listener carrying the WebSocket
	// endpoint and the operator status page. Empty disables it.
	HTTPAddr string

	// AllowedOrigins restricts WebSocket upgrades by Origin header.
	AllowedOrigins []string

	// MaxFrameSize bounds a single inbound frame in bytes.
	MaxFrameSize int

	// PasswordTTL is the session password rotation interval.
	PasswordTTL time.Duration

	// PollInterval is the delay between poll ticks for each connection.
	PollInterval time.Duration

	// PollWorkers bounds how many poll ticks may run concurrently.
	PollWorkers int

	RateLimit RateLimitConfig
}

func defaultConfig() Config {
	return Config{
		ListenAddr: ":5000",
		HTTPAddr:   ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxFrameSize: 4096,
		PasswordTTL:  100 * time.Second,
		PollInterval: time.Second,
		PollWorkers:  10,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":5000"
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = 4096
	}
	if cfg.PasswordTTL <= 0 {
		cfg.PasswordTTL = 100 * time.Second
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.PollWorkers <= 0 {
		cfg.PollWorkers = 10
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	normalized, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	if allowAll {
		cfg.AllowedOrigins = []string{"*"}
	} else {
		cfg.AllowedOrigins = normalized
	}

	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := sanitizeConfig(defaultConfig())
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("CHAT_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	if addr, ok := os.LookupEnv("CHAT_HTTP_ADDR"); ok {
		cfg.HTTPAddr = addr
	}
	if origins := os.Getenv("CHAT_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("CHAT_MAX_FRAME_SIZE"); maxSize != "" {
		cfg.MaxFrameSize = parseIntValue(maxSize, cfg.MaxFrameSize)
	}
	if ttl := os.Getenv("CHAT_PASSWORD_TTL_SECS"); ttl != "" {
		cfg.PasswordTTL = parseSecondsValue(ttl, cfg.PasswordTTL)
	}
	if interval := os.Getenv("CHAT_POLL_INTERVAL_SECS"); interval != "" {
		cfg.PollInterval = parseSecondsValue(interval, cfg.PollInterval)
	}
	if workers := os.Getenv("CHAT_POLL_WORKERS"); workers != "" {
		cfg.PollWorkers = parseIntValue(workers, cfg.PollWorkers)
	}
	if burst := os.Getenv("CHAT_RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("CHAT_RATE_LIMIT_REFILL_SECS"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSecondsValue(interval, cfg.RateLimit.RefillInterval)
	}

	sanitized := sanitizeConfig(cfg)
	return &sanitized
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSecondsValue(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
