// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay service.
package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

const (
	defaultHost             = "0.0.0.0"
	defaultPort             = 3055
	defaultMaxMessageSize   = 100 * 1024 * 1024
	defaultRateLimitBurst   = 0
	defaultRefillInterval   = time.Second
	defaultSendBufferSize   = 256
	defaultShutdownTimeout  = 10 * time.Second
	defaultLogLevel         = "INFO"
	allowAllOriginsWildcard = "*"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=3055"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS,default=*"`
	MaxMessageSize  int64         `env:"MAX_MESSAGE_SIZE,default=104857600"`
	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,default=256"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	RateLimitBurst  int           `env:"RATE_LIMIT_BURST,default=0"`
	RateLimitRefill time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL,default=1s"`
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() Config {
	return Config{
		Host:            defaultHost,
		Port:            defaultPort,
		AllowedOrigins:  allowAllOriginsWildcard,
		MaxMessageSize:  defaultMaxMessageSize,
		SendBufferSize:  defaultSendBufferSize,
		ShutdownTimeout: defaultShutdownTimeout,
		LogLevel:        defaultLogLevel,
		RateLimitBurst:  defaultRateLimitBurst,
		RateLimitRefill: defaultRefillInterval,
	}
}

// LoadConfig reads the configuration from the process environment. Unset
// variables take their defaults; out-of-range values are replaced by them.
func LoadConfig() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg.Sanitize(), nil
}

// Sanitize returns a copy of cfg with every unusable value reset to its default.
func (cfg Config) Sanitize() Config {
	if cfg.Host == "" {
		cfg.Host = defaultHost
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = defaultPort
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.RateLimitBurst < 0 {
		cfg.RateLimitBurst = defaultRateLimitBurst
	}
	if cfg.RateLimitRefill <= 0 {
		cfg.RateLimitRefill = defaultRefillInterval
	}
	return cfg
}

// Addr is the listen address in host:port form.
func (cfg Config) Addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// RateLimit groups the per-connection throttling settings. A zero burst
// disables throttling.
func (cfg Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{Burst: cfg.RateLimitBurst, RefillInterval: cfg.RateLimitRefill}
}

// Origins splits AllowedOrigins on commas.
func (cfg Config) Origins() []string {
	return parseOrigins(cfg.AllowedOrigins)
}

func parseOrigins(origins string) []string {
	if strings.TrimSpace(origins) == "" {
		return nil
	}
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
