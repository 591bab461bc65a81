// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the relay.
package server

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
)

const (
	defaultHost            = "127.0.0.1"
	defaultPort            = 55000
	defaultReadBufferSize  = 1024
	defaultMaxFrameSize    = 64 * 1024
	defaultRefillInterval  = time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultAllowedOrigins  = "http://localhost:8080"
)

var validate = validator.New()

// RateLimitConfig defines the parameters for per-session message rate
// limiting. A zero Burst disables the limiter.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay settings. Every field can be set from the environment.
type Config struct {
	Host              string        `env:"CHAT_HOST,default=127.0.0.1" validate:"required"`
	Port              int           `env:"CHAT_PORT,default=55000" validate:"gte=0,lte=65535"`
	ReadBufferSize    int           `env:"CHAT_READ_BUFFER_SIZE,default=1024" validate:"gte=0"`
	ReadTimeout       time.Duration `env:"CHAT_READ_TIMEOUT,default=0s" validate:"gte=0"`
	WriteTimeout      time.Duration `env:"CHAT_WRITE_TIMEOUT,default=10s" validate:"gte=0"`
	MaxConnections    int           `env:"CHAT_MAX_CONNECTIONS,default=0" validate:"gte=0"`
	WebSocketAddr     string        `env:"CHAT_WS_ADDR"`
	MaxFrameSize      int64         `env:"CHAT_WS_MAX_FRAME_SIZE,default=65536" validate:"gte=0"`
	AllowedOrigins    string        `env:"CHAT_ALLOWED_ORIGINS,default=http://localhost:8080"`
	RateLimitBurst    int           `env:"CHAT_RATE_LIMIT_BURST,default=0" validate:"gte=0"`
	RateLimitInterval time.Duration `env:"CHAT_RATE_LIMIT_INTERVAL,default=1s" validate:"gte=0"`
	ShutdownTimeout   time.Duration `env:"CHAT_SHUTDOWN_TIMEOUT,default=5s" validate:"gte=0"`
	AdminConsole      bool          `env:"CHAT_ADMIN_CONSOLE,default=true"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return Config{
		Host:              defaultHost,
		Port:              defaultPort,
		ReadBufferSize:    defaultReadBufferSize,
		WriteTimeout:      defaultWriteTimeout,
		MaxFrameSize:      defaultMaxFrameSize,
		AllowedOrigins:    defaultAllowedOrigins,
		RateLimitInterval: defaultRefillInterval,
		ShutdownTimeout:   defaultShutdownTimeout,
		AdminConsole:      true,
		LogLevel:          "INFO",
	}
}

// LoadConfig reads the configuration from environment variables, validates
// it and fills in defaults for zero values.
func LoadConfig() (Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return sanitizeConfig(cfg), nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func sanitizeConfig(cfg Config) Config {
	if strings.TrimSpace(cfg.Host) == "" {
		cfg.Host = defaultHost
	}

	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}

	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = defaultMaxFrameSize
	}

	if cfg.RateLimitInterval <= 0 {
		cfg.RateLimitInterval = defaultRefillInterval
	}

	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "INFO"
	}

	return cfg
}

// Addr returns the TCP listen address.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RateLimit returns the per-session rate limit settings.
func (c Config) RateLimit() RateLimitConfig {
	return RateLimitConfig{
		Burst:          c.RateLimitBurst,
		RefillInterval: c.RateLimitInterval,
	}
}

// Origins returns the WebSocket origin allow-list.
func (c Config) Origins() []string {
	return parseOrigins(c.AllowedOrigins)
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
