package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Policy    PolicyConfig
	Token     TokenConfig
	Upstream  UpstreamConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	PublicHost      string        `envconfig:"PUBLIC_HOST"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"30"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"60"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// PolicyConfig holds the allow-list and caller gate configuration.
type PolicyConfig struct {
	AllowedDomains  []string `envconfig:"ALLOWED_DOMAINS"`
	PolicyFile      string   `envconfig:"POLICY_FILE"`
	AuthorizedHosts []string `envconfig:"AUTHORIZED_HOSTS" default:"localhost,127.0.0.1"`
	DirectHosts     []string `envconfig:"DIRECT_HOSTS" default:"cdnjs.cloudflare.com,cdn.jsdelivr.net,unpkg.com,fonts.googleapis.com,fonts.gstatic.com"`
}

// TokenConfig holds access token configuration.
type TokenConfig struct {
	Required      bool          `envconfig:"TOKEN_REQUIRED" default:"true"`
	TTL           time.Duration `envconfig:"TOKEN_TTL" default:"15m"`
	MaxRequests   int           `envconfig:"TOKEN_MAX_REQUESTS" default:"500"`
	SweepInterval time.Duration `envconfig:"TOKEN_SWEEP_INTERVAL" default:"1m"`
}

// UpstreamConfig holds outbound fetch configuration.
// RetryAttempts and RetryDelay are carried for operators but never applied.
type UpstreamConfig struct {
	Timeout              time.Duration `envconfig:"UPSTREAM_TIMEOUT" default:"30s"`
	MaxResponseSize      int64         `envconfig:"UPSTREAM_MAX_RESPONSE_SIZE" default:"52428800"`
	MaxRedirects         int           `envconfig:"UPSTREAM_MAX_REDIRECTS" default:"10"`
	UserAgent            string        `envconfig:"UPSTREAM_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	RetryAttempts        int           `envconfig:"UPSTREAM_RETRY_ATTEMPTS" default:"3"`
	RetryDelay           time.Duration `envconfig:"UPSTREAM_RETRY_DELAY" default:"1s"`
	CompressionThreshold int           `envconfig:"COMPRESSION_THRESHOLD" default:"1024"`
}

// DefaultUserAgent is sent upstream when none is configured.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 30,
			Burst:             60,
			Enabled:           true,
		},
		Policy: PolicyConfig{
			AuthorizedHosts: []string{"localhost", "127.0.0.1"},
			DirectHosts: []string{
				"cdnjs.cloudflare.com",
				"cdn.jsdelivr.net",
				"unpkg.com",
				"fonts.googleapis.com",
				"fonts.gstatic.com",
			},
		},
		Token: TokenConfig{
			Required:      true,
			TTL:           15 * time.Minute,
			MaxRequests:   500,
			SweepInterval: time.Minute,
		},
		Upstream: UpstreamConfig{
			Timeout:              30 * time.Second,
			MaxResponseSize:      50 << 20,
			MaxRedirects:         10,
			UserAgent:            DefaultUserAgent,
			RetryAttempts:        3,
			RetryDelay:           time.Second,
			CompressionThreshold: 1024,
		},
	}
}
