// Package config loads gateway configuration from YAML with environment
// variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level gateway configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Services  ServicesConfig  `yaml:"services"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CORS      CORSConfig      `yaml:"cors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig configures the listening socket.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ServicesConfig holds the base URLs of the backend services.
type ServicesConfig struct {
	UserServiceURL    string `yaml:"user_service_url"`
	PaymentServiceURL string `yaml:"payment_service_url"`
	StoreServiceURL   string `yaml:"store_service_url"`
	BookingServiceURL string `yaml:"booking_service_url"`
}

// AuthConfig configures token verification.
//
// AllowInsecureFallback enables HS256 verification with the shared
// development secret when RS256 verification is unavailable or fails.
// Accepting a publicly known symmetric secret weakens the trust model to
// the point that anyone can mint valid tokens, so the switch is off unless
// explicitly enabled for a development deployment.
type AuthConfig struct {
	DevSecret             string `yaml:"dev_secret"`
	AllowInsecureFallback bool   `yaml:"allow_insecure_fallback"`
}

// RateLimitConfig configures per-client request limiting.
type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// CORSConfig configures allowed cross-origin callers.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// defaultDevSecret must match the fallback secret used by the user service
// when no RSA keypair is installed.
const defaultDevSecret = "dev-secret-key-123"

// Default returns the configuration used when no file is present. Service
// addresses match the docker-compose hostnames of the marketplace stack.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 3000},
		Services: ServicesConfig{
			UserServiceURL:    "http://user-service:3001",
			PaymentServiceURL: "http://payment-service:4000",
			StoreServiceURL:   "http://store-service:4001",
			BookingServiceURL: "http://booking-service:4002",
		},
		Auth: AuthConfig{
			DevSecret:             defaultDevSecret,
			AllowInsecureFallback: false,
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 100, Burst: 20},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3002",
				"http://localhost:3000",
				"http://frontend-app:3002",
			},
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads the configuration from path, then applies environment
// overrides. A missing file is not an error; defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Server.Port)
	}

	return cfg, nil
}

// applyEnv applies the environment variables used by the docker-compose
// deployment, plus auth and logging toggles.
func (c *Config) applyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("REST_API_URL"); v != "" {
		c.Services.UserServiceURL = v
	}
	if v := os.Getenv("PAYMENT_API_URL"); v != "" {
		c.Services.PaymentServiceURL = v
	}
	if v := os.Getenv("STORE_API_URL"); v != "" {
		c.Services.StoreServiceURL = v
	}
	if v := os.Getenv("BOOKING_API_URL"); v != "" {
		c.Services.BookingServiceURL = v
	}
	if v := os.Getenv("AUTH_DEV_SECRET"); v != "" {
		c.Auth.DevSecret = v
	}
	if v := os.Getenv("AUTH_ALLOW_INSECURE_FALLBACK"); v != "" {
		c.Auth.AllowInsecureFallback = parseBool(v)
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.CORS.AllowedOrigins = parseCSV(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(raw))
	return err == nil && b
}

func parseCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
