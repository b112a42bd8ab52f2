package app

import (
	"os"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const defaultAddr = "0.0.0.0:5000"

// Config holds the complete application configuration, loadable from
// environment variables (FTC_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:5000" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (FTC_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Seed        bool   `default:"false" usage:"Load the default menu on startup (always on for memory storage)"`
	Timezone    string `default:"Asia/Manila" usage:"IANA zone that defines the business day for order numbers"`
	Auth        AuthConfig
	Discount    DiscountConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// AuthConfig controls access token verification.
type AuthConfig struct {
	Secret   string        `usage:"HMAC secret for access tokens (FTC_AUTH_SECRET or JWT_SECRET)" flag:"jwt-secret"`
	TokenTTL time.Duration `default:"168h" usage:"Lifetime of issued access tokens" flag:"token-ttl"`
}

// DiscountConfig controls discount evaluation.
type DiscountConfig struct {
	CapFixed bool `default:"false" usage:"Limit fixed discounts to the subtotal" flag:"discount-cap-fixed"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"15m" usage:"Rate limit window duration"`
	// TrustedProxies is the number of reverse proxies in front of the
	// server whose X-Forwarded-For entries are believed.
	TrustedProxies int `default:"1" usage:"Reverse proxies trusted for X-Forwarded-For" flag:"trusted-proxies"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"http://localhost:5173,http://localhost:5000,http://localhost:5001" usage:"Allowed CORS origins"`
	AllowSubdomains  bool     `default:"true" usage:"Also allow subdomains of allowed origins" flag:"cors-subdomains"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "FTC",
		Files:     []string{"config.yaml", "/etc/ftc/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) and the legacy backend names to the FTC_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = os.Getenv("JWT_SECRET")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
	// CLIENT_URL replaces the first default origin, the front-end dev server.
	if client := os.Getenv("CLIENT_URL"); client != "" && len(c.CORS.Origins) > 0 &&
		c.CORS.Origins[0] == "http://localhost:5173" {
		c.CORS.Origins[0] = strings.TrimRight(client, "/")
	}
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set FTC_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: use %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if c.Auth.Secret == "" {
		return errors.New("token secret is required: set FTC_AUTH_SECRET or JWT_SECRET")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("token TTL must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	if c.RateLimit.TrustedProxies < 0 {
		return errors.New("trusted proxies must not be negative")
	}
	return nil
}

// Location returns the business day time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}
