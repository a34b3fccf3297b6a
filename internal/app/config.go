package app

import (
	"net/url"
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/pricing"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	DatabaseURL string `usage:"PostgreSQL URL of the order journal; journaling is off when empty" flag:"database-url"`
	Backend     BackendConfig
	Pricing     PricingConfig
	Cache       CacheConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// BackendConfig locates the marketplace REST backend.
type BackendConfig struct {
	URL     string        `usage:"Marketplace backend base URL" flag:"backend-url"`
	Timeout time.Duration `default:"10s" usage:"Timeout of a single backend call" flag:"backend-timeout"`
}

// PricingConfig holds the delivery policy. Amounts are decimal strings.
type PricingConfig struct {
	FreeDeliveryThreshold string `default:"800" usage:"Subtotal above which delivery is free" flag:"free-delivery-threshold"`
	FlatDeliveryFee       string `default:"40" usage:"Delivery fee charged up to the threshold" flag:"delivery-fee"`
}

// CacheConfig selects and tunes the cart and category cache.
type CacheConfig struct {
	Driver        string        `default:"memory" usage:"Cache driver: memory or redis" flag:"cache-driver"`
	RedisURL      string        `usage:"Redis URL (STOREFRONT_CACHE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Prefix        string        `default:"storefront" usage:"Redis key prefix" flag:"cache-prefix"`
	CartTTL       time.Duration `default:"5m" usage:"Lifetime of a cached cart" flag:"cart-ttl"`
	CategoryTTL   time.Duration `default:"1h" usage:"Lifetime of cached categories" flag:"category-ttl"`
	SweepInterval time.Duration `default:"1m" usage:"Expired entry sweep interval of the memory cache" flag:"cache-sweep-interval"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET" usage:"HMAC secret of backend-issued tokens; when empty signatures are not checked locally and order history is disabled" flag:"jwt-secret"`
}

// RateLimitConfig controls the per-shopper token bucket: Max requests of
// burst, refilled evenly over Window.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Token bucket size (burst)"`
	Window time.Duration `default:"1m"  usage:"Time to refill an empty bucket"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(acfg aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, acfg).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names (DATABASE_URL, REDIS_URL, PORT) onto the configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Cache.RedisURL == "" {
		c.Cache.RedisURL = os.Getenv("REDIS_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.Backend.URL == "" {
		return errors.New("backend URL is required: set STOREFRONT_BACKEND_URL")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.Errorf("backend URL %q must be absolute", c.Backend.URL)
	}

	switch c.Cache.Driver {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisURL == "" {
			return errors.New("redis cache requires STOREFRONT_CACHE_REDIS_URL or REDIS_URL")
		}
	default:
		return errors.Errorf("unknown cache driver %q", c.Cache.Driver)
	}

	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy parses the configured delivery policy.
func (c *Config) Policy() (pricing.Policy, error) {
	threshold, err := decimal.NewFromString(c.Pricing.FreeDeliveryThreshold)
	if err != nil {
		return pricing.Policy{}, errors.Wrap(err, "parse free delivery threshold")
	}
	fee, err := decimal.NewFromString(c.Pricing.FlatDeliveryFee)
	if err != nil {
		return pricing.Policy{}, errors.Wrap(err, "parse delivery fee")
	}
	if threshold.IsNegative() || fee.IsNegative() {
		return pricing.Policy{}, errors.New("delivery policy amounts must not be negative")
	}
	return pricing.Policy{FreeDeliveryThreshold: threshold, FlatDeliveryFee: fee}, nil
}
