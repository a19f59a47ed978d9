// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Redis, Kafka, Catalog, Resolver, RecipeService,
// etc.).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/recipe-cart-platform/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Redis         RedisConfig         `yaml:"redis"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Resolver      ResolverConfig      `yaml:"resolver"`
	RecipeService RecipeServiceConfig `yaml:"recipeService"`
	RateLimit     RateLimitConfig     `yaml:"rateLimit"`
	Events        EventsConfig        `yaml:"events"`
	Logging       LoggingConfig       `yaml:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings. RequestTimeout must exceed the
// resolver's soft deadline or cart-options requests are cut short.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// PostgresConfig holds the document-store connection. URL is the connection
// string; Database names the process store and overrides the URL's path.
type PostgresConfig struct {
	URL             string        `yaml:"url"`
	Database        string        `yaml:"database"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible connection URL pointing at Database.
func (p PostgresConfig) DSN() string {
	u, err := url.Parse(p.URL)
	if err != nil || u.Scheme == "" {
		return p.URL
	}
	if p.Database != "" {
		u.Path = "/" + p.Database
	}
	return u.String()
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	GroceryEvents string `yaml:"groceryEvents"`
}

// RedisConfig holds Redis connection and catalog-cache parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// CatalogConfig configures the signed retailer product-search client.
type CatalogConfig struct {
	BaseURL          string        `yaml:"baseUrl"`
	ConsumerID       string        `yaml:"consumerId"`
	KeyVersion       string        `yaml:"keyVersion"`
	PrivateKeyPEM    string        `yaml:"privateKey"`
	UserAgent        string        `yaml:"userAgent"`
	AttemptTimeout   time.Duration `yaml:"attemptTimeout"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	RateLimitBackoff time.Duration `yaml:"rateLimitBackoff"`
	RetryDelay       time.Duration `yaml:"retryDelay"`
	BreakerThreshold int           `yaml:"breakerThreshold"`
	BreakerReset     time.Duration `yaml:"breakerReset"`
}

// ResolverConfig controls ingredient fan-out.
type ResolverConfig struct {
	Parallelism     int           `yaml:"parallelism"`
	MaxOptions      int           `yaml:"maxOptions"`
	SoftDeadline    time.Duration `yaml:"softDeadline"`
	ManualSearchURL string        `yaml:"manualSearchUrl"`
}

// RecipeServiceConfig holds credentials for the recipe-generation service.
type RecipeServiceConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// RateLimitConfig bounds how often one user may start a resolve. Each
// resolve can cost dozens of catalog calls. Requests <= 0 disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// EventsConfig controls pipeline event publishing and the analytics
// service that consumes them.
type EventsConfig struct {
	BufferSize       int           `yaml:"bufferSize"`
	SnapshotInterval time.Duration `yaml:"snapshotInterval"`
	AnalyticsPort    int           `yaml:"analyticsPort"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates that every required secret is present.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadForAnalytics loads the same sources as Load but only requires the
// document store; the analytics service never signs or generates.
func LoadForAnalytics(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	var missing []string
	if strings.TrimSpace(cfg.Postgres.URL) == "" {
		missing = append(missing, "RC_POSTGRES_URL")
	}
	if strings.TrimSpace(cfg.Postgres.Database) == "" {
		missing = append(missing, "RC_POSTGRES_DATABASE")
	}
	if len(missing) > 0 {
		return nil, apperrors.Newf(apperrors.ErrConfig, 500, "missing required settings: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// Validate reports every missing required setting in one ConfigError.
func (c *Config) Validate() error {
	var missing []string
	required := []struct {
		name  string
		value string
	}{
		{"RC_CATALOG_CONSUMER_ID", c.Catalog.ConsumerID},
		{"RC_CATALOG_KEY_VERSION", c.Catalog.KeyVersion},
		{"RC_CATALOG_PRIVATE_KEY", c.Catalog.PrivateKeyPEM},
		{"RC_RECIPE_SERVICE_API_KEY", c.RecipeService.APIKey},
		{"RC_POSTGRES_URL", c.Postgres.URL},
		{"RC_POSTGRES_DATABASE", c.Postgres.Database},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.name)
		}
	}
	if len(missing) > 0 {
		return apperrors.Newf(apperrors.ErrConfig, 500, "missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Resolver.MaxOptions < 2 || c.Resolver.MaxOptions > 5 {
		return apperrors.Newf(apperrors.ErrConfig, 500, "resolver.maxOptions must be in [2,5], got %d", c.Resolver.MaxOptions)
	}
	if c.Resolver.Parallelism < 1 {
		return apperrors.Newf(apperrors.ErrConfig, 500, "resolver.parallelism must be positive, got %d", c.Resolver.Parallelism)
	}
	return nil
}

// Defaults returns the built-in settings before any file or environment
// overrides.
func Defaults() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    180 * time.Second,
			RequestTimeout:  170 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Postgres: PostgresConfig{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "recipe-cart-group",
			Topics: KafkaTopics{
				GroceryEvents: "grocery-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 15 * time.Minute,
		},
		Catalog: CatalogConfig{
			BaseURL:          "https://developer.api.walmart.com/api-proxy/service/affil/product/v2/search",
			UserAgent:        "recipe-cart-platform/1.0",
			AttemptTimeout:   45 * time.Second,
			MaxAttempts:      3,
			RateLimitBackoff: time.Second,
			RetryDelay:       3 * time.Second,
			BreakerThreshold: 5,
			BreakerReset:     30 * time.Second,
		},
		Resolver: ResolverConfig{
			Parallelism:     6,
			MaxOptions:      3,
			SoftDeadline:    150 * time.Second,
			ManualSearchURL: "https://www.walmart.com/search?q=",
		},
		RecipeService: RecipeServiceConfig{
			URL:     "http://localhost:8090/v1/recipes",
			Timeout: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Requests: 10,
			Window:   time.Minute,
		},
		Events: EventsConfig{
			BufferSize:       1000,
			SnapshotInterval: time.Minute,
			AnalyticsPort:    8081,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// envString and envInt bind one RC_* variable to a config field.
type envString struct {
	name string
	dst  *string
}

type envInt struct {
	name string
	dst  *int
}

// applyEnvOverrides lets RC_* variables win over the file. Unparseable
// integers are ignored and the file value stands.
func applyEnvOverrides(cfg *Config) {
	strs := []envString{
		{"RC_POSTGRES_URL", &cfg.Postgres.URL},
		{"RC_POSTGRES_DATABASE", &cfg.Postgres.Database},
		{"RC_REDIS_ADDR", &cfg.Redis.Addr},
		{"RC_REDIS_PASSWORD", &cfg.Redis.Password},
		{"RC_CATALOG_BASE_URL", &cfg.Catalog.BaseURL},
		{"RC_CATALOG_CONSUMER_ID", &cfg.Catalog.ConsumerID},
		{"RC_CATALOG_KEY_VERSION", &cfg.Catalog.KeyVersion},
		{"RC_CATALOG_PRIVATE_KEY", &cfg.Catalog.PrivateKeyPEM},
		{"RC_RECIPE_SERVICE_URL", &cfg.RecipeService.URL},
		{"RC_RECIPE_SERVICE_API_KEY", &cfg.RecipeService.APIKey},
		{"RC_LOGGING_LEVEL", &cfg.Logging.Level},
		{"RC_LOGGING_FORMAT", &cfg.Logging.Format},
	}
	for _, e := range strs {
		if v := os.Getenv(e.name); v != "" {
			*e.dst = v
		}
	}

	ints := []envInt{
		{"RC_SERVER_PORT", &cfg.Server.Port},
		{"RC_METRICS_PORT", &cfg.Metrics.Port},
		{"RC_ANALYTICS_PORT", &cfg.Events.AnalyticsPort},
		{"RC_RESOLVER_PARALLELISM", &cfg.Resolver.Parallelism},
		{"RC_RESOLVER_MAX_OPTIONS", &cfg.Resolver.MaxOptions},
		{"RC_RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests},
	}
	for _, e := range ints {
		if n, err := strconv.Atoi(os.Getenv(e.name)); err == nil {
			*e.dst = n
		}
	}

	if v := os.Getenv("RC_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	// Single-line secret stores keep PEM newlines escaped.
	cfg.Catalog.PrivateKeyPEM = strings.ReplaceAll(cfg.Catalog.PrivateKeyPEM, `\n`, "\n")
}
