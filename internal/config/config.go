package config

import (
	"fmt"
	"time"

	"github.com/utafrali/finsearch/internal/domain"
	"github.com/utafrali/finsearch/internal/service"
	pkgconfig "github.com/utafrali/finsearch/pkg/config"
	"github.com/utafrali/finsearch/pkg/database"
)

// Backend names accepted by the *_STORE and SEARCH_ENGINE switches.
const (
	BackendMemory        = "memory"
	BackendPostgres      = "postgres"
	BackendRedis         = "redis"
	BackendElasticsearch = "elasticsearch"
)

// Config holds all configuration for the finsearch service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"FINSEARCH_HTTP_PORT" envDefault:"8020"`

	// Search provider
	FindologicEnabled           bool          `env:"FINDOLOGIC_ENABLED" envDefault:"true"`
	FindologicCategoryPages     bool          `env:"FINDOLOGIC_CATEGORY_PAGES" envDefault:"false"`
	FindologicDirectIntegration bool          `env:"FINDOLOGIC_DIRECT_INTEGRATION" envDefault:"false"`
	FindologicBaseURL           string        `env:"FINDOLOGIC_BASE_URL" envDefault:"https://service.findologic.com/ps/xml_2.0/"`
	FindologicTimeout           time.Duration `env:"FINDOLOGIC_TIMEOUT" envDefault:"3s"`
	FindologicMaxRetries        int           `env:"FINDOLOGIC_MAX_RETRIES" envDefault:"1"`
	DefaultShopKey              string        `env:"DEFAULT_SHOP_KEY"`
	DuplicateNumberPolicy       string        `env:"DUPLICATE_NUMBER_POLICY" envDefault:"overwrite"`

	// In-shop search engine (elasticsearch or memory)
	SearchEngine       string `env:"SEARCH_ENGINE" envDefault:"memory"`
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"finsearch_products"`

	// Catalog (postgres or memory)
	CatalogStore    string `env:"CATALOG_STORE" envDefault:"memory"`
	CatalogSeedFile string `env:"CATALOG_SEED_FILE"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"finsearch"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"finsearch"`
	PostgresDB   string `env:"POSTGRES_DB" envDefault:"catalog"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Product stream cache (redis or memory)
	CacheStore    string `env:"CACHE_STORE" envDefault:"memory"`
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	ProductStreamCacheLifetime time.Duration `env:"PRODUCT_STREAM_CACHE_LIFETIME" envDefault:"24h"`
	ProductStreamPageSize      int           `env:"PRODUCT_STREAM_PAGE_SIZE" envDefault:"200"`

	// Export
	ExportRefreshOnFirstPage bool     `env:"EXPORT_REFRESH_ON_FIRST_PAGE" envDefault:"true"`
	HideNoInStock            bool     `env:"HIDE_NO_IN_STOCK" envDefault:"false"`
	MarkAsNewDays            int      `env:"MARK_AS_NEW_DAYS" envDefault:"30"`
	ExportAllowedCIDRs       []string `env:"EXPORT_ALLOWED_CIDRS" envSeparator:","`

	// Operational endpoints
	AdminToken string `env:"ADMIN_TOKEN"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load finsearch config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if err := oneOf("SEARCH_ENGINE", c.SearchEngine, BackendMemory, BackendElasticsearch); err != nil {
		return err
	}
	if err := oneOf("CATALOG_STORE", c.CatalogStore, BackendMemory, BackendPostgres); err != nil {
		return err
	}
	if err := oneOf("CACHE_STORE", c.CacheStore, BackendMemory, BackendRedis); err != nil {
		return err
	}
	if _, err := service.ParseDuplicateNumberPolicy(c.DuplicateNumberPolicy); err != nil {
		return fmt.Errorf("DUPLICATE_NUMBER_POLICY: %w", err)
	}
	if c.CatalogStore == BackendPostgres && c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.FindologicTimeout <= 0 {
		return fmt.Errorf("FINDOLOGIC_TIMEOUT must be positive, got %s", c.FindologicTimeout)
	}
	if c.FindologicMaxRetries < 0 {
		return fmt.Errorf("FINDOLOGIC_MAX_RETRIES must not be negative, got %d", c.FindologicMaxRetries)
	}
	if c.ProductStreamCacheLifetime <= 0 {
		return fmt.Errorf("PRODUCT_STREAM_CACHE_LIFETIME must be positive, got %s", c.ProductStreamCacheLifetime)
	}
	if c.ProductStreamPageSize < 1 {
		return fmt.Errorf("PRODUCT_STREAM_PAGE_SIZE must be at least 1, got %d", c.ProductStreamPageSize)
	}
	if c.MarkAsNewDays < 0 {
		return fmt.Errorf("MARK_AS_NEW_DAYS must not be negative, got %d", c.MarkAsNewDays)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %v, got %q", key, allowed, value)
}

// Flags returns the provider feature switches.
func (c *Config) Flags() domain.Flags {
	return domain.Flags{
		Enabled:           c.FindologicEnabled,
		CategoryPages:     c.FindologicCategoryPages,
		DirectIntegration: c.FindologicDirectIntegration,
	}
}

// Postgres returns the catalog database settings.
func (c *Config) Postgres() database.PostgresConfig {
	return database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: time.Duration(c.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(c.DBMaxConnIdleTimeMins) * time.Minute,
	}
}

// Redis returns the product stream cache connection settings.
func (c *Config) Redis() database.RedisConfig {
	rc := database.DefaultRedisConfig()
	rc.Host = c.RedisHost
	rc.Port = c.RedisPort
	rc.Password = c.RedisPassword
	rc.DB = c.RedisDB
	return rc
}
