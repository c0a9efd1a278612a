package config

import (
	"fmt"
	"slices"
	"time"

	pkgconfig "github.com/GabrijelGordic/Suzeraj/pkg/config"
	"github.com/GabrijelGordic/Suzeraj/pkg/database"
	"github.com/GabrijelGordic/Suzeraj/pkg/tracing"
)

// Backend names accepted by the *_BACKEND settings.
const (
	BackendMemory        = "memory"
	BackendPostgres      = "postgres"
	BackendStore         = "store"
	BackendRedis         = "redis"
	BackendElasticsearch = "elasticsearch"
)

// Config holds all configuration for the marketplace service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort           int           `env:"MARKET_HTTP_PORT" envDefault:"8000"`
	RequestTimeout     time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	PprofAllowedCIDRs  []string      `env:"PPROF_ALLOWED_CIDRS" envSeparator:","`

	// Backends
	StoreBackend    string `env:"STORE_BACKEND" envDefault:"memory"`
	WishlistBackend string `env:"WISHLIST_BACKEND" envDefault:"store"`
	SearchBackend   string `env:"SEARCH_BACKEND" envDefault:"store"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"market"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"market_secret"`
	PostgresDB   string `env:"MARKET_DB_NAME" envDefault:"market_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	DBMaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int32         `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	DBMaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`
	SlowQueryMS       int           `env:"LOG_SLOW_QUERY_MS" envDefault:"0"`

	// Redis
	RedisHost     string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Kafka
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"market-indexer"`

	// Elasticsearch
	ElasticsearchURL   string `env:"ELASTICSEARCH_URL" envDefault:"http://localhost:9200"`
	ElasticsearchIndex string `env:"ELASTICSEARCH_INDEX" envDefault:"market_listings"`

	// External user service; empty means profiles are served locally only.
	UserServiceURL string `env:"USER_SERVICE_URL"`

	ViewCountTimeoutMS int `env:"VIEW_COUNT_TIMEOUT_MS" envDefault:"2000"`

	// Per-caller limit on write endpoints; 0 disables it.
	WriteRateLimitRPS   float64 `env:"WRITE_RATE_LIMIT_RPS" envDefault:"10"`
	WriteRateLimitBurst int     `env:"WRITE_RATE_LIMIT_BURST" envDefault:"20"`

	// Tracing
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

var _ pkgconfig.Validator = (*Config)(nil)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load market config: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if !slices.Contains([]string{BackendMemory, BackendPostgres}, c.StoreBackend) {
		return fmt.Errorf("STORE_BACKEND must be memory or postgres, got %q", c.StoreBackend)
	}
	if !slices.Contains([]string{BackendStore, BackendRedis}, c.WishlistBackend) {
		return fmt.Errorf("WISHLIST_BACKEND must be store or redis, got %q", c.WishlistBackend)
	}
	if !slices.Contains([]string{BackendStore, BackendElasticsearch}, c.SearchBackend) {
		return fmt.Errorf("SEARCH_BACKEND must be store or elasticsearch, got %q", c.SearchBackend)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0 and 1, got %v", c.OTELSampleRate)
	}
	if c.WriteRateLimitRPS < 0 || c.WriteRateLimitBurst < 0 {
		return fmt.Errorf("WRITE_RATE_LIMIT_RPS and WRITE_RATE_LIMIT_BURST must not be negative")
	}
	if c.ViewCountTimeoutMS <= 0 {
		return fmt.Errorf("VIEW_COUNT_TIMEOUT_MS must be positive, got %d", c.ViewCountTimeoutMS)
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.WishlistBackend == BackendRedis
}

// ViewCountTimeout bounds the detached view counter update.
func (c *Config) ViewCountTimeout() time.Duration {
	return time.Duration(c.ViewCountTimeoutMS) * time.Millisecond
}

// SlowQueryThreshold is zero when slow query logging is off.
func (c *Config) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMS) * time.Millisecond
}

// Postgres returns the connection settings for the pgx pool.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPass,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSL,
		MaxConns:        c.DBMaxConns,
		MinConns:        c.DBMinConns,
		MaxConnLifetime: c.DBMaxConnLifetime,
		MaxConnIdleTime: c.DBMaxConnIdleTime,
	}
}

// Redis returns the Redis connection settings.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:        c.RedisHost,
		Port:        c.RedisPort,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		PoolSize:    c.RedisPoolSize,
		DialTimeout: 5 * time.Second,
	}
}

// Tracing returns the OpenTelemetry settings for serviceName.
func (c *Config) Tracing(serviceName, version string) tracing.Config {
	return tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Environment:    c.Environment,
		OTLPEndpoint:   c.OTELEndpoint,
		SampleRate:     c.OTELSampleRate,
		Enabled:        c.OTELEnabled,
	}
}
