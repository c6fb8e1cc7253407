package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"

	CacheMemory = "memory"
	CacheRedis  = "redis"

	minSigningKeyLen = 32
)

type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32  `mapstructure:"DB_MIN_CONNS"`
	StoreDriver string `mapstructure:"STORE_DRIVER"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	CacheBackend string        `mapstructure:"CACHE_BACKEND"`
	CacheTTL     time.Duration `mapstructure:"CACHE_TTL"`
	RedisURL     string        `mapstructure:"REDIS_URL"`

	OpenAIAPIKey    string        `mapstructure:"OPENAI_API_KEY"`
	OracleBaseURL   string        `mapstructure:"ORACLE_BASE_URL"`
	OracleModel     string        `mapstructure:"ORACLE_MODEL"`
	OracleSeed      int           `mapstructure:"ORACLE_SEED"`
	OracleTimeout   time.Duration `mapstructure:"ORACLE_TIMEOUT"`
	OracleMaxTokens int           `mapstructure:"ORACLE_MAX_TOKENS"`

	HierarchyContextEnabled bool `mapstructure:"HIERARCHY_CONTEXT_ENABLED"`
	DegradedModeEnabled     bool `mapstructure:"DEGRADED_MODE_ENABLED"`
	VerdictLogEnabled       bool `mapstructure:"VERDICT_LOG_ENABLED"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	AuthSigningKey string `mapstructure:"AUTH_SIGNING_KEY"`
	AuthIssuer     string `mapstructure:"AUTH_ISSUER"`
	AuthAudience   string `mapstructure:"AUTH_AUDIENCE"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "STORE_DRIVER", "SQLITE_PATH",
	"CACHE_BACKEND", "CACHE_TTL", "REDIS_URL",
	"OPENAI_API_KEY", "ORACLE_BASE_URL", "ORACLE_MODEL", "ORACLE_SEED", "ORACLE_TIMEOUT", "ORACLE_MAX_TOKENS",
	"HIERARCHY_CONTEXT_ENABLED", "DEGRADED_MODE_ENABLED", "VERDICT_LOG_ENABLED",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"AUTH_SIGNING_KEY", "AUTH_ISSUER", "AUTH_AUDIENCE",
}

// Load reads .env (when present) and the environment. It does not validate;
// call Validate before serving.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("STORE_DRIVER", StorePostgres)
	v.SetDefault("SQLITE_PATH", "data/validation.db")
	v.SetDefault("CACHE_BACKEND", CacheMemory)
	v.SetDefault("CACHE_TTL", "0s")
	v.SetDefault("ORACLE_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("ORACLE_MODEL", "gpt-4.1-mini")
	v.SetDefault("ORACLE_SEED", 42)
	v.SetDefault("ORACLE_TIMEOUT", "30s")
	v.SetDefault("ORACLE_MAX_TOKENS", 800)
	v.SetDefault("HIERARCHY_CONTEXT_ENABLED", true)
	v.SetDefault("DEGRADED_MODE_ENABLED", false)
	v.SetDefault("VERDICT_LOG_ENABLED", true)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT", "60s")
	v.SetDefault("BODY_LIMIT", "1M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(strings.Join(cfg.CORSOrigins, ","))
	cfg.StoreDriver = strings.ToLower(cfg.StoreDriver)
	cfg.CacheBackend = strings.ToLower(cfg.CacheBackend)

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the store and cache selections and, outside development,
// that API authentication is configured.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND is %q", CacheRedis)
		}
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q, got %q", CacheMemory, CacheRedis, c.CacheBackend)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.CacheTTL)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	if !c.IsDev() {
		if c.AuthSigningKey == "" {
			return fmt.Errorf("AUTH_SIGNING_KEY must be set when ENV=%q; refusing to start without authentication", c.Env)
		}
		if len(c.AuthSigningKey) < minSigningKeyLen {
			return fmt.Errorf("AUTH_SIGNING_KEY must be at least %d bytes, got %d", minSigningKeyLen, len(c.AuthSigningKey))
		}
	}
	return nil
}

// ValidateStore checks only the store selection. Commands that never serve
// (migrate, import, export) use it instead of Validate.
func (c *Config) ValidateStore() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORE_DRIVER is %q", StoreSQLite)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StorePostgres, StoreSQLite, c.StoreDriver)
	}
	return nil
}

// ValidateOracle checks the reasoning service settings used by serve and
// validate.
func (c *Config) ValidateOracle() error {
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.OracleTimeout <= 0 {
		return fmt.Errorf("ORACLE_TIMEOUT must be positive, got %s", c.OracleTimeout)
	}
	if c.OracleMaxTokens <= 0 {
		return fmt.Errorf("ORACLE_MAX_TOKENS must be positive, got %d", c.OracleMaxTokens)
	}
	return nil
}
