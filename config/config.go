package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Billing   BillingConfig   `mapstructure:"billing"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release, test
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// AuthConfig covers API key minting. Rotating the pepper invalidates every
// issued key, so treat it like a root credential.
type AuthConfig struct {
	Pepper               string `mapstructure:"pepper"`
	KeyPrefix            string `mapstructure:"key_prefix"`
	DefaultKeyExpiryDays int    `mapstructure:"default_key_expiry_days"`
}

// BillingConfig holds the static cost table. Costs maps an endpoint path to
// its unit token cost; paths listed in BatchPaths are charged unit cost times
// the length of the request body's "data" array.
type BillingConfig struct {
	SignupGrant float64            `mapstructure:"signup_grant"`
	DefaultCost float64            `mapstructure:"default_cost"`
	Costs       map[string]float64 `mapstructure:"costs"`
	BatchPaths  []string           `mapstructure:"batch_paths"`
}

// RateLimitConfig holds the per-user default quota windows and the
// fixed-window limit applied per client IP on the public auth endpoints.
type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	RequestsPerHour   int `mapstructure:"requests_per_hour"`
	RequestsPerDay    int `mapstructure:"requests_per_day"`
	LoginPerMinute    int `mapstructure:"login_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type ScoringConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SGW_ (Scoring Gateway).
// Nested keys use underscore: SGW_DATABASE_HOST, SGW_AUTH_PEPPER, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "scoring_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.pepper", "")
	v.SetDefault("auth.key_prefix", "pk_")
	v.SetDefault("auth.default_key_expiry_days", 30)
	v.SetDefault("billing.signup_grant", 100.0)
	v.SetDefault("billing.default_cost", 1.0)
	v.SetDefault("billing.costs", map[string]float64{
		"/api/credit-score":       1.0,
		"/api/credit-scores":      1.0,
		"/api/optimize-portfolio": 1.0,
		"/api/peak-voltages":      1.0,
	})
	v.SetDefault("billing.batch_paths", []string{
		"/api/credit-scores",
		"/api/peak-voltages",
	})
	v.SetDefault("ratelimit.requests_per_minute", 10)
	v.SetDefault("ratelimit.requests_per_hour", 100)
	v.SetDefault("ratelimit.requests_per_day", 1000)
	v.SetDefault("ratelimit.login_per_minute", 30)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("scoring.timeout", "30s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SGW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("SGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required — env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// CostFor returns the unit cost for a path, falling back to the default.
func (b BillingConfig) CostFor(path string) float64 {
	if cost, ok := b.Costs[path]; ok {
		return cost
	}
	return b.DefaultCost
}

// IsBatchPath reports whether a path is charged per body "data" element.
func (b BillingConfig) IsBatchPath(path string) bool {
	for _, p := range b.BatchPaths {
		if p == path {
			return true
		}
	}
	return false
}
