// Package config handles application configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Supported store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all configuration for the application.
type Config struct {
	App      AppConfig       `yaml:"app"`
	Server   ServerConfig    `yaml:"server"`
	Store    StoreConfig     `yaml:"store"`
	Database DatabaseConfig  `yaml:"database"`
	Redis    RedisConfig     `yaml:"redis"`
	URL      URLConfig       `yaml:"url"`
	Rate     RateLimitConfig `yaml:"rate_limit"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Env      string `yaml:"env"`
	LogLevel string `yaml:"log_level"`
}

// IsDevelopment returns true if the app is running in development mode.
func (a AppConfig) IsDevelopment() bool {
	return a.Env == "development" || a.Env == "dev"
}

// IsProduction returns true if the app is running in production mode.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// StoreConfig selects where mappings and rate windows live.
type StoreConfig struct {
	Backend string `yaml:"backend"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DBName          string        `yaml:"name"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Address returns the Redis address in host:port format.
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// URLConfig holds short code allocation configuration.
type URLConfig struct {
	BaseURL            string `yaml:"base_url"`
	ShortCodeLen       int    `yaml:"short_code_length"`
	FallbackCodeLen    int    `yaml:"fallback_code_length"`
	AllocationAttempts int    `yaml:"allocation_attempts"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	Requests       int           `yaml:"requests"`
	Window         time.Duration `yaml:"window"`
	TrustProxy     bool          `yaml:"trust_proxy"`
	TrustedProxies []string      `yaml:"trusted_proxies"`
	// SweepInterval is how often expired windows are removed; 0 uses Window
	// and a negative value keeps windows forever.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Env:      "development",
			LogLevel: "info",
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Store: StoreConfig{Backend: BackendMemory},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "linkguard",
			DBName:          "linkguard",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Redis: RedisConfig{
			Host:      "localhost",
			Port:      6379,
			PoolSize:  10,
			KeyPrefix: "linkguard:",
		},
		URL: URLConfig{
			BaseURL:            "http://localhost:8080",
			ShortCodeLen:       6,
			FallbackCodeLen:    10,
			AllocationAttempts: 10,
		},
		Rate: RateLimitConfig{
			Requests:   5,
			Window:     60 * time.Second,
			TrustProxy: true,
		},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_PATH (if any) and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile overlays the YAML document at path onto cfg.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays environment variables onto cfg.
func (c *Config) loadEnv() error {
	// App config
	setString(&c.App.Env, "APP_ENV")
	setString(&c.App.LogLevel, "LOG_LEVEL")

	// Server config
	setString(&c.Server.Host, "SERVER_HOST")
	if err := setInt(&c.Server.Port, "SERVER_PORT"); err != nil {
		return err
	}
	if err := setDuration(&c.Server.ReadTimeout, "SERVER_READ_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Server.WriteTimeout, "SERVER_WRITE_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT"); err != nil {
		return err
	}

	setString(&c.Store.Backend, "STORE_BACKEND")

	// Database config
	setString(&c.Database.Host, "DB_HOST")
	if err := setInt(&c.Database.Port, "DB_PORT"); err != nil {
		return err
	}
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.DBName, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	if err := setInt(&c.Database.MaxOpenConns, "DB_MAX_OPEN_CONNS"); err != nil {
		return err
	}
	if err := setInt(&c.Database.MaxIdleConns, "DB_MAX_IDLE_CONNS"); err != nil {
		return err
	}
	if err := setDuration(&c.Database.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME"); err != nil {
		return err
	}
	if err := setBool(&c.Database.AutoMigrate, "DB_AUTO_MIGRATE"); err != nil {
		return err
	}

	// Redis config
	setString(&c.Redis.Host, "REDIS_HOST")
	if err := setInt(&c.Redis.Port, "REDIS_PORT"); err != nil {
		return err
	}
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	if err := setInt(&c.Redis.DB, "REDIS_DB"); err != nil {
		return err
	}
	if err := setInt(&c.Redis.PoolSize, "REDIS_POOL_SIZE"); err != nil {
		return err
	}
	setString(&c.Redis.KeyPrefix, "REDIS_KEY_PREFIX")

	// Allocation config
	setString(&c.URL.BaseURL, "BASE_URL")
	if err := setInt(&c.URL.ShortCodeLen, "SHORT_CODE_LENGTH"); err != nil {
		return err
	}
	if err := setInt(&c.URL.FallbackCodeLen, "FALLBACK_CODE_LENGTH"); err != nil {
		return err
	}
	if err := setInt(&c.URL.AllocationAttempts, "ALLOCATION_ATTEMPTS"); err != nil {
		return err
	}

	// Rate limit config
	if err := setInt(&c.Rate.Requests, "RATE_LIMIT_REQUESTS"); err != nil {
		return err
	}
	if err := setDuration(&c.Rate.Window, "RATE_LIMIT_WINDOW"); err != nil {
		return err
	}
	if err := setBool(&c.Rate.TrustProxy, "RATE_LIMIT_TRUST_PROXY"); err != nil {
		return err
	}
	if err := setDuration(&c.Rate.SweepInterval, "RATE_LIMIT_SWEEP_INTERVAL"); err != nil {
		return err
	}
	if v := os.Getenv("RATE_LIMIT_TRUSTED_PROXIES"); v != "" {
		c.Rate.TrustedProxies = splitList(v)
	}

	return nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMemory, BackendPostgres, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.Rate.Requests < 1 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must be positive"))
	}
	if c.Rate.Window < time.Second {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be at least 1s"))
	}

	if c.URL.ShortCodeLen < 1 || c.URL.ShortCodeLen > 16 {
		errs = append(errs, errors.New("SHORT_CODE_LENGTH must be between 1 and 16"))
	}
	if c.URL.FallbackCodeLen <= c.URL.ShortCodeLen || c.URL.FallbackCodeLen > 16 {
		errs = append(errs, errors.New("FALLBACK_CODE_LENGTH must be longer than SHORT_CODE_LENGTH and at most 16"))
	}
	if c.URL.AllocationAttempts < 0 {
		errs = append(errs, errors.New("ALLOCATION_ATTEMPTS must not be negative"))
	}

	return errors.Join(errs...)
}

// DatabaseEnabled returns true if the PostgreSQL backend is selected.
func (c *Config) DatabaseEnabled() bool {
	return c.Store.Backend == BackendPostgres
}

// RedisEnabled returns true if the Redis backend is selected.
func (c *Config) RedisEnabled() bool {
	return c.Store.Backend == BackendRedis
}

// setString overwrites dst when key is set.
func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

// setInt overwrites dst with the integer value of key.
func setInt(dst *int, key string) error {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

// setDuration overwrites dst with the duration value of key.
func setDuration(dst *time.Duration, key string) error {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

// setBool overwrites dst with the boolean value of key.
func setBool(dst *bool, key string) error {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
