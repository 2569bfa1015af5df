package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	CORS      CORSConfig
	Log       LogConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
	Invoicing InvoicingConfig
}

type AppConfig struct {
	Env string
}

// ServerConfig configures the HTTP listener. TrustProxyHeaders takes the
// client address from X-Forwarded-For/X-Real-IP and is only safe behind a
// proxy that overwrites them.
type ServerConfig struct {
	Host              string
	Port              int
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	TrustProxyHeaders bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	LogLevel string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig configures the billing policy cache. The memory cache is local
// to one process and is refused in production.
type CacheConfig struct {
	Enabled   bool
	Type      string // memory, redis
	PolicyTTL time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

type LogConfig struct {
	Level  string
	Format string // json, console
}

type MetricsConfig struct {
	Enabled bool
}

type RateLimitConfig struct {
	RequestsPerMinute int
}

// AuthConfig configures bearer token verification.
//
// DevBypass lets requests without a credential run as a fixed principal. It is
// refused when App.Env is production.
type AuthConfig struct {
	JWTSecret   string
	Issuer      string
	Audience    string
	DevBypass   bool
	DevUserID   string
	DevTenantID string
	DevRole     string
}

type InvoicingConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

const EnvProduction = "production"

// Load reads configuration from the environment, loading a .env file first if
// one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	redisPort, err := getEnvInt("REDIS_PORT", 6379)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvInt("RATE_LIMIT_PER_MINUTE", 300)
	if err != nil {
		return nil, err
	}
	retries, err := getEnvInt("INVOICING_RETRY_COUNT", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App: AppConfig{
			Env: getEnv("APP_ENV", "development"),
		},
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         port,
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),

			TrustProxyHeaders: getEnvBool("SERVER_TRUST_PROXY_HEADERS", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "clinic_gate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Cache: CacheConfig{
			Enabled:   getEnvBool("CACHE_ENABLED", false),
			Type:      getEnv("CACHE_TYPE", "redis"),
			PolicyTTL: getEnvDuration("CACHE_POLICY_TTL", 5*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "OPTIONS"}),
			AllowedHeaders: getEnvList("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type", "X-Act-As-Tenant"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: rateLimit,
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("AUTH_JWT_SECRET", ""),
			Issuer:      getEnv("AUTH_JWT_ISSUER", ""),
			Audience:    getEnv("AUTH_JWT_AUDIENCE", ""),
			DevBypass:   getEnvBool("AUTH_DEV_BYPASS", false),
			DevUserID:   getEnv("AUTH_DEV_USER_ID", ""),
			DevTenantID: getEnv("AUTH_DEV_TENANT_ID", ""),
			DevRole:     getEnv("AUTH_DEV_ROLE", "CLINIC_ADMIN"),
		},
		Invoicing: InvoicingConfig{
			BaseURL:    getEnv("INVOICING_BASE_URL", ""),
			APIKey:     getEnv("INVOICING_API_KEY", ""),
			Timeout:    getEnvDuration("INVOICING_TIMEOUT", 10*time.Second),
			RetryCount: retries,
		},
	}

	return cfg, nil
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Host == "" || c.Database.DBName == "" {
		return errors.New("database host and name are required")
	}
	if c.Cache.Enabled && c.Cache.Type != "memory" && c.Cache.Type != "redis" {
		return fmt.Errorf("unsupported cache type: %s", c.Cache.Type)
	}
	if c.Cache.Enabled && c.Cache.Type == "memory" && c.IsProduction() {
		return errors.New("CACHE_TYPE=memory cannot be used in production")
	}
	if c.Auth.DevBypass && c.IsProduction() {
		return errors.New("AUTH_DEV_BYPASS cannot be enabled in production")
	}
	if !c.Auth.DevBypass && c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	if c.Auth.DevBypass && c.Auth.DevUserID == "" {
		return errors.New("AUTH_DEV_USER_ID is required when AUTH_DEV_BYPASS is enabled")
	}
	if c.Invoicing.BaseURL == "" {
		return errors.New("INVOICING_BASE_URL is required")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, EnvProduction)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
