// Package config loads runtime settings from the environment, with an
// optional .env file for local development.
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

const EnvProduction = "production"

var DefaultProtectedPaths = []string{
	"/dashboard",
	"/pages/income",
	"/pages/expense",
	"/pages/budgeting",
	"/pages/categories",
	"/pages/reports",
	"/pages/settings",
}

type Config struct {
	Env  string
	Port string

	DatabaseURL            string
	DBMaxOpenConns         int
	DBMaxIdleConns         int
	DBConnMaxLifetime      time.Duration
	DBConnMaxIdleTime      time.Duration
	RunMigrationsOnStartup bool

	// Signing secrets, one per token role. They must differ.
	AccessTokenSecret  string
	RefreshTokenSecret string

	SentryDSN  string
	CronSecret string

	LoginRateLimitMax    int
	LoginRateLimitWindow time.Duration

	// TrustProxyHeaders takes the client address from X-Forwarded-For.
	// Vercel always sets it, so it defaults on there.
	TrustProxyHeaders bool

	LoginPath          string
	ProtectedPaths     []string
	StaticDir          string
	CORSAllowedOrigins []string

	TokenDenylistEnabled   bool
	TokenDenylistRetention time.Duration
	CleanupBatchSize       int
}

type Options struct {
	LoadDotEnv bool
}

// Load reads the configuration. Missing required values are reported
// together in one error.
func Load(options Options) (*Config, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg := &Config{
		Env:                    envOrDefault("APP_ENV", "development"),
		Port:                   envOrDefault("PORT", "8080"),
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		DBMaxOpenConns:         envIntOrDefault("DB_MAX_OPEN_CONNS", 10),
		DBMaxIdleConns:         envIntOrDefault("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime:      envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30),
		DBConnMaxIdleTime:      envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
		RunMigrationsOnStartup: EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		AccessTokenSecret:      strings.TrimSpace(os.Getenv("JWT_SECRET_ACCESS")),
		RefreshTokenSecret:     strings.TrimSpace(os.Getenv("JWT_SECRET_REFRESH")),
		SentryDSN:              strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		CronSecret:             strings.TrimSpace(os.Getenv("CRON_SECRET")),
		LoginRateLimitMax:      envIntOrDefault("LOGIN_RATE_LIMIT_MAX", 10),
		LoginRateLimitWindow:   envSecondsOrDefault("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 60),
		TrustProxyHeaders:      EnvBoolOrDefault("TRUST_PROXY_HEADERS", strings.TrimSpace(os.Getenv("VERCEL")) != ""),
		LoginPath:              envOrDefault("LOGIN_PATH", "/auth/login"),
		ProtectedPaths:         envListOrDefault("PROTECTED_PATHS", DefaultProtectedPaths),
		StaticDir:              strings.TrimSpace(os.Getenv("STATIC_DIR")),
		CORSAllowedOrigins:     envListOrDefault("CORS_ALLOWED_ORIGINS", nil),
		TokenDenylistEnabled:   EnvBoolOrDefault("TOKEN_DENYLIST_ENABLED", false),
		TokenDenylistRetention: envDaysOrDefault("TOKEN_DENYLIST_RETENTION_DAYS", 1),
		CleanupBatchSize:       envIntOrDefault("CLEANUP_BATCH_SIZE", 500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Errorf("missing required env: DATABASE_URL"))
	}
	if c.AccessTokenSecret == "" {
		errs = append(errs, fmt.Errorf("missing required env: JWT_SECRET_ACCESS"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, fmt.Errorf("missing required env: JWT_SECRET_REFRESH"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, fmt.Errorf("JWT_SECRET_ACCESS and JWT_SECRET_REFRESH must differ"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

func (c *Config) Addr() string {
	return ":" + c.Port
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func envDaysOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * 24 * time.Hour
}

func envSecondsOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Second
}

func envListOrDefault(name string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}

	items := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
