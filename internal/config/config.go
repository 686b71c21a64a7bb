// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Fixed defaults of the authentication lifecycle
const (
	DefaultChallengeTTL   = 5 * time.Minute
	DefaultAccessTTL      = time.Hour
	DefaultRefreshTTL     = 120 * time.Hour // 5 days
	DefaultSweepInterval  = time.Minute
	DefaultAppName        = "Web3 Invoicing"
	DefaultHTTPAddr       = ":9000"
	DefaultLogLevel       = "info"
	DefaultAllowedOrigins = "*"
)

// ErrMissingSecret is returned when JWT_SECRET is not set
var ErrMissingSecret = errors.New("JWT_SECRET is required")

type Config struct {
	HTTPAddr       string
	LogLevel       string
	AppName        string
	AllowedOrigins []string

	RedisURL    string // empty: in-memory stores
	DatabaseURL string // empty: in-memory wallet repository

	JWTSecret     string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	ChallengeTTL  time.Duration
	SweepInterval time.Duration
}

// Load reads envFile (if present) and then the environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", DefaultHTTPAddr),
		LogLevel:       getEnv("LOG_LEVEL", DefaultLogLevel),
		AppName:        getEnv("APP_NAME", DefaultAppName),
		AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", DefaultAllowedOrigins)),
		RedisURL:       os.Getenv("REDIS_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
	}

	var err error
	if cfg.AccessTTL, err = getEnvAsDuration("ACCESS_TOKEN_TTL", DefaultAccessTTL); err != nil {
		return nil, err
	}
	if cfg.RefreshTTL, err = getEnvAsDuration("REFRESH_TOKEN_TTL", DefaultRefreshTTL); err != nil {
		return nil, err
	}
	if cfg.ChallengeTTL, err = getEnvAsDuration("CHALLENGE_TTL", DefaultChallengeTTL); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = getEnvAsDuration("CHALLENGE_SWEEP_INTERVAL", DefaultSweepInterval); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings required to serve traffic
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return ErrMissingSecret
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.ChallengeTTL <= 0 {
		return fmt.Errorf("token and challenge TTLs must be positive")
	}
	if c.RefreshTTL < c.AccessTTL {
		return fmt.Errorf("REFRESH_TOKEN_TTL (%s) must not be shorter than ACCESS_TOKEN_TTL (%s)", c.RefreshTTL, c.AccessTTL)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
