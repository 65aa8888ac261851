// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// AuthConfig controls how teacher access tokens are verified.
type AuthConfig struct {
	Issuer         string        // PLATFORM_ISSUER, also the "iss" of locally minted tokens
	Audience       string        // AUTH_AUDIENCE, required "aud" claim (default Issuer + "/api")
	JWKSURL        string        // AUTH_JWKS_URL, verify with an external key set instead of the platform key
	ExternalIssuer string        // AUTH_ISSUER, required "iss" of tokens verified with JWKSURL
	JWKSRefresh    time.Duration // AUTH_JWKS_REFRESH, minimum refresh interval for the external key set
	TokenTTL       time.Duration // AUTH_TOKEN_TTL, lifetime of minted tokens
}

// Config holds the configuration for the classroom API server.
type Config struct {
	Port         string
	SQLitePath   string
	LogLevel     string
	Env          string
	MaxBodyBytes int64

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string

	// Notifications older than NotificationRetention are pruned on
	// NotificationPruneSchedule (cron syntax). Zero retention disables pruning.
	NotificationRetention     time.Duration
	NotificationPruneSchedule string

	Auth AuthConfig
}

// IsProduction returns true when ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string { return ":" + c.Port }

// LoadFromEnv reads the configuration and applies defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:       os.Getenv("PORT"),
		SQLitePath: os.Getenv("SQLITE_PATH"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		Env:        os.Getenv("ENV"),

		NotificationPruneSchedule: os.Getenv("NOTIFICATION_PRUNE_SCHEDULE"),
		Auth: AuthConfig{
			Issuer:         os.Getenv("PLATFORM_ISSUER"),
			Audience:       os.Getenv("AUTH_AUDIENCE"),
			JWKSURL:        os.Getenv("AUTH_JWKS_URL"),
			ExternalIssuer: os.Getenv("AUTH_ISSUER"),
		},
	}

	var err error
	if cfg.MaxBodyBytes, err = intEnv("MAX_BODY_BYTES", 2_100_000); err != nil {
		return nil, err
	}
	burst, err := intEnv("RATE_LIMIT_BURST", 40)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst = int(burst)
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT_RPS: %w", err)
		}
		cfg.RateLimitRPS = f
	}
	if cfg.Auth.JWKSRefresh, err = durationEnv("AUTH_JWKS_REFRESH", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenTTL, err = durationEnv("AUTH_TOKEN_TTL", time.Hour); err != nil {
		return nil, err
	}
	if cfg.NotificationRetention, err = durationEnv("NOTIFICATION_RETENTION", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	// Defaults
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "./classroom.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.NotificationPruneSchedule == "" {
		cfg.NotificationPruneSchedule = "@hourly"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 20
	}
	if cfg.Auth.Issuer == "" {
		cfg.Auth.Issuer = "http://localhost:" + cfg.Port
	}
	if cfg.Auth.Audience == "" {
		cfg.Auth.Audience = cfg.Auth.Issuer + "/api"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	if cfg.Auth.JWKSURL != "" && cfg.Auth.ExternalIssuer == "" {
		return nil, fmt.Errorf("AUTH_ISSUER is required when AUTH_JWKS_URL is set")
	}
	if cfg.IsProduction() && len(cfg.CORSAllowedOrigins) == 1 && cfg.CORSAllowedOrigins[0] == "*" {
		return nil, fmt.Errorf("CORS wildcard (*) is not allowed in production (ENV=production)")
	}
	return cfg, nil
}

func intEnv(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
