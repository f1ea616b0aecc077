// Package config loads server configuration from the environment.
//
// Values come from the process environment, optionally seeded from a .env
// file (github.com/joho/godotenv). Variables already set in the
// environment win over the file, so a deployment can override any line
// of a checked-in .env.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"

	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config is the full runtime configuration.
type Config struct {
	Port int
	Env  string

	DBDriver      string
	DBPath        string
	MongoURI      string
	MongoDatabase string

	JWTSecret string
	TokenTTL  time.Duration

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	// Per-IP token bucket for the register/login endpoints.
	AuthRateLimit float64
	AuthRateBurst int

	LogLevel slog.Level
}

// Load reads the given .env files (".env" when none are named), then the
// environment. Missing files are ignored. Malformed values are errors;
// semantic checks are left to Validate.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}

	cfg := &Config{
		Env:                firstNonEmpty(os.Getenv("APP_ENV"), os.Getenv("NODE_ENV"), EnvDevelopment),
		DBDriver:           strings.ToLower(getenv("DB_DRIVER", DriverSQLite)),
		DBPath:             getenv("DB_PATH", "data/keepup.db"),
		MongoURI:           os.Getenv("MONGODB_URI"),
		MongoDatabase:      getenv("MONGODB_DATABASE", "keepup"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
	}

	var err error
	if cfg.Port, err = intVar("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = durationVar("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = floatVar("AUTH_RATE_LIMIT", 1); err != nil {
		return nil, err
	}
	if cfg.AuthRateBurst, err = intVar("AUTH_RATE_BURST", 5); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = ParseLevel(getenv("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the HTTP server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.DBDriver {
	case DriverSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required for the sqlite driver"))
		}
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, mongo", c.DBDriver))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("JWT_SECRET must be set to at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("TOKEN_TTL must be positive"))
	}
	if c.AuthRateLimit <= 0 || c.AuthRateBurst <= 0 {
		errs = append(errs, errors.New("AUTH_RATE_LIMIT and AUTH_RATE_BURST must be positive"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GitHubEnabled reports whether GitHub login routes should be mounted.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// CallbackURL is GITHUB_CALLBACK_URL, or the local callback on the final
// Port when unset. It is derived on use so a --port override is honoured.
func (c *Config) CallbackURL() string {
	if c.GitHubCallbackURL != "" {
		return c.GitHubCallbackURL
	}
	return fmt.Sprintf("http://localhost:%d/auth/github/callback", c.Port)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: invalid log level %q", s)
	}
	return l, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func intVar(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not an integer", key, v)
	}
	return n, nil
}

func floatVar(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a number", key, v)
	}
	return f, nil
}

func durationVar(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a duration", key, v)
	}
	return d, nil
}
