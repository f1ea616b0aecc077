package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allKeys = []string{
	"PORT", "APP_ENV", "NODE_ENV", "DB_DRIVER", "DB_PATH", "MONGODB_URI", "MONGODB_DATABASE",
	"JWT_SECRET", "TOKEN_TTL", "GITHUB_CLIENT_ID", "GITHUB_CLIENT_SECRET", "GITHUB_CALLBACK_URL",
	"AUTH_RATE_LIMIT", "AUTH_RATE_BURST", "LOG_LEVEL",
}

// clearEnv blanks every variable Load reads; t.Setenv restores them after
// the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range allKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, DriverSQLite, cfg.DBDriver)
	assert.Equal(t, "data/keepup.db", cfg.DBPath)
	assert.Equal(t, "keepup", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 1.0, cfg.AuthRateLimit)
	assert.Equal(t, 5, cfg.AuthRateBurst)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Empty(t, cfg.GitHubCallbackURL)
	assert.Equal(t, "http://localhost:8080/auth/github/callback", cfg.CallbackURL())
	assert.False(t, cfg.GitHubEnabled())
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("DB_DRIVER", "Mongo")
	t.Setenv("MONGODB_URI", "mongodb://localhost:27017")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("GITHUB_CLIENT_ID", "id")
	t.Setenv("GITHUB_CLIENT_SECRET", "secret")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, DriverMongo, cfg.DBDriver)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.GitHubEnabled())
}

func TestCallbackURLFollowsPortOverride(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	cfg.Port = 9090
	assert.Equal(t, "http://localhost:9090/auth/github/callback", cfg.CallbackURL())

	cfg.GitHubCallbackURL = "https://keepup.example.com/auth/github/callback"
	assert.Equal(t, "https://keepup.example.com/auth/github/callback", cfg.CallbackURL())
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("PORT=6000\nJWT_SECRET=from-the-dotenv-file\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port, "environment must win over .env")
	assert.Equal(t, "from-the-dotenv-file", cfg.JWTSecret)
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct{ key, value string }{
		{"PORT", "eighty"},
		{"TOKEN_TTL", "1 day"},
		{"AUTH_RATE_LIMIT", "fast"},
		{"AUTH_RATE_BURST", "1.5"},
		{"LOG_LEVEL", "loud"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(noEnvFile(t))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:          8080,
			DBDriver:      DriverSQLite,
			DBPath:        ":memory:",
			JWTSecret:     "0123456789abcdef",
			TokenTTL:      time.Hour,
			AuthRateLimit: 1,
			AuthRateBurst: 5,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "postgres" }, true},
		{"mongo without uri", func(c *Config) { c.DBDriver = DriverMongo }, true},
		{"zero burst", func(c *Config) { c.AuthRateBurst = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
