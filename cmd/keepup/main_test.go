package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keepup/keepup-api/internal/config"
	"github.com/keepup/keepup-api/internal/repository/sqlite"
	"github.com/keepup/keepup-api/internal/server"
	"github.com/keepup/keepup-api/pkg/client"
)

// run executes the root command with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// startAPI serves the API over the SQLite database at dbPath.
func startAPI(t *testing.T, dbPath string) *httptest.Server {
	t.Helper()
	db, err := sqlite.New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Port:          8080,
		Env:           config.EnvTest,
		DBDriver:      config.DriverSQLite,
		DBPath:        dbPath,
		JWTSecret:     "cli-test-secret-1234567890",
		TokenTTL:      time.Hour,
		AuthRateLimit: 1000,
		AuthRateBurst: 1000,
		LogLevel:      slog.LevelError,
	}
	srv, err := server.New(cfg, db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "seed", "login", "logout", "feed", "post"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, cmd.Name())
		})
	}
}

func TestLoginFeedPost(t *testing.T) {
	ts := startAPI(t, ":memory:")
	tokenFile := filepath.Join(t.TempDir(), "keepup", "token")
	common := []string{"--api", ts.URL, "--token-file", tokenFile}

	c, err := client.New(ts.URL)
	require.NoError(t, err)
	_, err = c.Register(context.Background(), client.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
	})
	require.NoError(t, err)

	t.Run("post needs a login", func(t *testing.T) {
		_, err := run(t, append(common, "post", "hello")...)
		assert.ErrorIs(t, err, errNotLoggedIn)
	})

	t.Run("login needs a password", func(t *testing.T) {
		t.Setenv("KEEPUP_PASSWORD", "")
		_, err := run(t, append(common, "login", "alice")...)
		assert.ErrorContains(t, err, "password required")
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := run(t, append(common, "login", "alice", "--password", "nope-nope-nope")...)
		require.Error(t, err)
		assert.Equal(t, 401, client.StatusCode(err))
		assert.NoFileExists(t, tokenFile)
	})

	out, err := run(t, append(common, "login", "alice", "--password", "password123")...)
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as alice")

	info, err := os.Stat(tokenFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	out, err = run(t, append(common, "post", "morning", "run", "--media", "https://img.example.com/run.jpg")...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "posted "))

	out, err = run(t, append(common, "feed", "--scope", "friends")...)
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "morning run")

	_, err = run(t, append(common, "feed", "--scope", "everyone")...)
	assert.ErrorContains(t, err, "invalid --scope")

	out, err = run(t, append(common, "logout")...)
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")
	assert.NoFileExists(t, tokenFile)

	// Anonymous global feed still works.
	out, err = run(t, append(common, "feed")...)
	require.NoError(t, err)
	assert.Contains(t, out, "morning run")
}

func TestStaleTokenIsForgotten(t *testing.T) {
	ts := startAPI(t, ":memory:")
	tokenFile := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(tokenFile, []byte("not-a-jwt\n"), 0o600))

	out, err := run(t, "--api", ts.URL, "--token-file", tokenFile, "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "no posts")
	assert.NoFileExists(t, tokenFile)
}

func TestSeedThenBrowse(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "data", "keepup.db")
	envFile := filepath.Join(dir, "missing.env")

	t.Setenv("APP_ENV", config.EnvTest)
	t.Setenv("DB_DRIVER", config.DriverSQLite)
	t.Setenv("DB_PATH", dbPath)
	t.Setenv("JWT_SECRET", "cli-test-secret-1234567890")
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "--env-file", envFile, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "- Users: 3")
	assert.Contains(t, out, "- Posts: 4")

	out, err = run(t, "--env-file", envFile, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "already present")

	ts := startAPI(t, dbPath)
	tokenFile := filepath.Join(dir, "token")
	common := []string{"--api", ts.URL, "--token-file", tokenFile}

	_, err = run(t, append(common, "login", "jane@example.com", "--password", "password123")...)
	require.NoError(t, err)

	out, err = run(t, append(common, "feed", "--scope", "friends", "-n", "2")...)
	require.NoError(t, err)
	// Header plus two rows.
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"line one\nline  two", 20, "line one line two"},
		{"abcdefghij", 5, "abcd…"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, excerpt(tt.in, tt.n))
	}
}
