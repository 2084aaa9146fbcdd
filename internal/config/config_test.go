package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbdemo/showcase/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "https://dbdemo.ngrok.app/api", cfg.Remote.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Zero(t, cfg.Poll.MaxAttempts)
	assert.Zero(t, cfg.Poll.MaxDuration)
	assert.Equal(t, "fixed", cfg.Poll.Backoff)
	assert.Equal(t, 10*time.Second, cfg.Carousel.Interval)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.False(t, cfg.Storage.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("REMOTE_BASE_URL", "http://localhost:9000/api/")
	t.Setenv("POLL_INTERVAL", "500ms")
	t.Setenv("POLL_MAX_ATTEMPTS", "12")
	t.Setenv("POLL_BACKOFF", "exponential")
	t.Setenv("SESSION_BACKEND", "REDIS")

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/api", cfg.Remote.BaseURL)
	assert.Equal(t, 500*time.Millisecond, cfg.Poll.Interval)
	assert.Equal(t, 12, cfg.Poll.MaxAttempts)
	assert.Equal(t, "exponential", cfg.Poll.Backoff)
	assert.Equal(t, "redis", cfg.Session.Backend)
}

func TestLoad_SecretFile(t *testing.T) {
	chdir(t, t.TempDir())
	secret := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(secret, []byte("s3cr3t\n"), 0o600))

	t.Setenv("STORAGE_SECRET_ACCESS_KEY", "")
	t.Setenv("STORAGE_SECRET_ACCESS_KEY_FILE", secret)
	t.Setenv("STORAGE_ACCESS_KEY_ID", "key")
	t.Setenv("STORAGE_BUCKET_NAME", "results")

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "s3cr3t", cfg.Storage.SecretAccessKey)
	assert.True(t, cfg.Storage.Enabled())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "server:\n  port: \"9100\"\npoll:\n  max_duration: 5m\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))

	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, 5*time.Minute, cfg.Poll.MaxDuration)
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
