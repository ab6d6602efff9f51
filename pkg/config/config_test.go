package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/subscription-radar/pkg/storage"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "BRL", cfg.App.Currency)
	assert.Equal(t, 9, cfg.App.ReminderHour)
	assert.Equal(t, []int{7, 3, 1}, cfg.App.ReminderOffsets)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.False(t, cfg.Push.Enabled)
	assert.Equal(t, 3, cfg.Digest.WindowFrom)
	assert.Equal(t, 5, cfg.Digest.WindowTo)
	assert.Equal(t, 100*time.Millisecond, cfg.Notifications.RetryBase)
	assert.Equal(t, "@every 1m", cfg.Notifications.SyncSpec)

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RADAR_CURRENCY", "eur")
	t.Setenv("RADAR_TIMEZONE", "America/Sao_Paulo")
	t.Setenv("RADAR_REMINDER_OFFSETS", "5, 2")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("PUSH_ENABLED", "true")
	t.Setenv("PUSH_TOKEN", "ExponentPushToken[abc]")
	t.Setenv("PUSH_BREAKER_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.App.Currency)
	assert.Equal(t, []int{5, 2}, cfg.App.ReminderOffsets)
	assert.Equal(t, 30*time.Second, cfg.Push.BreakerTimeout)

	loc, err := cfg.App.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", loc.String())

	opts := cfg.Storage.StorageOptions()
	assert.Equal(t, storage.StorageTypeSQLite, opts.Type)
	assert.Equal(t, "./data/radar.db", opts.SQLitePath)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown currency", map[string]string{"RADAR_CURRENCY": "ZZZ"}},
		{"bad timezone", map[string]string{"RADAR_TIMEZONE": "Mars/Olympus"}},
		{"hour out of range", map[string]string{"RADAR_REMINDER_HOUR": "24"}},
		{"minute out of range", map[string]string{"RADAR_REMINDER_MINUTE": "-1"}},
		{"negative offset", map[string]string{"RADAR_REMINDER_OFFSETS": "3,-1"}},
		{"inverted digest window", map[string]string{"DIGEST_WINDOW_FROM": "5", "DIGEST_WINDOW_TO": "3"}},
		{"push without token", map[string]string{"PUSH_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radar.env")
	require.NoError(t, os.WriteFile(path, []byte("DIGEST_DAILY_SPEC=30 8 * * *\nLOG_FORMAT=json\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("DIGEST_DAILY_SPEC")
		os.Unsetenv("LOG_FORMAT")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "30 8 * * *", cfg.Digest.DailySpec)
	assert.Equal(t, "json", cfg.Logging.Format)

	_, err = Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestGetEnvAsIntSlice(t *testing.T) {
	t.Setenv("OFFSETS", "7,x")
	assert.Equal(t, []int{1}, getEnvAsIntSlice("OFFSETS", []int{1}), "bad element falls back")

	t.Setenv("OFFSETS", " 10 , 2 ")
	assert.Equal(t, []int{10, 2}, getEnvAsIntSlice("OFFSETS", nil))
}
