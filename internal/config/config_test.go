package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jason-s-yu/shootingstars/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverMemory, cfg.StorageDriver)
	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, time.Second, cfg.RateLimitWindow)
	assert.Equal(t, "localhost", cfg.Postgres.Host)

	l := cfg.Limits()
	assert.Equal(t, 10, l.LightCount)
	assert.Equal(t, 5*time.Second, l.InputMaxAge)
	assert.Equal(t, 100, l.InputMaxCount)
	assert.Equal(t, 10, l.PresenceMaxEvents)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("STORAGE_DRIVER", "sqlite")
	t.Setenv("PG_HOST", "db.internal")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("INPUT_MAX_AGE", "2500ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Addr())
	assert.Equal(t, DriverSQLite, cfg.StorageDriver)
	assert.Equal(t, "db.internal", cfg.Postgres.Host)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 2500*time.Millisecond, cfg.Limits().InputMaxAge)
}

func TestLoadRejects(t *testing.T) {
	t.Run("driver", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", "cassandra")
		_, err := Load()
		assert.ErrorContains(t, err, "STORAGE_DRIVER")
	})
	t.Run("level", func(t *testing.T) {
		t.Setenv("LOG_LEVEL", "loud")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("parse", func(t *testing.T) {
		t.Setenv("PORT", "eighty")
		_, err := Load()
		assert.ErrorContains(t, err, "parse env:")
	})
}

const settingsYAML = `
controller_tokens:
  ctrl-secret:
    id: 1
presence_tokens:
  north:
    id: 1
    rows: 24
  south:
    id: 2
`

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(settingsYAML))
	require.NoError(t, err)

	ctrl, err := s.Controllers()
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.Len())

	pres, err := s.Presence()
	require.NoError(t, err)
	tn, err := pres.Lookup("north")
	require.NoError(t, err)
	assert.Equal(t, 1, tn.ID)
	assert.Equal(t, map[string]any{"id": 1, "rows": 24}, tn.Config)

	_, err = pres.Lookup("east")
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestSettingsRequireID(t *testing.T) {
	s, err := ParseSettings([]byte("presence_tokens:\n  x:\n    rows: 3\n"))
	require.NoError(t, err)
	_, err = s.Presence()
	assert.ErrorContains(t, err, "integer id")
}

func TestLoadSettingsFile(t *testing.T) {
	dir := t.TempDir()

	s, err := LoadSettings(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	reg, err := s.Controllers()
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())

	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(settingsYAML), 0o600))
	s, err = LoadSettings(path)
	require.NoError(t, err)
	assert.Len(t, s.PresenceTokens, 2)

	require.NoError(t, os.WriteFile(path, []byte("controller_tokens: [1, 2"), 0o600))
	_, err = LoadSettings(path)
	assert.Error(t, err)
}
