package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	// Empty values are ignored by the loader, so this restores defaults.
	for key := range defaults {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "@every 1m", cfg.ReconcileSchedule)
	assert.True(t, cfg.RunMigrations)
	assert.False(t, cfg.AlertingEnabled())
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("RECONCILE_SCHEDULE", "@every 30s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, "@every 30s", cfg.ReconcileSchedule)
}

func TestLoadFromEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "app.env")
	require.NoError(t, os.WriteFile(path, []byte("LOG_LEVEL=debug\nSMTP_HOST=smtp.example.org\nSENDER_EMAIL=noreply@example.org\nALERT_EMAIL=ops@example.org\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.AlertingEnabled())
	assert.Equal(t, "ops@example.org", cfg.AlertEmail)
}

func TestLoadRequiresAlertAddresses(t *testing.T) {
	clearEnv(t)
	t.Setenv("SMTP_HOST", "smtp.example.org")

	_, err := Load("")
	assert.Error(t, err)
}
