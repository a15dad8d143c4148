package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DM_SERVER_URL", "DM_API_KEY", "DM_POLL_INTERVAL",
		"DM_SERVICE_DIR", "DM_BACKUP_DIR", "DM_RESTART_COMMAND", "DM_HEALTH_CHECK_COMMAND",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_RequiresServerURLAndAPIKey(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	require.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DM_SERVER_URL", "https://dms.example.com")
	t.Setenv("DM_API_KEY", "abc123")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://dms.example.com", cfg.ServerURL)
	assert.Equal(t, "abc123", cfg.APIKey)
	assert.Equal(t, defaultServiceDir, cfg.ServiceDir)
	assert.Equal(t, defaultBackupDir, cfg.BackupDir)
	assert.Equal(t, defaultRestartCommand, cfg.RestartCommand)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Empty(t, cfg.HealthCheckCommand)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DM_SERVER_URL", "https://dms.example.com")
	t.Setenv("DM_API_KEY", "abc123")
	t.Setenv("DM_POLL_INTERVAL", "15")
	t.Setenv("DM_SERVICE_DIR", "/opt/app")
	t.Setenv("DM_BACKUP_DIR", "/opt/backups")
	t.Setenv("DM_RESTART_COMMAND", "systemctl restart app")
	t.Setenv("DM_HEALTH_CHECK_COMMAND", "curl -f localhost/health")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, "/opt/app", cfg.ServiceDir)
	assert.Equal(t, "/opt/backups", cfg.BackupDir)
	assert.Equal(t, "systemctl restart app", cfg.RestartCommand)
	assert.Equal(t, "curl -f localhost/health", cfg.HealthCheckCommand)
}

func TestLoad_InvalidPollIntervalIgnored(t *testing.T) {
	clearEnv(t)
	t.Setenv("DM_SERVER_URL", "https://dms.example.com")
	t.Setenv("DM_API_KEY", "abc123")
	t.Setenv("DM_POLL_INTERVAL", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
}

func TestLoadOptional_NoServerURLRequired(t *testing.T) {
	clearEnv(t)
	cfg := LoadOptional()
	assert.Empty(t, cfg.ServerURL)
	assert.Equal(t, defaultServiceDir, cfg.ServiceDir)
}
