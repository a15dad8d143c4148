package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetViper clears viper's global state between tests.
// Note: environment variables are read at runtime via AutomaticEnv,
// so we also unset any vars we set in tests to avoid cross-test pollution.
func resetViper() {
	viper.Reset()
}

// unsetEnvKeys unsets provided environment variable keys.
func unsetEnvKeys(keys ...string) {
	for _, k := range keys {
		_ = os.Unsetenv(k)
	}
}

// writeTempYAML writes a temporary YAML file with given content and returns its path.
func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	err := os.WriteFile(path, []byte(content), 0o600)
	require.NoError(t, err)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()
	unsetEnvKeys(
		"DMS_SERVER_PORT", "SERVER_PORT",
		"DMS_DATABASE_HOST", "DATABASE_URL",
		"ARTIFACT_DIR",
	)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, "deployment_manager", cfg.Database.Database)
	assert.Equal(t, "./artifacts", cfg.Artifact.Dir)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_File(t *testing.T) {
	resetViper()
	unsetEnvKeys("DMS_SERVER_PORT", "SERVER_PORT", "DATABASE_URL", "ARTIFACT_DIR")

	yaml := `
server:
  port: 9090
  host: "127.0.0.1"
database:
  host: "db.local"
  port: 5433
  database: "testdb"
  username: "user"
  password: "pass"
  ssl_mode: "disable"
artifact:
  dir: "/srv/artifacts"
log:
  level: "debug"
`
	path := writeTempYAML(t, yaml)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "db.local", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "testdb", cfg.Database.Database)
	assert.Equal(t, "user", cfg.Database.Username)
	assert.Equal(t, "pass", cfg.Database.Password)
	assert.Equal(t, "disable", cfg.Database.SSLMode)

	assert.Equal(t, "/srv/artifacts", cfg.Artifact.Dir)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	resetViper()
	yaml := `
server:
  port: 8080
database:
  host: "file-db.local"
`
	path := writeTempYAML(t, yaml)

	require.NoError(t, os.Setenv("DMS_SERVER_PORT", "9091"))
	require.NoError(t, os.Setenv("DMS_DATABASE_HOST", "env-db.local"))
	t.Cleanup(func() {
		unsetEnvKeys("DMS_SERVER_PORT", "DMS_DATABASE_HOST")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9091, cfg.Server.Port, "env should override file")
	assert.Equal(t, "env-db.local", cfg.Database.Host, "env should override file")
}

func TestLoad_BareOverrides(t *testing.T) {
	resetViper()
	require.NoError(t, os.Setenv("DATABASE_URL", "postgres://u:p@host:5432/db"))
	require.NoError(t, os.Setenv("SERVER_PORT", "7070"))
	require.NoError(t, os.Setenv("ARTIFACT_DIR", "/var/lib/dms/artifacts"))
	t.Cleanup(func() {
		unsetEnvKeys("DATABASE_URL", "SERVER_PORT", "ARTIFACT_DIR")
	})

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://u:p@host:5432/db", cfg.Database.URL)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/var/lib/dms/artifacts", cfg.Artifact.Dir)
}

func TestLoad_InvalidYAML(t *testing.T) {
	resetViper()
	unsetEnvKeys("DMS_SERVER_PORT", "SERVER_PORT")

	invalid := `
server:
  port: : invalid
`
	path := writeTempYAML(t, invalid)

	cfg, err := Load(path)
	require.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoad_ValidationError(t *testing.T) {
	resetViper()
	unsetEnvKeys("DMS_SERVER_PORT", "SERVER_PORT")

	yaml := `
server:
  port: -1
`
	path := writeTempYAML(t, yaml)

	cfg, err := Load(path)
	require.Error(t, err, "validation should fail for invalid server.port")
	assert.Nil(t, cfg)
}

func TestDatabaseConfig_ToPostgresConfig(t *testing.T) {
	d := DatabaseConfig{
		Host:           "db.local",
		Port:           5433,
		Database:       "testdb",
		Username:       "user",
		Password:       "pass",
		SSLMode:        "require",
		MaxConnections: 30,
		MinConnections: 5,
	}

	pc := d.ToPostgresConfig()
	assert.Equal(t, "db.local", pc.Host)
	assert.Equal(t, 5433, pc.Port)
	assert.Equal(t, "testdb", pc.Database)
	assert.Equal(t, "user", pc.User)
	assert.Equal(t, "pass", pc.Password)
	assert.Equal(t, "require", pc.SSLMode)
	assert.Equal(t, int32(30), pc.MaxConns)
	assert.Equal(t, int32(5), pc.MinConns)
}
