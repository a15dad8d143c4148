// Package agent holds the deployment manager agent's configuration,
// loaded directly from environment variables (the agent runs on
// managed hosts without a config file or viper layering).
package agent

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the agent's runtime settings.
type Config struct {
	ServerURL  string
	APIKey     string
	ServiceDir string
	BackupDir  string

	PollInterval       time.Duration
	RestartCommand     string
	HealthCheckCommand string
	HealthCheckTimeout time.Duration

	// LogFile, if set, routes logs through a rotating file (lumberjack)
	// instead of stdout, since the agent runs as a long-lived daemon.
	LogFile string
}

const (
	defaultPollIntervalSecs       = 30
	defaultRestartCommand         = "pm2 restart all"
	defaultServiceDir             = "./service"
	defaultBackupDir              = "./backups"
	defaultHealthCheckTimeoutSecs = 60
)

// Load reads the full daemon configuration from the environment.
// DM_SERVER_URL and DM_API_KEY are required.
func Load() (*Config, error) {
	cfg := LoadOptional()

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("missing required environment variable: DM_SERVER_URL")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("missing required environment variable: DM_API_KEY")
	}
	return cfg, nil
}

// LoadOptional reads the configuration from the environment without
// requiring DM_SERVER_URL/DM_API_KEY — used by the apply and status
// subcommands, which operate on the local service directory without
// talking to a server.
func LoadOptional() *Config {
	cfg := &Config{
		ServerURL:          os.Getenv("DM_SERVER_URL"),
		APIKey:             os.Getenv("DM_API_KEY"),
		ServiceDir:         defaultServiceDir,
		BackupDir:          defaultBackupDir,
		PollInterval:       defaultPollIntervalSecs * time.Second,
		RestartCommand:     defaultRestartCommand,
		HealthCheckTimeout: defaultHealthCheckTimeoutSecs * time.Second,
	}

	if v := os.Getenv("DM_SERVICE_DIR"); v != "" {
		cfg.ServiceDir = v
	}
	if v := os.Getenv("DM_BACKUP_DIR"); v != "" {
		cfg.BackupDir = v
	}
	if v := os.Getenv("DM_RESTART_COMMAND"); v != "" {
		cfg.RestartCommand = v
	}
	if v := os.Getenv("DM_HEALTH_CHECK_COMMAND"); v != "" {
		cfg.HealthCheckCommand = v
	}
	if v := os.Getenv("DM_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("DM_POLL_INTERVAL"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.PollInterval = time.Duration(secs) * time.Second
		}
	}

	return cfg
}
