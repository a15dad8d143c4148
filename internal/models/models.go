// Package models defines the domain entities shared by the deployment
// manager server and its storage backends.
package models

import "time"

// ClientStatus is the liveness/health state the server believes a client
// is currently in.
type ClientStatus string

const (
	StatusOnline  ClientStatus = "online"
	StatusOffline ClientStatus = "offline"
	StatusError   ClientStatus = "error"
)

// ClientConfig is per-client deployment configuration, stored as JSON
// alongside the client row and handed back to the agent on check-in.
// All fields are optional; a zero value means "use the agent's own
// environment default".
type ClientConfig struct {
	ServiceDir         string `json:"service_dir,omitempty"`
	RestartCommand     string `json:"restart_command,omitempty"`
	PreUpdateScript    string `json:"pre_update_script,omitempty"`
	PostUpdateScript   string `json:"post_update_script,omitempty"`
	HealthCheckURL     string `json:"health_check_url,omitempty"`
	HealthCheckTimeout int    `json:"health_check_timeout,omitempty"` // seconds
	RollbackOnFailure  *bool  `json:"rollback_on_failure,omitempty"`
}

// Client is a registered deployment target: one running instance of the
// agent, identified to the server by its bearer token (APIKey).
type Client struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	APIKey         string       `json:"api_key,omitempty"`
	CurrentVersion *string      `json:"current_version,omitempty"`
	TargetVersion  *string      `json:"target_version,omitempty"`
	LastSeen       *time.Time   `json:"last_seen,omitempty"`
	Status         ClientStatus `json:"status"`
	Config         ClientConfig `json:"config"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Version is one uploaded, immutable artifact in the version catalog.
type Version struct {
	ID           string    `json:"id"`
	Version      string    `json:"version"`
	ArtifactPath string    `json:"-"`
	ArtifactSize int64     `json:"artifact_size"`
	Checksum     string    `json:"checksum"`
	ReleaseNotes string    `json:"release_notes,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UpdateLogStatus is the lifecycle state of a single deployment attempt.
type UpdateLogStatus string

const (
	UpdateStatusPending     UpdateLogStatus = "pending"
	UpdateStatusDownloading UpdateLogStatus = "downloading"
	UpdateStatusInstalling  UpdateLogStatus = "installing"
	UpdateStatusCompleted   UpdateLogStatus = "completed"
	UpdateStatusFailed      UpdateLogStatus = "failed"
	UpdateStatusRolledBack  UpdateLogStatus = "rolled_back"
)

// UpdateLog records one deployment attempt for a client, from the moment
// the server hands out a target version to the moment the agent reports
// success or failure.
type UpdateLog struct {
	ID           string          `json:"id"`
	ClientID     string          `json:"client_id"`
	FromVersion  *string         `json:"from_version,omitempty"`
	ToVersion    string          `json:"to_version"`
	Status       UpdateLogStatus `json:"status"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// IsTerminal reports whether the status will never change again.
func (s UpdateLogStatus) IsTerminal() bool {
	switch s {
	case UpdateStatusCompleted, UpdateStatusFailed, UpdateStatusRolledBack:
		return true
	default:
		return false
	}
}
