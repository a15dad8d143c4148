package storage

import (
	"context"

	"github.com/sam-dm/deployment-manager/internal/models"
)

// ClientStore persists registered clients and their deployment state.
type ClientStore interface {
	RegisterClient(ctx context.Context, name string, apiKey string, cfg models.ClientConfig) (*models.Client, error)
	UpdateClientConfig(ctx context.Context, id string, cfg models.ClientConfig) (*models.Client, error)
	GetClientByAPIKey(ctx context.Context, apiKey string) (*models.Client, error)
	GetClientByID(ctx context.Context, id string) (*models.Client, error)
	GetAllClients(ctx context.Context) ([]*models.Client, error)

	// UpdateClientCheckin persists a check-in: last_seen, status, and
	// current_version (only overwritten when currentVersion != nil, per
	// the server-never-downgrades-on-silence invariant).
	UpdateClientCheckin(ctx context.Context, id string, currentVersion *string, status models.ClientStatus) error

	// SetClientTargetVersion assigns a desired version to a client (a
	// deploy request). Pass nil to clear it.
	SetClientTargetVersion(ctx context.Context, id string, targetVersion *string) error

	// MarkSuccess clears target_version and sets current_version after a
	// successful update report; MarkFailure only flips status to error.
	MarkSuccess(ctx context.Context, id string, version string) error
	MarkFailure(ctx context.Context, id string) error
}

// VersionStore persists the immutable version catalog.
type VersionStore interface {
	CreateVersion(ctx context.Context, v *models.Version) error
	GetVersion(ctx context.Context, version string) (*models.Version, error)
	GetVersionByID(ctx context.Context, id string) (*models.Version, error)
	GetAllVersions(ctx context.Context) ([]*models.Version, error)
}

// UpdateLogStore persists one row per deployment attempt.
type UpdateLogStore interface {
	CreateUpdateLog(ctx context.Context, log *models.UpdateLog) error
	UpdateLogStatus(ctx context.Context, id string, status models.UpdateLogStatus, errMsg *string) error
	ListUpdateLogsForClient(ctx context.Context, clientID string, limit int) ([]*models.UpdateLog, error)
}

// Store bundles all three repositories; the postgres and sqlite backends
// each implement it against a single connection/pool.
type Store interface {
	ClientStore
	VersionStore
	UpdateLogStore

	// WithTx runs fn in a single transaction; store methods called with
	// fn's ctx join that transaction instead of opening a new one. An
	// error from fn rolls back, otherwise WithTx commits. Used to keep a
	// client's observed state and its UpdateLog row consistent when both
	// must change together.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	Close() error
}
