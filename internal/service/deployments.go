// Package service implements the deployment manager's core state
// machine: client registration, check-in directives, and update result
// reconciliation, sitting between the HTTP handlers and the storage
// layer the way the teacher's business package sits between its
// handlers and infrastructure repositories.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/sam-dm/deployment-manager/internal/cache"
	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/semverx"
	"github.com/sam-dm/deployment-manager/internal/storage"
	"github.com/sam-dm/deployment-manager/internal/storage/artifacts"
)

// Deployments is the service layer wiring the version catalog, client
// registry, and check-in/result state machine together.
type Deployments struct {
	Store     storage.Store
	Artifacts *artifacts.Store
	Versions  *cache.VersionCache
	Logger    *slog.Logger
}

// New constructs a Deployments service.
func New(store storage.Store, artifactStore *artifacts.Store, versionCache *cache.VersionCache, logger *slog.Logger) *Deployments {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployments{Store: store, Artifacts: artifactStore, Versions: versionCache, Logger: logger}
}

// generateToken returns 32 uniformly random bytes encoded URL-safe
// base64 without padding, per the registry's token generation contract.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// RegisterClient creates a new client with a freshly generated bearer
// token.
func (d *Deployments) RegisterClient(ctx context.Context, name string, cfg models.ClientConfig) (*models.Client, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}
	return d.Store.RegisterClient(ctx, name, token, cfg)
}

func (d *Deployments) UpdateClientConfig(ctx context.Context, id string, cfg models.ClientConfig) (*models.Client, error) {
	return d.Store.UpdateClientConfig(ctx, id, cfg)
}

func (d *Deployments) GetClient(ctx context.Context, id string) (*models.Client, error) {
	return d.Store.GetClientByID(ctx, id)
}

func (d *Deployments) ListClients(ctx context.Context) ([]*models.Client, error) {
	return d.Store.GetAllClients(ctx)
}

// Deploy sets a client's target version, after confirming the version
// exists in the catalog.
func (d *Deployments) Deploy(ctx context.Context, clientID, version string) error {
	if _, err := d.lookupVersion(ctx, version); err != nil {
		return err
	}
	v := version
	return d.Store.SetClientTargetVersion(ctx, clientID, &v)
}

// UploadVersion validates and persists a newly uploaded artifact,
// following the Version Catalog's four-step upload algorithm: validate
// semver, reject duplicates, write the blob, insert the row.
func (d *Deployments) UploadVersion(ctx context.Context, version, releaseNotes, ext string, body io.Reader) (*models.Version, error) {
	if err := semverx.Validate(version); err != nil {
		return nil, fmt.Errorf("%w: %s", storage.ErrValidation, err.Error())
	}

	if _, err := d.Store.GetVersion(ctx, version); err == nil {
		return nil, storage.ErrConflict
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	path, size, checksum, err := d.Artifacts.Write(version, ext, body, "")
	if err != nil {
		return nil, fmt.Errorf("storing artifact: %w", err)
	}

	v := &models.Version{
		Version:      version,
		ArtifactPath: path,
		ArtifactSize: size,
		Checksum:     checksum,
		ReleaseNotes: releaseNotes,
	}
	if err := d.Store.CreateVersion(ctx, v); err != nil {
		return nil, err
	}
	if d.Versions != nil {
		d.Versions.Put(v)
	}
	return v, nil
}

func (d *Deployments) ListVersions(ctx context.Context) ([]*models.Version, error) {
	return d.Store.GetAllVersions(ctx)
}

func (d *Deployments) GetVersion(ctx context.Context, version string) (*models.Version, error) {
	return d.lookupVersion(ctx, version)
}

// lookupVersion checks the LRU cache before falling back to storage,
// avoiding a database round trip on every check-in's version existence
// check.
func (d *Deployments) lookupVersion(ctx context.Context, version string) (*models.Version, error) {
	if d.Versions != nil {
		if v, ok := d.Versions.Get(version); ok {
			return v, nil
		}
	}
	v, err := d.Store.GetVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	if d.Versions != nil {
		d.Versions.Put(v)
	}
	return v, nil
}

// AuthenticateClient resolves an X-API-Key value to its Client.
func (d *Deployments) AuthenticateClient(ctx context.Context, apiKey string) (*models.Client, error) {
	return d.Store.GetClientByAPIKey(ctx, apiKey)
}
