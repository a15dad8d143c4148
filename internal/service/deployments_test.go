package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-dm/deployment-manager/internal/cache"
	"github.com/sam-dm/deployment-manager/internal/models"
	"github.com/sam-dm/deployment-manager/internal/storage"
	"github.com/sam-dm/deployment-manager/internal/storage/artifacts"
	"github.com/sam-dm/deployment-manager/internal/storage/memstore"
)

func newTestDeployments(t *testing.T) *Deployments {
	t.Helper()
	artifactStore, err := artifacts.New(t.TempDir())
	require.NoError(t, err)
	versionCache, err := cache.NewVersionCache(16)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(memstore.New(), artifactStore, versionCache, logger)
}

func TestRegisterClient_GeneratesUniqueToken(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	a, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	b, err := d.RegisterClient(ctx, "host-b", models.ClientConfig{})
	require.NoError(t, err)

	assert.NotEmpty(t, a.APIKey)
	assert.NotEqual(t, a.APIKey, b.APIKey)
}

func TestRegisterClient_DuplicateNameConflicts(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	_, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)

	_, err = d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestUploadVersion_RejectsInvalidSemver(t *testing.T) {
	d := newTestDeployments(t)
	_, err := d.UploadVersion(context.Background(), "not-a-version", "", "tar.gz", strings.NewReader("data"))
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrValidation)
}

func TestUploadVersion_RejectsDuplicateVersion(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	_, err := d.UploadVersion(ctx, "1.0.0", "first release", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)

	_, err = d.UploadVersion(ctx, "1.0.0", "second attempt", "tar.gz", strings.NewReader("data2"))
	assert.ErrorIs(t, err, storage.ErrConflict)
}

func TestUploadVersion_PopulatesCache(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	v, err := d.UploadVersion(ctx, "2.0.0", "", "tar.gz", strings.NewReader("payload"))
	require.NoError(t, err)
	assert.NotEmpty(t, v.Checksum)

	cached, ok := d.Versions.Get("2.0.0")
	require.True(t, ok)
	assert.Equal(t, v.Checksum, cached.Checksum)
}

func TestDeploy_UnknownVersionFails(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)

	err = d.Deploy(ctx, client.ID, "9.9.9")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeploy_SetsTargetVersion(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	_, err = d.UploadVersion(ctx, "1.5.0", "", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, d.Deploy(ctx, client.ID, "1.5.0"))

	updated, err := d.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.TargetVersion)
	assert.Equal(t, "1.5.0", *updated.TargetVersion)
}

func TestAuthenticateClient_UnknownKeyFails(t *testing.T) {
	d := newTestDeployments(t)
	_, err := d.AuthenticateClient(context.Background(), "no-such-key")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
