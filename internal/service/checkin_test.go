package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sam-dm/deployment-manager/internal/models"
)

func TestCheckin_NoTargetVersion_ReturnsNone(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)

	directive, err := d.Checkin(ctx, client.APIKey, nil, models.StatusOnline)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, directive.Action)
}

func TestCheckin_TargetAlreadyCurrent_ReturnsNone(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	_, err = d.UploadVersion(ctx, "1.0.0", "", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, d.Deploy(ctx, client.ID, "1.0.0"))

	current := "1.0.0"
	directive, err := d.Checkin(ctx, client.APIKey, &current, models.StatusOnline)
	require.NoError(t, err)
	assert.Equal(t, ActionNone, directive.Action)
}

func TestCheckin_TargetDiffersFromCurrent_ReturnsUpdateDirective(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	v, err := d.UploadVersion(ctx, "2.0.0", "", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, d.Deploy(ctx, client.ID, "2.0.0"))

	current := "1.0.0"
	directive, err := d.Checkin(ctx, client.APIKey, &current, models.StatusOnline)
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, directive.Action)
	assert.Equal(t, "2.0.0", directive.TargetVersion)
	assert.Equal(t, v.Checksum, directive.Checksum)
	assert.Equal(t, "/api/artifacts/2.0.0", directive.ArtifactURL)

	logs, err := d.Store.ListUpdateLogsForClient(ctx, client.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.UpdateStatusPending, logs[0].Status)
}

func TestResult_Success_ClearsTargetAndCompletesLog(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	_, err = d.UploadVersion(ctx, "3.0.0", "", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, d.Deploy(ctx, client.ID, "3.0.0"))

	_, err = d.Checkin(ctx, client.APIKey, nil, models.StatusOnline)
	require.NoError(t, err)

	require.NoError(t, d.Result(ctx, client.APIKey, "3.0.0", true, false, ""))

	updated, err := d.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Nil(t, updated.TargetVersion)
	require.NotNil(t, updated.CurrentVersion)
	assert.Equal(t, "3.0.0", *updated.CurrentVersion)

	logs, err := d.Store.ListUpdateLogsForClient(ctx, client.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.UpdateStatusCompleted, logs[0].Status)
}

func TestResult_Failure_MarksClientError(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	_, err = d.UploadVersion(ctx, "4.0.0", "", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, d.Deploy(ctx, client.ID, "4.0.0"))

	_, err = d.Checkin(ctx, client.APIKey, nil, models.StatusOnline)
	require.NoError(t, err)

	require.NoError(t, d.Result(ctx, client.APIKey, "4.0.0", false, false, "restart failed"))

	updated, err := d.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, updated.Status)

	logs, err := d.Store.ListUpdateLogsForClient(ctx, client.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.UpdateStatusFailed, logs[0].Status)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Equal(t, "restart failed", *logs[0].ErrorMessage)
}

func TestResult_RolledBack_MarksLogRolledBack(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)
	_, err = d.UploadVersion(ctx, "6.0.0", "", "tar.gz", strings.NewReader("data"))
	require.NoError(t, err)
	require.NoError(t, d.Deploy(ctx, client.ID, "6.0.0"))

	_, err = d.Checkin(ctx, client.APIKey, nil, models.StatusOnline)
	require.NoError(t, err)

	require.NoError(t, d.Result(ctx, client.APIKey, "6.0.0", false, true, "health check failed"))

	updated, err := d.GetClient(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusError, updated.Status)

	logs, err := d.Store.ListUpdateLogsForClient(ctx, client.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.UpdateStatusRolledBack, logs[0].Status)
	require.NotNil(t, logs[0].ErrorMessage)
	assert.Equal(t, "health check failed", *logs[0].ErrorMessage)
}

func TestResult_NoInFlightLog_StillUpdatesClient(t *testing.T) {
	d := newTestDeployments(t)
	ctx := context.Background()

	client, err := d.RegisterClient(ctx, "host-a", models.ClientConfig{})
	require.NoError(t, err)

	require.NoError(t, d.Result(ctx, client.APIKey, "5.0.0", true, false, ""))

	updated, err := d.GetClient(ctx, client.ID)
	require.NoError(t, err)
	require.NotNil(t, updated.CurrentVersion)
	assert.Equal(t, "5.0.0", *updated.CurrentVersion)
}
