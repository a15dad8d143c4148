package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sam-dm/deployment-manager/internal/models"
)

// Checkin runs the check-in state-machine step (C4): persist liveness,
// then decide whether the client has an update pending.
//
// The directive logic, in order:
//   - no desired version set -> none
//   - desired version equals the reported current version -> none (the
//     desired field is left set; only a success report clears it)
//   - otherwise -> update, opening a new pending UpdateLog
func (d *Deployments) Checkin(ctx context.Context, apiKey string, currentVersion *string, status models.ClientStatus) (*CheckinDirective, error) {
	client, err := d.Store.GetClientByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if err := d.Store.UpdateClientCheckin(ctx, client.ID, currentVersion, status); err != nil {
		return nil, err
	}

	if client.TargetVersion == nil {
		return &CheckinDirective{Action: ActionNone}, nil
	}

	target := *client.TargetVersion
	if currentVersion != nil && *currentVersion == target {
		return &CheckinDirective{Action: ActionNone}, nil
	}

	version, err := d.lookupVersion(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("resolving target version %s: %w", target, err)
	}

	log := &models.UpdateLog{
		ClientID:    client.ID,
		FromVersion: currentVersion,
		ToVersion:   target,
		Status:      models.UpdateStatusPending,
		StartedAt:   time.Now(),
	}
	if err := d.Store.CreateUpdateLog(ctx, log); err != nil {
		return nil, fmt.Errorf("recording update log: %w", err)
	}

	directive := &CheckinDirective{
		Action:        ActionUpdate,
		TargetVersion: target,
		ArtifactURL:   fmt.Sprintf("/api/artifacts/%s", target),
		Checksum:      version.Checksum,
	}
	if hasConfig(client.Config) {
		cfg := client.Config
		directive.Config = &cfg
	}
	return directive, nil
}

// Result reconciles an agent's reported update outcome (C5) with the
// client's desired state and the most recent non-terminal UpdateLog for
// that (client, to_version) pair. rolledBack distinguishes an update that
// failed but was successfully compensated (agent restored its backup)
// from an uncompensated failure, per spec: rollback success is itself
// reportable as "rolled_back", distinct from "failed".
//
// The success path runs MarkSuccess and the UpdateLog write in a single
// transaction: both describe the same outcome, and a crash between the two
// must never leave the client's observed version updated while its
// UpdateLog row is stuck non-terminal (or vice versa).
func (d *Deployments) Result(ctx context.Context, apiKey, version string, success, rolledBack bool, errMsg string) error {
	client, err := d.Store.GetClientByAPIKey(ctx, apiKey)
	if err != nil {
		return err
	}

	logStatus := models.UpdateStatusFailed
	if rolledBack {
		logStatus = models.UpdateStatusRolledBack
	}
	var errPtr *string
	if !success && errMsg != "" {
		errPtr = &errMsg
	}

	if success {
		logStatus = models.UpdateStatusCompleted
		return d.Store.WithTx(ctx, func(ctx context.Context) error {
			if err := d.Store.MarkSuccess(ctx, client.ID, version); err != nil {
				return err
			}
			return d.updateMostRecentLog(ctx, client.ID, version, logStatus, errPtr)
		})
	}

	if err := d.Store.MarkFailure(ctx, client.ID); err != nil {
		return err
	}
	return d.updateMostRecentLog(ctx, client.ID, version, logStatus, errPtr)
}

// updateMostRecentLog moves the most recent non-terminal UpdateLog for
// (clientID, version) to status, if one exists. A missing log (e.g. a
// direct offline apply reported without a server-dispatched directive) is
// not an error — the client row has already been updated by the caller.
func (d *Deployments) updateMostRecentLog(ctx context.Context, clientID, version string, status models.UpdateLogStatus, errPtr *string) error {
	logs, err := d.Store.ListUpdateLogsForClient(ctx, clientID, 0)
	if err != nil {
		return fmt.Errorf("listing update logs: %w", err)
	}
	target := mostRecentNonTerminal(logs, version)
	if target == nil {
		return nil
	}
	return d.Store.UpdateLogStatus(ctx, target.ID, status, errPtr)
}

func mostRecentNonTerminal(logs []*models.UpdateLog, toVersion string) *models.UpdateLog {
	var best *models.UpdateLog
	for _, l := range logs {
		if l.ToVersion != toVersion || l.Status.IsTerminal() {
			continue
		}
		if best == nil || l.StartedAt.After(best.StartedAt) {
			best = l
		}
	}
	return best
}

func hasConfig(cfg models.ClientConfig) bool {
	return cfg.ServiceDir != "" ||
		cfg.RestartCommand != "" ||
		cfg.PreUpdateScript != "" ||
		cfg.PostUpdateScript != "" ||
		cfg.HealthCheckURL != "" ||
		cfg.HealthCheckTimeout != 0 ||
		cfg.RollbackOnFailure != nil
}

// CheckinDirective is the server's decision for one check-in.
type CheckinDirective struct {
	Action        Action
	TargetVersion string
	ArtifactURL   string
	Checksum      string
	Config        *models.ClientConfig
}

// Action is the directive kind returned by Checkin.
type Action string

const (
	ActionNone   Action = "none"
	ActionUpdate Action = "update"
)
