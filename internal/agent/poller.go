package agent

import (
	"context"
	"errors"
	"log/slog"
	"time"

	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

// Poller drives the agent's main loop: check in with the server, act
// on whatever directive comes back, sleep, repeat.
type Poller struct {
	cfg    *agentconfig.Config
	client *APIClient
	tx     *Transaction
	logger *slog.Logger
}

// NewPoller builds a Poller from the agent configuration.
func NewPoller(cfg *agentconfig.Config, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:    cfg,
		client: NewAPIClient(cfg),
		tx:     NewTransaction(cfg, logger),
		logger: logger,
	}
}

// Run loops until ctx is cancelled, check in, act, sleep. Loop-level
// failures (network errors, server errors) are logged and swallowed so
// one bad poll never brings the agent down; a finished transaction
// (success or rollback) may be followed immediately by the next poll.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("agent polling loop starting", "server", p.cfg.ServerURL, "interval", p.cfg.PollInterval)

	for {
		immediate := p.tick(ctx)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if immediate {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// tick performs one checkin-and-maybe-update cycle. It returns true if
// the next iteration should start immediately rather than sleeping.
func (p *Poller) tick(ctx context.Context) bool {
	current := p.tx.ReadCurrentVersion()
	var currentPtr *string
	if current != "unknown" {
		currentPtr = &current
	}

	resp, err := p.client.Checkin(ctx, currentPtr, "online")
	if err != nil {
		p.logger.Warn("checkin failed", "error", err)
		return false
	}

	if resp == nil || resp.Action != "update" {
		return false
	}

	p.logger.Info("update directive received", "target_version", resp.TargetVersion)

	fetch := func(dlCtx context.Context) ([]byte, error) {
		return p.client.DownloadArtifact(dlCtx, resp.ArtifactURL, downloadTimeout)
	}

	applyErr := p.tx.Apply(ctx, resp.TargetVersion, resp.Checksum, fetch)

	success := applyErr == nil
	rolledBack := errors.Is(applyErr, ErrRolledBack)
	errMsg := ""
	if applyErr != nil {
		errMsg = applyErr.Error()
		p.logger.Error("update failed", "rolled_back", rolledBack, "error", applyErr)
	}

	if err := p.client.ReportResult(ctx, resp.TargetVersion, success, rolledBack, errMsg); err != nil {
		p.logger.Warn("failed to report update result", "error", err)
	}

	return true
}
