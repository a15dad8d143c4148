package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sam-dm/deployment-manager/internal/agent"
	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the polling loop, checking in with the server and applying updates (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := agentconfig.Load()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		poller := agent.NewPoller(cfg, log)
		err = poller.Run(ctx)
		if errors.Is(err, context.Canceled) {
			log.Info("agent shutting down")
			return nil
		}
		return err
	},
}
