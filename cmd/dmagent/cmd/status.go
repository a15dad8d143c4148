package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sam-dm/deployment-manager/internal/agent"
	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the current installed version and configured directories",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := agentconfig.LoadOptional()
		tx := agent.NewTransaction(cfg, log)

		fmt.Printf("version:     %s\n", tx.ReadCurrentVersion())
		fmt.Printf("service_dir: %s\n", cfg.ServiceDir)
		fmt.Printf("backup_dir:  %s\n", cfg.BackupDir)
		return nil
	},
}
