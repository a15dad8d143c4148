package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sam-dm/deployment-manager/internal/agent"
	agentconfig "github.com/sam-dm/deployment-manager/internal/config/agent"
)

var (
	applyFile     string
	applyDir      string
	applyVersion  string
	applyChecksum string
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an update from a local artifact file or directory, without contacting the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (applyFile == "") == (applyDir == "") {
			return fmt.Errorf("exactly one of --file or --dir must be given")
		}

		cfg := agentconfig.LoadOptional()
		tx := agent.NewTransaction(cfg, log)
		ctx := cmd.Context()

		if applyDir != "" {
			return agent.ApplyFromDirectory(ctx, tx, log, applyDir)
		}
		return agent.ApplyFromFile(ctx, tx, log, applyFile, applyVersion, applyChecksum)
	},
}

func init() {
	applyCmd.Flags().StringVar(&applyFile, "file", "", "Path to an artifact tarball (update.tar.gz)")
	applyCmd.Flags().StringVar(&applyDir, "dir", "", "Path to a directory containing manifest.json and its artifact")
	applyCmd.Flags().StringVar(&applyVersion, "version", "", "Target version (overrides manifest.json if present)")
	applyCmd.Flags().StringVar(&applyChecksum, "checksum", "", "Expected SHA-256 checksum (overrides manifest.json if present)")
}
