// Package cmd holds the dmagent CLI's cobra commands: daemon (the
// default), apply, and status.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sam-dm/deployment-manager/pkg/logger"
)

var log *slog.Logger

var rootCmd = &cobra.Command{
	Use:   "dmagent",
	Short: "Deployment manager agent",
	Long:  "dmagent polls a deployment manager server and applies updates to a local service directory.",
}

// Execute runs the root command, defaulting to the daemon subcommand
// when no subcommand is given.
func Execute() error {
	logCfg := logger.Config{Level: "info", Format: "json", Output: "stdout"}
	if file := os.Getenv("DM_LOG_FILE"); file != "" {
		logCfg.Output = "file"
		logCfg.Filename = file
		logCfg.MaxSize = 100
		logCfg.MaxBackups = 3
		logCfg.MaxAge = 28
		logCfg.Compress = true
	}
	log = logger.NewLogger(logCfg)
	slog.SetDefault(log)

	if shouldDefaultToDaemon(os.Args[1:]) {
		os.Args = append([]string{os.Args[0], "daemon"}, os.Args[1:]...)
	}

	return rootCmd.Execute()
}

// shouldDefaultToDaemon reports whether the given args name no known
// subcommand (and aren't a help/completion flag), in which case the
// daemon subcommand runs by default per the agent's CLI contract.
func shouldDefaultToDaemon(args []string) bool {
	if len(args) == 0 {
		return true
	}
	switch args[0] {
	case "daemon", "apply", "status", "help", "completion", "-h", "--help":
		return false
	default:
		return true
	}
}

func init() {
	rootCmd.AddCommand(daemonCmd, applyCmd, statusCmd)
}
