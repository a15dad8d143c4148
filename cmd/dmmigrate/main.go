// Package main is a small CLI wrapping the deployment manager's schema
// migrations, so an operator can apply/roll back/inspect the database
// independently of running the server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sam-dm/deployment-manager/internal/config"
	"github.com/sam-dm/deployment-manager/internal/database/postgres"
	"github.com/sam-dm/deployment-manager/internal/storage/migrations"
)

var (
	configPath string
	logger     = slog.New(slog.NewJSONHandler(os.Stdout, nil))
)

func main() {
	root := &cobra.Command{
		Use:   "dmmigrate",
		Short: "Manage the deployment manager database schema",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")

	root.AddCommand(upCmd(), downToCmd(), statusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func connectPool(ctx context.Context) (*postgres.PostgresPool, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	pool := postgres.NewPostgresPool(cfg.Database.ToPostgresConfig(), logger)
	if err := pool.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	return pool, nil
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Disconnect(ctx)
			return migrations.Up(pool, logger)
		},
	}
}

func downToCmd() *cobra.Command {
	var target int64
	cmd := &cobra.Command{
		Use:   "down-to",
		Short: "Roll back migrations to a target version",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Disconnect(ctx)
			return migrations.DownTo(pool, target, logger)
		},
	}
	cmd.Flags().Int64Var(&target, "version", 0, "Migration version to roll back to (0 rolls back everything)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Disconnect(ctx)
			return migrations.Status(pool, logger)
		},
	}
}
