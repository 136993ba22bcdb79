package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/filedepot/filedepot/config"
	"github.com/filedepot/filedepot/data"
	"github.com/filedepot/filedepot/ledger"

	_ "github.com/filedepot/filedepot/data/postgres"
	_ "github.com/filedepot/filedepot/data/sqlite"
)

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "migrate",
		Args:    cobra.NoArgs,
		Aliases: []string{"m"},
		Short:   "Database migration commands",
	}

	cmd.AddCommand(
		newUpCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	var confPath string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Create or update the job ledger schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.LoadConfig(confPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			dataLayer, cleanup, err := data.New(ctx, cfg.Data)
			if err != nil {
				return fmt.Errorf("failed to connect database: %w", err)
			}
			defer cleanup()

			if _, err := ledger.NewSQLLedger(ctx, dataLayer); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Println("Job ledger schema is up to date")
			return nil
		},
	}

	cmd.Flags().StringVarP(&confPath, "conf", "c", "", "config file path")
	return cmd
}

func newStatusCommand() *cobra.Command {
	var confPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.LoadConfig(confPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			dataLayer, cleanup, err := data.New(ctx, cfg.Data)
			if err != nil {
				return fmt.Errorf("failed to connect database: %w", err)
			}
			defer cleanup()

			if err := dataLayer.Ping(ctx); err != nil {
				return fmt.Errorf("database unreachable: %w", err)
			}

			fmt.Printf("Database reachable (driver: %s)\n", dataLayer.DriverName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&confPath, "conf", "c", "", "config file path")
	return cmd
}
