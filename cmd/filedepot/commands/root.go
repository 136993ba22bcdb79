// Package commands defines the filedepot CLI.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filedepot",
		Short: "Upload ingestion and export pipeline service",
	}

	rootCmd.AddCommand(
		NewServeCommand(),
		NewMigrateCommand(),
		NewVersionCommand(),
	)

	return rootCmd
}
