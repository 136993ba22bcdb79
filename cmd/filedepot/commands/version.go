package commands

import (
	"github.com/spf13/cobra"

	"github.com/filedepot/filedepot/version"
)

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				out, err := version.GetVersionInfo().JSON()
				if err != nil {
					return err
				}
				cmd.Println(out)
				return nil
			}
			cmd.Println(version.GetVersionInfo().String())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output version information as JSON")
	return cmd
}
