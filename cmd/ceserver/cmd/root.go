package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/cecontainer/engine"
)

// Version information
var (
	Commit = "none"
	Date   = "unknown"
)

// NewRootCommand creates the root command for the ceserver application
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ceserver",
		Short: "Compute engine server",
		Long: `ceserver runs the compute engine process.
It boots the platform, migration, services and task processing containers
and keeps them running until it is interrupted or the stop flag is dropped.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	cmd.AddCommand(NewStartCommand())
	cmd.AddCommand(NewConfigCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), PrintVersion())
		},
	}
}

// PrintVersion prints version information
func PrintVersion() string {
	return fmt.Sprintf("Compute engine v%s (commit: %s, built on: %s)", engine.Version, Commit, Date)
}
