package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the Homebase admin CLI. Subcommands (auth, db, invite) are attached here.
var rootCmd = &cobra.Command{
	Use:           "homebase",
	Short:         "Homebase admin CLI",
	Long:          "Administrative utilities for Homebase (dev tokens, database bootstrap, signature invites).",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
