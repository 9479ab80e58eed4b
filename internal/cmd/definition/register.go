// Package definition implements the `droidbench avd` commands that manage
// device definitions.
package definition

import "github.com/spf13/cobra"

var avdCmd = &cobra.Command{
	Use:   "avd",
	Short: "Manage Android device definitions",
}

// Register adds the avd command tree to the given parent command.
func Register(parent *cobra.Command) {
	avdCmd.AddCommand(listCmd, infoCmd, createCmd, deleteCmd, cleanupCmd)
	parent.AddCommand(avdCmd)
}
