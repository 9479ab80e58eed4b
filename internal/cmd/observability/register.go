// Package observability implements the commands that read back what
// droidbench recorded: debug logs and command history.
package observability

import "github.com/spf13/cobra"

// Register adds all observability-related commands to the given parent command.
func Register(parent *cobra.Command) {
	RegisterLogsCmd(parent)
	RegisterHistoryCmd(parent)
}
