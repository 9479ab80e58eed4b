// Package device implements the commands that start emulators and act on
// running devices.
package device

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/app"
)

// Register adds all device commands to the given parent command.
func Register(parent *cobra.Command) {
	RegisterStartCmd(parent)
	RegisterRunCmd(parent)
	RegisterExecCmds(parent)
	RegisterControlCmds(parent)
}

// addSerialFlag adds the required --serial flag bound to target.
func addSerialFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "serial", "s", "", "Device serial, e.g. emulator-5554 (required)")
	_ = cmd.MarkFlagRequired("serial")
}

func loadApp(history bool) (*app.App, error) {
	a, err := app.Load(app.Options{NoHistory: !history})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return a, nil
}
