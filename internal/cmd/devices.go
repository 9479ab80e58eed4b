package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/app"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List devices attached to adb",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	devices, err := a.ADB.Devices(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, ui.InfoMsg("No devices attached"))
		return nil
	}
	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		rows = append(rows, []string{d.Serial, ui.Status(d.State)})
	}
	fmt.Fprintln(out, ui.Table([]string{"SERIAL", "STATE"}, rows))
	return nil
}
