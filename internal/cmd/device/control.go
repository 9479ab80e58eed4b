package device

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/command"
	"github.com/Iron-Ham/droidbench/internal/introspect"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Shut down a running emulator",
	Long: `Shut down an emulator through its console. With --all every attached
emulator is stopped.`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Save or restore emulator snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save -s <serial> <name>",
	Short: "Save the device state as a named snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotSave,
}

var snapshotLoadCmd = &cobra.Command{
	Use:   "load -s <serial> <name>",
	Short: "Restore a named snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotLoad,
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot -s <serial>",
	Short: "Capture the device screen to a local PNG",
	Args:  cobra.NoArgs,
	RunE:  runScreenshot,
}

var infoCmd = &cobra.Command{
	Use:   "info -s <serial>",
	Short: "Show device properties, battery and network state",
	Args:  cobra.NoArgs,
	RunE:  runInfo,
}

var (
	controlSerial string
	stopAll       bool
	infoJSON      bool
)

func init() {
	stopCmd.Flags().StringVarP(&controlSerial, "serial", "s", "", "Device serial, e.g. emulator-5554")
	stopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop every attached emulator")
	stopCmd.MarkFlagsMutuallyExclusive("serial", "all")
	stopCmd.MarkFlagsOneRequired("serial", "all")

	addSerialFlag(snapshotSaveCmd, &controlSerial)
	addSerialFlag(snapshotLoadCmd, &controlSerial)
	addSerialFlag(screenshotCmd, &controlSerial)
	addSerialFlag(infoCmd, &controlSerial)
	infoCmd.Flags().BoolVar(&infoJSON, "json", false, "Print JSON instead of a summary")
}

// RegisterControlCmds registers the stop, snapshot, screenshot and info
// commands with the given parent command.
func RegisterControlCmds(parent *cobra.Command) {
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotLoadCmd)
	parent.AddCommand(stopCmd, snapshotCmd, screenshotCmd, infoCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	serials := []string{controlSerial}
	if stopAll {
		attached, err := a.ADB.Attached(ctx)
		if err != nil {
			return err
		}
		serials = slices.DeleteFunc(attached, func(s string) bool {
			return !strings.HasPrefix(s, "emulator-")
		})
	}

	out := cmd.OutOrStdout()
	if len(serials) == 0 {
		fmt.Fprintln(out, ui.InfoMsg("No emulators running"))
		return nil
	}
	var failed []string
	for _, serial := range serials {
		if err := a.ADB.EmuKill(ctx, serial); err != nil {
			fmt.Fprintln(out, ui.ErrorMsg("%s: %v", serial, err))
			failed = append(failed, serial)
			continue
		}
		fmt.Fprintln(out, ui.SuccessMsg("Stopped %s", serial))
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to stop %s", strings.Join(failed, ", "))
	}
	return nil
}

func runSnapshotSave(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.ADB.SnapshotSave(cmd.Context(), controlSerial, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Saved snapshot %s on %s", args[0], controlSerial))
	return nil
}

func runSnapshotLoad(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.ADB.SnapshotLoad(cmd.Context(), controlSerial, args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Loaded snapshot %s on %s", args[0], controlSerial))
	return nil
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	path, ok := a.Engine.CaptureScreenshot(cmd.Context(), controlSerial)
	if !ok {
		return fmt.Errorf("failed to capture a screenshot from %s", controlSerial)
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

type deviceReport struct {
	Device  command.DeviceInfo     `json:"device"`
	Battery map[string]string      `json:"battery"`
	Network introspect.NetworkInfo `json:"network"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := loadApp(false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx := cmd.Context()
	dev := introspect.New(a.Engine, controlSerial)
	info := a.Engine.DeviceInfo(ctx, controlSerial)
	report := deviceReport{
		Device:  info,
		Battery: dev.BatteryInfo(ctx),
		Network: dev.NetworkInfo(ctx),
	}

	out := cmd.OutOrStdout()
	if infoJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintln(out, ui.Bold(controlSerial))
	fmt.Fprint(out, ui.KeyValues("  ",
		ui.KV("Model", info.Model),
		ui.KV("Android", info.AndroidVersion),
		ui.KV("API level", info.APILevel),
		ui.KV("Manufacturer", info.Manufacturer),
		ui.KV("Build", info.BuildID),
		ui.KV("Screen", info.ScreenResolution),
		ui.KV("Density", info.ScreenDensity),
	))

	fmt.Fprintln(out, ui.Bold("Battery"))
	keys := slices.Sorted(maps.Keys(report.Battery))
	pairs := make([]ui.Pair, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, ui.KV(k, report.Battery[k]))
	}
	fmt.Fprint(out, ui.KeyValues("  ", pairs...))

	fmt.Fprintln(out, ui.Bold("Network"))
	fmt.Fprint(out, ui.KeyValues("  ",
		ui.KV("Wi-Fi", ui.Check(report.Network.WifiConnected)),
		ui.KV("Mobile", ui.Check(report.Network.MobileConnected)),
		ui.KV("Airplane mode", ui.Check(report.Network.AirplaneMode)),
	))
	return nil
}
