package device

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/lifecycle"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var startCmd = &cobra.Command{
	Use:   "start [definition]",
	Short: "Boot an emulator and keep it running until interrupted",
	Long: `Start an emulator for a device definition and wait until Android reports a
completed boot. The device stays up until Ctrl+C, then it is shut down.

With --platform and no definition, the generated definition for that
platform is used and created on demand.

Examples:
  droidbench start --platform 34
  droidbench start Pixel_7_API_34 --port 5560 --snapshot clean
  droidbench start --platform 35 --headless=false --detach`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

var (
	startPlatform int
	startPort     int
	startSnapshot string
	startHeadless bool
	startMemory   int
	startGPU      string
	startDetach   bool
)

func init() {
	startCmd.Flags().IntVarP(&startPlatform, "platform", "p", 0, "Android API level; creates the definition when missing")
	startCmd.Flags().IntVar(&startPort, "port", 0, "Console port (even, 5554-5682)")
	startCmd.Flags().StringVar(&startSnapshot, "snapshot", "", "Snapshot to boot from")
	startCmd.Flags().BoolVar(&startHeadless, "headless", true, "Run without a window (default: emulator.headless)")
	startCmd.Flags().IntVar(&startMemory, "memory", 0, "Guest RAM in MB (default: emulator.memory_mb)")
	startCmd.Flags().StringVar(&startGPU, "gpu", "", "GPU mode (default: emulator.gpu_mode)")
	startCmd.Flags().BoolVar(&startDetach, "detach", false, "Return once booted and leave the device running")
}

// RegisterStartCmd registers the start command with the given parent command.
func RegisterStartCmd(parent *cobra.Command) {
	parent.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && startPlatform == 0 {
		return fmt.Errorf("either a definition name or --platform is required")
	}

	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	opts := a.Config.EmulatorOptions()
	if cmd.Flags().Changed("headless") {
		opts.Headless = startHeadless
	}
	if startMemory > 0 {
		opts.MemoryMB = startMemory
	}
	if startGPU != "" {
		opts.GPUMode = startGPU
	}
	opts.Port = startPort
	opts.Snapshot = startSnapshot

	req := a.Request(startPlatform, opts)
	if len(args) == 1 {
		req.Name = args[0]
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.InfoMsg("Starting %s...", req.Name))

	ctx := cmd.Context()
	rec, err := a.Lifecycle.Start(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, ui.SuccessMsg("%s is running", rec.Serial))
	fmt.Fprint(out, recordDetails(rec))

	if startDetach {
		return nil
	}

	fmt.Fprintln(out, ui.Muted("Press Ctrl+C to stop the device"))
	<-ctx.Done()

	fmt.Fprintln(out, ui.InfoMsg("Stopping %s...", rec.Serial))
	a.Lifecycle.Stop(context.WithoutCancel(ctx), rec.Serial)
	fmt.Fprintln(out, ui.SuccessMsg("Stopped %s", rec.Serial))
	return nil
}

func recordDetails(rec *lifecycle.Record) string {
	pid := "-"
	if rec.Process != nil {
		pid = strconv.Itoa(rec.Process.Pid())
	}
	return ui.KeyValues("  ",
		ui.KV("Serial", ui.Bold(rec.Serial)),
		ui.KV("Definition", rec.Name),
		ui.KV("Platform", strconv.Itoa(rec.PlatformVersion)),
		ui.KV("Status", ui.Status(string(rec.Status))),
		ui.KV("Launch ID", rec.LaunchID),
		ui.KV("PID", pid),
	)
}
