package observability

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/config"
	"github.com/Iron-Ham/droidbench/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View droidbench debug logs",
	Long: `View and filter the JSON debug logs droidbench writes under
<data_dir>/logs, including rotated backups.

Examples:
  # Show the last 50 entries
  droidbench logs

  # Everything a single device logged in the last hour
  droidbench logs -s emulator-5554 --since 1h -n 0

  # Warnings and errors from boot monitoring, as CSV
  droidbench logs --level warn --phase boot --format csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsTail       int
	logsLevel      string
	logsSince      time.Duration
	logsSerial     string
	logsDefinition string
	logsPhase      string
	logsGrep       string
	logsFormat     string
)

func init() {
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "Show entries newer than this (e.g., 1h, 30m)")
	logsCmd.Flags().StringVarP(&logsSerial, "serial", "s", "", "Only entries for this device")
	logsCmd.Flags().StringVar(&logsDefinition, "definition", "", "Only entries for this definition")
	logsCmd.Flags().StringVar(&logsPhase, "phase", "", "Only entries from this phase (launch, boot, provision, run)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only entries whose message contains this text")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format: text, json or csv")
}

// RegisterLogsCmd registers the logs command with the given parent command.
func RegisterLogsCmd(parent *cobra.Command) {
	parent.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	if logsLevel != "" && !slices.Contains(logging.ValidLevels(), strings.ToUpper(logsLevel)) {
		return fmt.Errorf("invalid level %q (valid: %s)", logsLevel, strings.Join(logging.ValidLevels(), ", "))
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	entries, err := logging.AggregateLogs(cfg.Paths.LogDir())
	if err != nil {
		return err
	}

	filter := logging.LogFilter{
		Level:           logsLevel,
		Serial:          logsSerial,
		Definition:      logsDefinition,
		Phase:           logsPhase,
		MessageContains: logsGrep,
	}
	if logsSince > 0 {
		filter.StartTime = time.Now().Add(-logsSince)
	}

	entries = tail(logging.FilterLogs(entries, filter), logsTail)
	if len(entries) == 0 && logsFormat == "text" {
		fmt.Fprintln(cmd.ErrOrStderr(), "no matching log entries")
		return nil
	}
	return logging.ExportLogEntries(cmd.OutOrStdout(), entries, logsFormat)
}

// tail keeps the last n entries; n <= 0 keeps everything.
func tail[T any](items []T, n int) []T {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[len(items)-n:]
}
