package observability

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/command"
	"github.com/Iron-Ham/droidbench/internal/config"
	"github.com/Iron-Ham/droidbench/internal/history"
	"github.com/Iron-Ham/droidbench/internal/ui"
	"github.com/Iron-Ham/droidbench/internal/util"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded command results",
	Long: `Show the results of device commands run by exec, verify and run, newest
first. Every attempt of a retried command is listed.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every recorded command result",
	Args:  cobra.NoArgs,
	RunE:  runHistoryClear,
}

const previewWidth = 40

var (
	historyLimit  int
	historySerial string
	historyFailed bool
	historyJSON   bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit, "Maximum number of results")
	historyCmd.Flags().StringVarP(&historySerial, "serial", "s", "", "Only results for this device")
	historyCmd.Flags().BoolVar(&historyFailed, "failed", false, "Only failed attempts")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print JSON")
}

// RegisterHistoryCmd registers the history command tree with the given
// parent command.
func RegisterHistoryCmd(parent *cobra.Command) {
	historyCmd.AddCommand(historyClearCmd)
	parent.AddCommand(historyCmd)
}

func openStore() (*history.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return history.Open(cfg.Paths.ResolveHistoryDB())
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	results, err := store.List(cmd.Context(), history.Query{
		Limit:      historyLimit,
		Serial:     historySerial,
		FailedOnly: historyFailed,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if historyJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if len(results) == 0 {
		fmt.Fprintln(out, ui.InfoMsg("No recorded commands"))
		return nil
	}
	fmt.Fprintln(out, ui.Table([]string{"TIME", "SERIAL", "COMMAND", "OK", "RC", "TOOK", "TRY", "OUTPUT"}, historyRows(results)))
	return nil
}

func historyRows(results []command.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Timestamp.Local().Format(time.DateTime),
			r.Serial,
			r.Command,
			ui.Check(r.Success),
			strconv.Itoa(r.ReturnCode),
			r.ExecutionTime.Round(time.Millisecond).String(),
			strconv.Itoa(r.Attempt),
			preview(r),
		})
	}
	return rows
}

// preview is the first output line, preferring stderr for failures.
func preview(r command.Result) string {
	out := r.Stdout
	if !r.Success && strings.TrimSpace(r.Stderr) != "" {
		out = r.Stderr
	}
	return util.TruncateString(util.FirstLine(out), previewWidth)
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	n, err := store.Clear(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Deleted %d recorded result(s)", n))
	return nil
}
