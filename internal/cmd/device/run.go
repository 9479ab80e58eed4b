package device

import (
	"fmt"
	"strconv"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/app"
	"github.com/Iron-Ham/droidbench/internal/suite"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot one emulator per platform and run a suite on each",
	Long: `For every --platform, ensure the generated definition exists, boot it on
its own console port, run a verification suite and shut it down. Platforms
run concurrently.

Without --suite the built-in smoke suite runs. Suite files are YAML:

  name: login
  steps:
    - name: app installed
      command: shell pm list packages com.example.app
      expect: "package:com.example.app"
    - command: shell am start -W com.example.app/.Main
      timeout: 60s
      attempts: 3
      screenshot: true

Examples:
  droidbench run --platform 34
  droidbench run -p 33 -p 34 -p 35 --suite checks.yaml`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var (
	runPlatforms []int
	runSuiteFile string
	runKeep      bool
	runBasePort  int
)

func init() {
	runCmd.Flags().IntSliceVarP(&runPlatforms, "platform", "p", nil, "Android API level (repeatable)")
	runCmd.Flags().StringVar(&runSuiteFile, "suite", "", "Suite file (default: built-in smoke suite)")
	runCmd.Flags().BoolVar(&runKeep, "keep", false, "Leave devices running after their suite")
	runCmd.Flags().IntVar(&runBasePort, "base-port", app.FirstLanePort, "Console port of the first platform")
	_ = runCmd.MarkFlagRequired("platform")
}

// RegisterRunCmd registers the run command with the given parent command.
func RegisterRunCmd(parent *cobra.Command) {
	parent.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	s := suite.Smoke()
	if runSuiteFile != "" {
		loaded, err := suite.Load(afero.NewOsFs(), runSuiteFile)
		if err != nil {
			return err
		}
		s = loaded
	}

	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	lanes := app.PlanLanes(runPlatforms, runBasePort)
	out := cmd.OutOrStdout()
	for _, lane := range lanes {
		fmt.Fprintln(out, ui.InfoMsg("android %d on port %d", lane.Platform, lane.Port))
	}

	results, runErr := a.RunLanes(cmd.Context(), lanes, app.RunOptions{
		Suite:   s,
		Options: a.Config.EmulatorOptions(),
		Keep:    runKeep,
	})

	fmt.Fprintln(out)
	fmt.Fprintln(out, ui.Table([]string{"PLATFORM", "SERIAL", "PASSED", "FAILED", "SKIPPED", "RESULT"}, laneRows(results)))
	for _, res := range results {
		printFailures(cmd, res)
	}

	if runErr != nil {
		return runErr
	}
	for _, res := range results {
		if !res.Passed() {
			return fmt.Errorf("suite %q failed on android %d", s.Name, res.Lane.Platform)
		}
	}
	fmt.Fprintln(out, ui.SuccessMsg("suite %q passed on %d platform(s)", s.Name, len(results)))
	return nil
}

func laneRows(results []app.LaneResult) [][]string {
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		row := []string{strconv.Itoa(res.Lane.Platform), "-", "-", "-", "-", ui.Status("failed")}
		if res.Record != nil {
			row[1] = res.Record.Serial
		}
		if res.Report != nil {
			passed, failed, skipped := res.Report.Counts()
			row[2], row[3], row[4] = strconv.Itoa(passed), strconv.Itoa(failed), strconv.Itoa(skipped)
		}
		if res.Passed() {
			row[5] = ui.Status("passed")
		}
		rows = append(rows, row)
	}
	return rows
}

func printFailures(cmd *cobra.Command, res app.LaneResult) {
	out := cmd.OutOrStdout()
	if res.Err != nil {
		fmt.Fprintln(out, ui.ErrorMsg("%v", res.Err))
		return
	}
	if res.Report == nil {
		return
	}
	for _, step := range res.Report.Steps {
		if step.Passed || step.Skipped {
			continue
		}
		fmt.Fprintln(out, ui.ErrorMsg("android %d: %s: %s", res.Lane.Platform, step.Step.Label(), step.Message))
	}
}
