package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/command"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var execCmd = &cobra.Command{
	Use:   "exec -s <serial> -- <command...>",
	Short: "Run an adb command against a device",
	Long: `Run an adb command against one device. "adb" and "-s <serial>" are added
when missing, so the command can be written as it would follow "adb".

Failed attempts are retried after exec.retry_backoff. Every attempt is
stored in the command history.

Examples:
  droidbench exec -s emulator-5554 -- shell getprop ro.product.model
  droidbench exec -s emulator-5554 --retries 3 --screenshot -- install app.apk
  droidbench exec -s emulator-5554 --root -- setenforce 0`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

var verifyCmd = &cobra.Command{
	Use:   "verify -s <serial> --pattern <regex> -- <command...>",
	Short: "Run a command and check its output against a pattern",
	Long: `Run an adb command and search its stdout for a case-insensitive regular
expression. Exits non-zero when the command fails or the pattern is absent.

Example:
  droidbench verify -s emulator-5554 --pattern '^1' -- shell getprop sys.boot_completed`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

var (
	execSerial     string
	execTimeout    time.Duration
	execRetries    int
	execScreenshot bool
	execRoot       bool
	verifyPattern  string
)

func init() {
	addSerialFlag(execCmd, &execSerial)
	execCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "Per-attempt timeout (default: exec.timeout)")
	execCmd.Flags().IntVar(&execRetries, "retries", 0, "Total attempts (default: exec.retry_attempts)")
	execCmd.Flags().BoolVar(&execScreenshot, "screenshot", false, "Capture a screenshot after the final attempt")
	execCmd.Flags().BoolVar(&execRoot, "root", false, "Run the arguments as a root shell command (su -c)")

	addSerialFlag(verifyCmd, &execSerial)
	verifyCmd.Flags().StringVar(&verifyPattern, "pattern", "", "Regular expression expected in stdout (required)")
	verifyCmd.Flags().DurationVar(&execTimeout, "timeout", 0, "Per-attempt timeout (default: exec.timeout)")
	_ = verifyCmd.MarkFlagRequired("pattern")
}

// RegisterExecCmds registers the exec and verify commands with the given
// parent command.
func RegisterExecCmds(parent *cobra.Command) {
	parent.AddCommand(execCmd)
	parent.AddCommand(verifyCmd)
}

func execOptions() []command.Option {
	var opts []command.Option
	if execTimeout > 0 {
		opts = append(opts, command.WithTimeout(execTimeout))
	}
	if execRetries > 0 {
		opts = append(opts, command.WithRetryAttempts(execRetries))
	}
	if execScreenshot {
		opts = append(opts, command.WithScreenshot())
	}
	return opts
}

// commandLine rebuilds the argv after "--" as one host shell line, keeping
// each argument intact.
func commandLine(args []string) string {
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = runner.Quote(a)
	}
	return strings.Join(quoted, " ")
}

func runExec(cmd *cobra.Command, args []string) error {
	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	line := commandLine(args)
	var res command.Result
	if execRoot {
		res = a.Engine.ExecuteShell(cmd.Context(), line, execSerial, true, execOptions()...)
	} else {
		res = a.Engine.Execute(cmd.Context(), line, execSerial, execOptions()...)
	}

	fmt.Fprint(cmd.OutOrStdout(), res.Stdout)
	fmt.Fprint(cmd.ErrOrStderr(), res.Stderr)
	if res.ScreenshotPath != "" {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.InfoMsg("screenshot: %s", res.ScreenshotPath))
	}
	if !res.Success {
		return fmt.Errorf("command failed after %d attempt(s) with exit code %d", res.Attempt, res.ReturnCode)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	a, err := loadApp(true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ok, msg := a.Engine.VerifyOutputPattern(cmd.Context(), commandLine(args), execSerial, verifyPattern, execOptions()...)
	if !ok {
		return fmt.Errorf("verification failed: %s", msg)
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("%s", msg))
	return nil
}
