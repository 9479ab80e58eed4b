package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/app"
	"github.com/Iron-Ham/droidbench/internal/avd"
	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/sdk"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the Android SDK and its command-line tools",
	Long: `Locate the Android SDK and check every tool droidbench drives.

Exits non-zero when any tool is missing. Each tool path can be pinned with
DROIDBENCH_<TOOL>, e.g. DROIDBENCH_ADB=/opt/platform-tools/adb.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	out := cmd.OutOrStdout()
	root := a.SDK.Root
	if !a.SDK.Found() {
		root = ui.Warn("not found (set ANDROID_HOME)")
	}
	fmt.Fprint(out, ui.KeyValues("",
		ui.KV("SDK root", root),
		ui.KV("AVD home", avd.Home(nil)),
		ui.KV("Image", a.Config.SDK.ImageVariant+" / "+a.Config.SDK.ABI),
		ui.KV("Platforms", fmt.Sprint(avd.SupportedPlatforms())),
	))
	fmt.Fprintln(out)

	checks := a.Checker.Check(cmd.Context())
	rows := make([][]string, 0, len(sdk.Tools))
	for _, tool := range sdk.Tools {
		rows = append(rows, []string{string(tool), ui.Check(checks[string(tool)]), a.SDK.ToolPath(tool)})
	}
	fmt.Fprintln(out, ui.Table([]string{"TOOL", "OK", "PATH"}, rows))

	if missing := sdk.Missing(checks); len(missing) > 0 {
		return fmt.Errorf("%w: %s", errors.ErrPrerequisitesMissing, strings.Join(missing, ", "))
	}
	fmt.Fprintln(out, ui.SuccessMsg("All tools available"))
	return nil
}
