package definition

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/droidbench/internal/app"
	"github.com/Iron-Ham/droidbench/internal/avd"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List device definitions",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var infoCmd = &cobra.Command{
	Use:   "info <name>",
	Short: "Show one device definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

var createCmd = &cobra.Command{
	Use:   "create <platform>",
	Short: "Create the definition for an Android platform",
	Long: `Create a device definition for an Android API level, downloading its
system image first when needed.

The definition is named <emulator.name_prefix><platform> unless --name is
given. Supported platforms: 31, 33, 34, 35 and 36.

Examples:
  droidbench avd create 34
  droidbench avd create 35 --name pixel_35 --profile pixel_7`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a device definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete definitions created by droidbench",
	Long: `Delete every definition whose name matches a glob pattern.

The default pattern matches the definitions droidbench generates.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var (
	createName    string
	createProfile string
	cleanupGlob   string
)

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Definition name (default: <name_prefix><platform>)")
	createCmd.Flags().StringVar(&createProfile, "profile", "", "Hardware profile (default: emulator.device_profile)")
	cleanupCmd.Flags().StringVar(&cleanupGlob, "pattern", avd.DefaultCleanupPattern, "Glob selecting definitions to delete")
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	defs, err := a.AVDs.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(defs) == 0 {
		fmt.Fprintln(out, ui.InfoMsg("No device definitions"))
		return nil
	}
	rows := make([][]string, 0, len(defs))
	for _, d := range defs {
		rows = append(rows, []string{d.Name, platformLabel(d), d.AndroidVersion, d.RAM, d.DeviceProfile})
	}
	fmt.Fprintln(out, ui.Table([]string{"NAME", "API", "ANDROID", "RAM", "PROFILE"}, rows))
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	d, err := a.AVDs.Info(args[0])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("",
		ui.KV("Name", ui.Bold(d.Name)),
		ui.KV("Path", d.Path),
		ui.KV("API level", platformLabel(*d)),
		ui.KV("Android", d.AndroidVersion),
		ui.KV("RAM", d.RAM),
		ui.KV("Profile", d.DeviceProfile),
	))
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	platform, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid platform %q: expected an API level such as 34", args[0])
	}

	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	name := createName
	if name == "" {
		name = a.DefinitionName(platform)
	}
	profile := createProfile
	if profile == "" {
		profile = a.Config.Emulator.DeviceProfile
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.InfoMsg("Creating %s (%s)...", name, a.Provisioner.ImageID(platform)))
	if err := a.AVDs.Create(cmd.Context(), name, platform, profile); err != nil {
		return err
	}
	fmt.Fprintln(out, ui.SuccessMsg("Created %s", name))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.AVDs.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Deleted %s", args[0]))
	return nil
}

func runCleanup(cmd *cobra.Command, args []string) error {
	a, err := app.Load(app.Options{NoHistory: true})
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	deleted, err := a.AVDs.Cleanup(cmd.Context(), cleanupGlob)
	out := cmd.OutOrStdout()
	for _, name := range deleted {
		fmt.Fprintln(out, ui.SuccessMsg("Deleted %s", name))
	}
	if err != nil {
		return err
	}
	if len(deleted) == 0 {
		fmt.Fprintln(out, ui.InfoMsg("Nothing matched %s", cleanupGlob))
	}
	return nil
}

func platformLabel(d avd.Definition) string {
	if d.PlatformVersion == 0 {
		return avd.UnknownVersion
	}
	return strconv.Itoa(d.PlatformVersion)
}
