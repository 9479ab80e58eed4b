package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/droidbench/internal/config"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or create droidbench configuration",
	Long: `View or create droidbench configuration.

Without arguments, displays the effective configuration: built-in defaults,
overridden by the config file, overridden by DROIDBENCH_* environment
variables.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a commented config file at ~/.config/droidbench/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

var configInitForce bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)

	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing config file")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if _, err := config.Load(); err != nil {
		return err
	}

	source := viper.ConfigFileUsed()
	if source == "" {
		source = "(none - using defaults)"
	}
	fmt.Fprint(out, ui.KeyValues("", ui.KV("Config file", source)))
	fmt.Fprintln(out)

	keys := viper.AllKeys()
	slices.Sort(keys)
	pairs := make([]ui.Pair, 0, len(keys))
	for _, key := range keys {
		if key == "config" {
			continue
		}
		pairs = append(pairs, ui.KV(key, formatSetting(viper.Get(key))))
	}
	fmt.Fprint(out, ui.KeyValues("  ", pairs...))
	return nil
}

func formatSetting(v any) string {
	switch v := v.(type) {
	case time.Duration:
		return v.String()
	case string:
		if v == "" {
			return ui.Muted(`""`)
		}
		return v
	default:
		return fmt.Sprint(v)
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists at %s\nUse --force to overwrite it", configFile)
	}

	if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content, err := config.Template()
	if err != nil {
		return err
	}
	if err := os.WriteFile(configFile, content, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("Created config file at %s", configFile))
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", config.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", config.ConfigFile())
	fmt.Fprintln(out, "  2. ./config.yaml (current directory)")
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_EXEC_TIMEOUT)\n", config.EnvPrefix, config.EnvPrefix)
	return nil
}
