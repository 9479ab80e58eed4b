// Package cmd implements the droidbench command line.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/droidbench/internal/cmd/definition"
	"github.com/Iron-Ham/droidbench/internal/cmd/device"
	"github.com/Iron-Ham/droidbench/internal/cmd/observability"
	"github.com/Iron-Ham/droidbench/internal/config"
	"github.com/Iron-Ham/droidbench/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:   "droidbench",
	Short: "Android emulator orchestration for device testing",
	Long: `droidbench creates Android device definitions, boots emulators for one or
more platform versions, runs verified commands against them and records
every result.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.ConfigureOutput(cmd.OutOrStdout())
	},
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so running devices are stopped before exit.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/droidbench/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	device.Register(rootCmd)
	definition.Register(rootCmd)
	observability.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix(config.EnvPrefix)
	// e.g. DROIDBENCH_EXEC_TIMEOUT for exec.timeout
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}
