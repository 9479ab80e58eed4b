// Package config loads droidbench settings from the config file, the
// environment and built-in defaults through viper.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Iron-Ham/droidbench/internal/avd"
	"github.com/Iron-Ham/droidbench/internal/command"
	"github.com/Iron-Ham/droidbench/internal/emulator"
	"github.com/Iron-Ham/droidbench/internal/validate"
)

// EnvPrefix prefixes every environment override, e.g. DROIDBENCH_EXEC_TIMEOUT
// for exec.timeout.
const EnvPrefix = "DROIDBENCH"

// Config represents the complete droidbench configuration
type Config struct {
	SDK       SDKConfig       `mapstructure:"sdk"`
	Emulator  EmulatorConfig  `mapstructure:"emulator"`
	Exec      ExecConfig      `mapstructure:"exec"`
	Provision ProvisionConfig `mapstructure:"provision"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// SDKConfig controls where the Android SDK and its system images come from
type SDKConfig struct {
	// Root pins the SDK directory. Empty searches ANDROID_HOME, ANDROID_SDK_ROOT
	// and the platform default locations.
	Root string `mapstructure:"root"`
	// ImageVariant is the system image flavor (default: "google_apis")
	ImageVariant string `mapstructure:"image_variant" validate:"required"`
	// ABI is the system image ABI (default: matches the host CPU)
	ABI string `mapstructure:"abi" validate:"oneof=x86_64 arm64-v8a"`
}

// EmulatorConfig controls device definitions and emulator launches
type EmulatorConfig struct {
	// Headless runs emulators without a window (default: true)
	Headless bool `mapstructure:"headless"`
	// MemoryMB is the guest RAM written to new definitions and passed at launch
	MemoryMB int `mapstructure:"memory_mb" validate:"min=512"`
	// GPUMode is the emulator -gpu value (default: "auto")
	GPUMode string `mapstructure:"gpu_mode" validate:"oneof=auto host swiftshader_indirect angle_indirect guest off"`
	// DeviceProfile is the avdmanager hardware profile (default: "pixel_5")
	DeviceProfile string `mapstructure:"device_profile" validate:"required"`
	// NamePrefix prefixes generated definition names (default: "test_android_")
	NamePrefix string `mapstructure:"name_prefix" validate:"required"`

	DiscoveryTimeout  time.Duration `mapstructure:"discovery_timeout" validate:"gt=0"`
	DiscoveryInterval time.Duration `mapstructure:"discovery_interval" validate:"gt=0"`
	BootTimeout       time.Duration `mapstructure:"boot_timeout" validate:"gt=0"`
	BootInterval      time.Duration `mapstructure:"boot_interval" validate:"gt=0"`
}

// ExecConfig controls device command execution
type ExecConfig struct {
	// Timeout bounds each attempt of a device command (default: 30s)
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// RetryAttempts is the total number of attempts per command (default: 2)
	RetryAttempts int `mapstructure:"retry_attempts" validate:"min=1,max=10"`
	// RetryBackoff is the fixed pause between attempts (default: 2s)
	RetryBackoff time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
}

// ProvisionConfig bounds sdkmanager runs
type ProvisionConfig struct {
	DownloadTimeout time.Duration `mapstructure:"download_timeout" validate:"gt=0"`
	LicenseTimeout  time.Duration `mapstructure:"license_timeout" validate:"gt=0"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes JSON logs under the data directory (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" validate:"min=1,max=1000"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups" validate:"gte=0"`
}

// PathsConfig controls where droidbench stores data. Every path supports ~
// for the home directory.
type PathsConfig struct {
	// DataDir holds logs and the history database. Empty means
	// $XDG_DATA_HOME/droidbench or ~/.local/share/droidbench.
	DataDir string `mapstructure:"data_dir"`
	// ScreenshotDir receives pulled screenshots. Empty means the system temp dir.
	ScreenshotDir string `mapstructure:"screenshot_dir"`
	// HistoryDB is the sqlite command history. Empty means <data_dir>/history.db.
	HistoryDB string `mapstructure:"history_db"`
}

// ResolveDataDir returns the expanded data directory.
func (p *PathsConfig) ResolveDataDir() string {
	if p.DataDir != "" {
		return ExpandHome(p.DataDir)
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "droidbench")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".droidbench"
	}
	return filepath.Join(home, ".local", "share", "droidbench")
}

// ResolveHistoryDB returns the expanded history database path.
func (p *PathsConfig) ResolveHistoryDB() string {
	if p.HistoryDB != "" {
		return ExpandHome(p.HistoryDB)
	}
	return filepath.Join(p.ResolveDataDir(), "history.db")
}

// ResolveScreenshotDir returns the expanded screenshot directory, or "" for
// the system temp dir.
func (p *PathsConfig) ResolveScreenshotDir() string {
	return ExpandHome(p.ScreenshotDir)
}

// LogDir returns the directory holding droidbench.log.
func (p *PathsConfig) LogDir() string {
	return filepath.Join(p.ResolveDataDir(), "logs")
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

// EmulatorOptions returns the launch options implied by the config.
func (c *Config) EmulatorOptions() emulator.Options {
	return emulator.Options{
		Headless: c.Emulator.Headless,
		MemoryMB: c.Emulator.MemoryMB,
		GPUMode:  c.Emulator.GPUMode,
	}
}

// HardwareSettings returns the config.ini overrides applied to new definitions.
func (c *Config) HardwareSettings() avd.Settings {
	return avd.Settings{
		MemoryMB: c.Emulator.MemoryMB,
		GPUMode:  c.Emulator.GPUMode,
		Headless: c.Emulator.Headless,
	}
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		SDK: SDKConfig{
			ImageVariant: avd.DefaultVariant,
			ABI:          avd.HostABI(runtime.GOARCH),
		},
		Emulator: EmulatorConfig{
			Headless:          true,
			MemoryMB:          2048,
			GPUMode:           "auto",
			DeviceProfile:     avd.DefaultDeviceProfile,
			NamePrefix:        "test_android_",
			DiscoveryTimeout:  emulator.DefaultDiscoveryTimeout,
			DiscoveryInterval: emulator.DefaultDiscoveryInterval,
			BootTimeout:       emulator.DefaultBootTimeout,
			BootInterval:      emulator.DefaultBootInterval,
		},
		Exec: ExecConfig{
			Timeout:       command.DefaultTimeout,
			RetryAttempts: command.DefaultRetryAttempts,
			RetryBackoff:  command.DefaultRetryBackoff,
		},
		Provision: ProvisionConfig{
			DownloadTimeout: avd.DefaultDownloadTimeout,
			LicenseTimeout:  avd.DefaultLicenseTimeout,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	SetDefaultsOn(viper.GetViper())
}

// SetDefaultsOn registers default values on v.
func SetDefaultsOn(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("sdk.root", defaults.SDK.Root)
	v.SetDefault("sdk.image_variant", defaults.SDK.ImageVariant)
	v.SetDefault("sdk.abi", defaults.SDK.ABI)

	v.SetDefault("emulator.headless", defaults.Emulator.Headless)
	v.SetDefault("emulator.memory_mb", defaults.Emulator.MemoryMB)
	v.SetDefault("emulator.gpu_mode", defaults.Emulator.GPUMode)
	v.SetDefault("emulator.device_profile", defaults.Emulator.DeviceProfile)
	v.SetDefault("emulator.name_prefix", defaults.Emulator.NamePrefix)
	v.SetDefault("emulator.discovery_timeout", defaults.Emulator.DiscoveryTimeout)
	v.SetDefault("emulator.discovery_interval", defaults.Emulator.DiscoveryInterval)
	v.SetDefault("emulator.boot_timeout", defaults.Emulator.BootTimeout)
	v.SetDefault("emulator.boot_interval", defaults.Emulator.BootInterval)

	v.SetDefault("exec.timeout", defaults.Exec.Timeout)
	v.SetDefault("exec.retry_attempts", defaults.Exec.RetryAttempts)
	v.SetDefault("exec.retry_backoff", defaults.Exec.RetryBackoff)

	v.SetDefault("provision.download_timeout", defaults.Provision.DownloadTimeout)
	v.SetDefault("provision.license_timeout", defaults.Provision.LicenseTimeout)

	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	v.SetDefault("paths.data_dir", defaults.Paths.DataDir)
	v.SetDefault("paths.screenshot_dir", defaults.Paths.ScreenshotDir)
	v.SetDefault("paths.history_db", defaults.Paths.HistoryDB)
}

// Validate checks the Config for invalid values and returns every failure
// joined into one error.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "droidbench")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".droidbench"
	}
	return filepath.Join(home, ".config", "droidbench")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
