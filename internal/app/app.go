// Package app wires droidbench's components together from a loaded
// configuration. Commands build one App per invocation and Close it on exit.
package app

import (
	"fmt"
	"os"
	"sync"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/droidbench/internal/adb"
	"github.com/Iron-Ham/droidbench/internal/avd"
	"github.com/Iron-Ham/droidbench/internal/command"
	"github.com/Iron-Ham/droidbench/internal/config"
	"github.com/Iron-Ham/droidbench/internal/emulator"
	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/history"
	"github.com/Iron-Ham/droidbench/internal/lifecycle"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/sdk"
	"github.com/Iron-Ham/droidbench/internal/suite"
)

// Options replace the host-facing pieces of an App. Zero values select the
// real host.
type Options struct {
	Runner runner.Runner
	Fs     afero.Fs
	Logger *logging.Logger
	SDK    *sdk.SDK
	// AVDHome overrides the directory holding <name>.avd folders.
	AVDHome string
	// NoHistory keeps command results in memory only.
	NoHistory bool
}

// App holds one fully wired set of components.
type App struct {
	Config      *config.Config
	Logger      *logging.Logger
	SDK         *sdk.SDK
	Runner      runner.Runner
	ADB         *adb.Client
	Checker     *sdk.Checker
	Provisioner *avd.Provisioner
	AVDs        *avd.Manager
	Launcher    *emulator.Launcher
	Boot        *emulator.BootMonitor
	Lifecycle   *lifecycle.Manager
	Engine      *command.Engine

	noHistory bool
	ownLogger bool

	mu      sync.Mutex
	history *history.Store
}

// New builds an App from cfg.
func New(cfg *config.Config, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: opts.Logger, noHistory: opts.NoHistory}

	if a.Logger == nil {
		logger, err := newLogger(cfg)
		if err != nil {
			return nil, err
		}
		a.Logger = logger
		a.ownLogger = true
	}

	a.SDK = opts.SDK
	if a.SDK == nil {
		located, err := sdk.Locate(cfg.SDK.Root)
		if err != nil && !errors.Is(err, errors.ErrSDKNotFound) {
			return nil, err
		}
		if err := located.PrependPath(a.Logger); err != nil {
			return nil, err
		}
		a.SDK = located
	}

	a.Runner = opts.Runner
	if a.Runner == nil {
		a.Runner = runner.New(a.Logger)
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	home := opts.AVDHome
	if home == "" {
		home = avd.Home(os.Getenv)
	}

	adbPath := a.SDK.ToolPath(sdk.ADB)
	a.ADB = adb.New(adbPath, a.Runner, a.Logger)
	a.Checker = sdk.NewChecker(a.SDK, a.Runner, a.Logger)
	a.Provisioner = avd.NewProvisioner(avd.ProvisionerConfig{
		SDKManager:      a.SDK.ToolPath(sdk.SDKManager),
		Variant:         cfg.SDK.ImageVariant,
		ABI:             cfg.SDK.ABI,
		LicenseTimeout:  cfg.Provision.LicenseTimeout,
		DownloadTimeout: cfg.Provision.DownloadTimeout,
	}, a.Runner, a.Logger)
	a.AVDs = avd.NewManager(avd.ManagerConfig{
		AVDManager: a.SDK.ToolPath(sdk.AVDManager),
		Emulator:   a.SDK.ToolPath(sdk.Emulator),
		Home:       home,
		Settings:   cfg.HardwareSettings(),
	}, fs, a.Runner, a.Provisioner, a.Logger)
	a.Launcher = emulator.NewLauncher(emulator.LauncherConfig{
		Emulator:          a.SDK.ToolPath(sdk.Emulator),
		DiscoveryInterval: cfg.Emulator.DiscoveryInterval,
		DiscoveryTimeout:  cfg.Emulator.DiscoveryTimeout,
	}, a.ADB, a.Runner, a.Logger)
	a.Boot = emulator.NewBootMonitor(emulator.BootConfig{
		Interval: cfg.Emulator.BootInterval,
		Timeout:  cfg.Emulator.BootTimeout,
	}, a.ADB, a.Logger)
	a.Lifecycle = lifecycle.NewManager(lifecycle.Deps{
		Prerequisites: a.Checker,
		Definitions:   a.AVDs,
		Launcher:      a.Launcher,
		Boot:          a.Boot,
		Control:       a.ADB,
		Logger:        a.Logger,
	})
	a.Engine = command.NewEngine(command.Config{
		ADB:           adbPath,
		Timeout:       cfg.Exec.Timeout,
		RetryAttempts: cfg.Exec.RetryAttempts,
		RetryBackoff:  cfg.Exec.RetryBackoff,
		ScreenshotDir: cfg.Paths.ResolveScreenshotDir(),
	}, a.Runner, a.Logger)

	if !a.noHistory {
		store, err := a.History()
		if err != nil {
			a.Logger.Warn("command history disabled", "error", err)
		} else {
			a.Engine.SetRecorder(store)
		}
	}
	return a, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	rotation := logging.DefaultRotationConfig()
	rotation.MaxSizeMB = cfg.Logging.MaxSizeMB
	rotation.MaxBackups = cfg.Logging.MaxBackups

	dir := cfg.Paths.LogDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return logging.NewLoggerWithRotation(dir, cfg.Logging.Level, rotation)
}

// History opens the command history database on first use.
func (a *App) History() (*history.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.history != nil {
		return a.history, nil
	}
	store, err := history.Open(a.Config.Paths.ResolveHistoryDB())
	if err != nil {
		return nil, err
	}
	a.history = store
	return store, nil
}

// DefinitionName returns the definition droidbench uses for platform.
func (a *App) DefinitionName(platform int) string {
	return avd.DefinitionName(a.Config.Emulator.NamePrefix, platform)
}

// Request builds a lifecycle request for the generated definition of
// platform.
func (a *App) Request(platform int, opts emulator.Options) lifecycle.Request {
	return lifecycle.Request{
		Name:            a.DefinitionName(platform),
		PlatformVersion: platform,
		DeviceProfile:   a.Config.Emulator.DeviceProfile,
		Options:         opts,
	}
}

// SuiteRunner returns a suite runner over the App's engine.
func (a *App) SuiteRunner() *suite.Runner {
	return suite.NewRunner(a.Engine, a.Logger)
}

// Close releases the history database and the log file.
func (a *App) Close() error {
	a.mu.Lock()
	store := a.history
	a.history = nil
	a.mu.Unlock()

	var errs []error
	if store != nil {
		errs = append(errs, store.Close())
	}
	if a.ownLogger {
		errs = append(errs, a.Logger.Close())
	}
	return errors.Join(errs...)
}

// Load builds an App from the configuration currently held by viper.
func Load(opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}
