// Package emulator spawns emulator processes, discovers the adb serial each
// new process registers under and waits for the guest OS to finish booting.
package emulator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Iron-Ham/droidbench/internal/adb"
	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/poll"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// Discovery defaults.
const (
	DefaultDiscoveryInterval = 2 * time.Second
	DefaultDiscoveryTimeout  = 120 * time.Second
)

// errProcessExited is reported when the emulator dies before any new
// device shows up.
var errProcessExited = errors.New("emulator process exited before registering a device")

// LauncherConfig configures a Launcher.
type LauncherConfig struct {
	// Emulator is the emulator binary. Defaults to "emulator".
	Emulator string
	// DiscoveryInterval is the pause between adb device listings.
	DiscoveryInterval time.Duration
	// DiscoveryTimeout bounds the wait for a new serial.
	DiscoveryTimeout time.Duration
}

// Launch describes an emulator process that registered with adb.
type Launch struct {
	Name    string
	Serial  string
	Args    []string
	Process runner.Process
}

// Launcher starts emulator processes.
type Launcher struct {
	cfg    LauncherConfig
	adb    *adb.Client
	runner runner.Runner
	logger *logging.Logger
}

// NewLauncher creates a Launcher. Zero durations in cfg take the defaults.
func NewLauncher(cfg LauncherConfig, client *adb.Client, r runner.Runner, logger *logging.Logger) *Launcher {
	if cfg.Emulator == "" {
		cfg.Emulator = "emulator"
	}
	if cfg.DiscoveryInterval <= 0 {
		cfg.DiscoveryInterval = DefaultDiscoveryInterval
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = DefaultDiscoveryTimeout
	}
	return &Launcher{cfg: cfg, adb: client, runner: r, logger: logger}
}

// Start spawns an emulator for the named definition and waits until adb
// reports a serial that was not attached before the spawn. When several new
// serials appear in the same listing the lexicographically smallest wins.
// With opts.Port set only the serial of that console port is accepted, so
// concurrent launches on distinct ports cannot pick up each other's device.
//
// If no new serial appears within the discovery timeout the process is
// terminated and the returned error matches errors.ErrDiscoveryTimeout.
func (l *Launcher) Start(ctx context.Context, name string, opts Options) (*Launch, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid launch options for %s: %w", name, err)
	}
	log := l.logger.WithDefinition(name).WithPhase("launch")

	before, err := l.adb.Attached(ctx)
	if err != nil {
		// A failed listing is an empty snapshot.
		log.Warn("could not list devices before launch", "error", err.Error())
	}
	known := make(map[string]bool, len(before))
	for _, s := range before {
		known[s] = true
	}

	args := opts.Args(name)
	proc, err := l.runner.Start(runner.Cmd{Name: l.cfg.Emulator, Args: args})
	if err != nil {
		return nil, errors.NewDeviceError("failed to spawn emulator", err).WithDefinition(name)
	}
	log.Info("emulator spawned", "pid", proc.Pid(), "known_devices", len(before))

	var pinned string
	if opts.Port != 0 {
		pinned = SerialForPort(opts.Port)
	}

	var serial string
	err = poll.Until(ctx, poll.Options{
		Interval: l.cfg.DiscoveryInterval,
		Timeout:  l.cfg.DiscoveryTimeout,
	}, func(ctx context.Context) (bool, error) {
		if proc.Exited() {
			return false, errProcessExited
		}
		current, err := l.adb.Attached(ctx)
		if err != nil {
			log.Debug("device listing failed", "error", err.Error())
			return false, nil
		}
		var fresh []string
		for _, s := range current {
			if known[s] || (pinned != "" && s != pinned) {
				continue
			}
			fresh = append(fresh, s)
		}
		if len(fresh) == 0 {
			return false, nil
		}
		serial = slices.Min(fresh)
		return true, nil
	})

	switch {
	case err == nil:
		log.Info("device registered", logging.KeySerial, serial)
		return &Launch{Name: name, Serial: serial, Args: args, Process: proc}, nil
	case errors.Is(err, poll.ErrTimeout):
		log.Error("no device appeared", "timeout", l.cfg.DiscoveryTimeout.String())
		l.terminate(proc, log)
		return nil, errors.NewTimeoutError("waiting for "+name+" to register with adb", l.cfg.DiscoveryTimeout).
			WithCause(errors.ErrDiscoveryTimeout)
	default:
		l.terminate(proc, log)
		return nil, errors.NewDeviceError("device discovery aborted", err).WithDefinition(name)
	}
}

func (l *Launcher) terminate(proc runner.Process, log *logging.Logger) {
	if err := proc.Terminate(); err != nil {
		log.Warn("failed to terminate emulator", "pid", proc.Pid(), "error", err.Error())
	}
}
