package emulator

import (
	"context"
	"time"

	"github.com/Iron-Ham/droidbench/internal/adb"
	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/poll"
)

// Boot detection defaults.
const (
	DefaultBootInterval = 3 * time.Second
	DefaultBootTimeout  = 120 * time.Second
	DefaultCheckTimeout = 5 * time.Second
)

// BootConfig configures a BootMonitor.
type BootConfig struct {
	Interval     time.Duration
	Timeout      time.Duration
	CheckTimeout time.Duration
}

// BootMonitor decides when a device is usable.
type BootMonitor struct {
	cfg    BootConfig
	adb    *adb.Client
	logger *logging.Logger
}

// NewBootMonitor creates a BootMonitor. Zero durations take the defaults.
func NewBootMonitor(cfg BootConfig, client *adb.Client, logger *logging.Logger) *BootMonitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultBootInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultBootTimeout
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}
	return &BootMonitor{cfg: cfg, adb: client, logger: logger}
}

// WaitForBoot polls serial until sys.boot_completed is "1" and the package
// manager answers within the same attempt. It returns an error matching
// errors.ErrBootTimeout when that never happens before the timeout, or
// ctx.Err() when ctx is cancelled first.
func (m *BootMonitor) WaitForBoot(ctx context.Context, serial string) error {
	log := m.logger.WithDevice(serial).WithPhase("boot")
	log.Info("waiting for boot", "timeout", m.cfg.Timeout.String())

	start := time.Now()
	err := poll.Until(ctx, poll.Options{
		Interval:  m.cfg.Interval,
		Timeout:   m.cfg.Timeout,
		Immediate: true,
	}, func(ctx context.Context) (bool, error) {
		return m.Booted(ctx, serial), nil
	})
	if err == nil {
		log.Info("device booted", "elapsed", time.Since(start).Round(time.Millisecond).String())
		return nil
	}
	if errors.Is(err, poll.ErrTimeout) {
		log.Error("boot not confirmed", "timeout", m.cfg.Timeout.String())
		return errors.NewTimeoutError("waiting for "+serial+" to boot", m.cfg.Timeout).
			WithCause(errors.ErrBootTimeout)
	}
	return err
}

// Booted runs a single boot check.
func (m *BootMonitor) Booted(ctx context.Context, serial string) bool {
	completed, err := m.adb.GetProp(ctx, serial, "sys.boot_completed", m.cfg.CheckTimeout)
	if err != nil || completed != "1" {
		return false
	}
	_, err = m.adb.Shell(ctx, serial, m.cfg.CheckTimeout, "pm", "list", "packages")
	return err == nil
}
