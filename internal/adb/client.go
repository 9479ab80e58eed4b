// Package adb wraps the Android Debug Bridge invocations used by the
// launcher, the boot monitor and the lifecycle manager.
package adb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// Default per-call deadlines.
const (
	DevicesTimeout  = 5 * time.Second
	EmuKillTimeout  = 10 * time.Second
	SnapshotTimeout = 30 * time.Second
)

// StateDevice is the adb state of a fully attached, usable device.
const StateDevice = "device"

// Device is one row of `adb devices`.
type Device struct {
	Serial string
	State  string
}

// Client runs adb commands against attached devices.
type Client struct {
	path   string
	runner runner.Runner
	logger *logging.Logger
}

// New creates a Client invoking the adb binary at path.
func New(path string, r runner.Runner, logger *logging.Logger) *Client {
	if path == "" {
		path = "adb"
	}
	return &Client{path: path, runner: r, logger: logger}
}

// Path returns the adb binary the client invokes.
func (c *Client) Path() string { return c.path }

// Run executes `adb [-s serial] args...` with the given timeout. A zero
// timeout means the caller's ctx is the only bound. Non-zero exits are
// returned as *errors.ToolError alongside the result.
func (c *Client) Run(ctx context.Context, serial string, timeout time.Duration, args ...string) (runner.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	argv := args
	if serial != "" {
		argv = append([]string{"-s", serial}, args...)
	}

	res, err := c.runner.Run(ctx, runner.Cmd{Name: c.path, Args: argv})
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, errors.NewToolError("adb", res.ExitCode, firstNonEmpty(res.Stderr, res.Stdout))
	}
	return res, nil
}

// Devices lists every device adb knows about, whatever its state.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	res, err := c.Run(ctx, "", DevicesTimeout, "devices")
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return ParseDevices(res.Stdout), nil
}

// Attached returns the serials of devices in the "device" state.
func (c *Client) Attached(ctx context.Context) ([]string, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return nil, err
	}
	var serials []string
	for _, d := range devices {
		if d.State == StateDevice {
			serials = append(serials, d.Serial)
		}
	}
	return serials, nil
}

// ParseDevices parses `adb devices` output. The header line and anything
// that is not a tab-separated serial/state pair are ignored.
func ParseDevices(out string) []Device {
	var devices []Device
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		serial, state, ok := strings.Cut(line, "\t")
		if !ok {
			continue
		}
		devices = append(devices, Device{Serial: strings.TrimSpace(serial), State: strings.TrimSpace(state)})
	}
	return devices
}

// Shell runs `adb -s serial shell args...`.
func (c *Client) Shell(ctx context.Context, serial string, timeout time.Duration, args ...string) (runner.Result, error) {
	return c.Run(ctx, serial, timeout, append([]string{"shell"}, args...)...)
}

// GetProp returns the trimmed value of a system property.
func (c *Client) GetProp(ctx context.Context, serial, prop string, timeout time.Duration) (string, error) {
	res, err := c.Shell(ctx, serial, timeout, "getprop", prop)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// EmuKill asks the emulator console to shut the device down.
func (c *Client) EmuKill(ctx context.Context, serial string) error {
	_, err := c.Run(ctx, serial, EmuKillTimeout, "emu", "kill")
	return err
}

// SnapshotSave saves the running emulator state under name.
func (c *Client) SnapshotSave(ctx context.Context, serial, name string) error {
	return c.snapshot(ctx, serial, "save", name)
}

// SnapshotLoad restores the emulator state saved under name.
func (c *Client) SnapshotLoad(ctx context.Context, serial, name string) error {
	return c.snapshot(ctx, serial, "load", name)
}

func (c *Client) snapshot(ctx context.Context, serial, action, name string) error {
	log := c.logger.WithDevice(serial)
	log.Info("snapshot "+action, "name", name)

	if _, err := c.Run(ctx, serial, SnapshotTimeout, "emu", "avd", "snapshot", action, name); err != nil {
		log.Error("snapshot "+action+" failed", "name", name, "error", err.Error())
		return fmt.Errorf("snapshot %s %q: %w", action, name, err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
