// Package testutil provides shared fixtures for droidbench tests: a scripted
// emulator host on top of runnertest and device definitions on an afero
// filesystem.
package testutil

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/droidbench/internal/emulator"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/runner/runnertest"
)

// FirstPort is the console port the first unpinned emulator gets.
const FirstPort = 5554

// Host is a runnertest.Fake scripted to behave like a machine with the SDK
// installed: every emulator process started through it shows up on
// `adb devices` until it is terminated, reports a completed boot and answers
// the built-in smoke suite.
// Rules registered later on the embedded Fake take precedence.
type Host struct {
	*runnertest.Fake
}

// NewHost returns a Host with no running emulators.
func NewHost() *Host {
	h := &Host{Fake: runnertest.New()}
	h.On(" devices", h.devices)
	h.OnStdout("getprop sys.boot_completed", "1\n")
	h.OnStdout("pm list packages", "package:com.android.settings\n")
	h.OnStdout("getprop ro.build.version.release", "14\n")
	h.OnStdout("wm size", "Physical size: 1080x2400\n")
	return h
}

func (h *Host) devices(context.Context, runner.Cmd) (runner.Result, error) {
	var sb strings.Builder
	sb.WriteString("List of devices attached\n")
	for _, serial := range h.Online() {
		sb.WriteString(serial + "\tdevice\n")
	}
	return runner.Result{Stdout: sb.String()}, nil
}

// Online returns the serials of started emulators that have not exited.
// Emulators launched without -port take consecutive even ports from
// FirstPort in start order.
func (h *Host) Online() []string {
	var serials []string
	for i, p := range h.Started() {
		if p.Exited() {
			continue
		}
		port := FirstPort + 2*i
		if pinned, ok := portArg(p.Cmd.Args); ok {
			port = pinned
		}
		serials = append(serials, emulator.SerialForPort(port))
	}
	return serials
}

func portArg(args []string) (int, bool) {
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-port" {
			port, err := strconv.Atoi(args[i+1])
			return port, err == nil
		}
	}
	return 0, false
}

// WriteDefinition creates <home>/<name>.avd/config.ini for a definition
// built from the google_apis x86_64 image of platform.
func WriteDefinition(t *testing.T, fs afero.Fs, home, name string, platform int) {
	t.Helper()

	content := fmt.Sprintf("AvdId=%s\nimage.sysdir.1=system-images/android-%d/google_apis/x86_64/\nhw.ramSize=2048\nhw.device.name=pixel_5\n", name, platform)
	path := filepath.Join(home, name+".avd", "config.ini")
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create definition dir: %v", err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write definition: %v", err)
	}
}

// SkipIfNoADB skips the test if adb is not installed.
func SkipIfNoADB(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("adb"); err != nil {
		t.Skip("adb not found in PATH, skipping test")
	}
}

// SkipIfNoEmulator skips the test if the emulator binary is not installed.
func SkipIfNoEmulator(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("emulator"); err != nil {
		t.Skip("emulator not found in PATH, skipping test")
	}
}

// SkipIfNoGolangciLint skips the test if golangci-lint is not installed.
func SkipIfNoGolangciLint(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("golangci-lint"); err != nil {
		t.Skip("golangci-lint not found in PATH, skipping test")
	}
}
