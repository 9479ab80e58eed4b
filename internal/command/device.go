package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/droidbench/internal/runner"
)

// ExecuteShell runs shellCommand on the device, through su when asRoot is
// set.
func (e *Engine) ExecuteShell(ctx context.Context, shellCommand, serial string, asRoot bool, opts ...Option) Result {
	if asRoot {
		return e.Execute(ctx, "shell su -c "+runner.Quote(shellCommand), serial, opts...)
	}
	return e.Execute(ctx, "shell "+shellCommand, serial, opts...)
}

// DeviceInfo describes an attached device. Fields the device did not
// report are empty.
type DeviceInfo struct {
	Serial           string `json:"serial"`
	Model            string `json:"model"`
	Manufacturer     string `json:"manufacturer"`
	AndroidVersion   string `json:"android_version"`
	APILevel         string `json:"api_level"`
	BuildID          string `json:"build_id"`
	ScreenResolution string `json:"screen_resolution"`
	ScreenDensity    string `json:"screen_density"`
}

// DeviceInfo queries build properties and display metrics of serial.
func (e *Engine) DeviceInfo(ctx context.Context, serial string) DeviceInfo {
	info := DeviceInfo{Serial: serial}
	props := []struct {
		prop string
		dst  *string
	}{
		{"ro.product.model", &info.Model},
		{"ro.product.manufacturer", &info.Manufacturer},
		{"ro.build.version.release", &info.AndroidVersion},
		{"ro.build.version.sdk", &info.APILevel},
		{"ro.build.id", &info.BuildID},
	}
	for _, p := range props {
		if v, ok := e.GetProperty(ctx, p.prop, serial); ok {
			*p.dst = v
		}
	}

	if res := e.Execute(ctx, "shell wm size", serial); res.Success {
		info.ScreenResolution = after(res.Stdout, "Physical size:")
	}
	if res := e.Execute(ctx, "shell wm density", serial); res.Success {
		info.ScreenDensity = after(res.Stdout, "Physical density:")
	}
	return info
}

func after(s, marker string) string {
	_, rest, ok := strings.Cut(s, marker)
	if !ok {
		return ""
	}
	return strings.TrimSpace(rest)
}

// CheckAvailability reports whether command can run on serial. Shell
// commands are looked up with `which`; anything else must answer one of the
// usual help or version flags.
func (e *Engine) CheckAvailability(ctx context.Context, command, serial string) bool {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return false
	}
	if fields[0] == "shell" {
		if len(fields) < 2 {
			return false
		}
		res := e.Execute(ctx, "shell which "+fields[1], serial)
		return res.Success && strings.TrimSpace(res.Stdout) != ""
	}
	for _, flag := range []string{"--help", "-h", "--version", "-v"} {
		if e.Execute(ctx, fields[0]+" "+flag, serial).Success {
			return true
		}
	}
	return false
}

// InstallAPK installs the APK at path, replacing an existing install when
// replace is set.
func (e *Engine) InstallAPK(ctx context.Context, path, serial string, replace bool) Result {
	if replace {
		return e.Execute(ctx, "install -r "+runner.Quote(path), serial)
	}
	return e.Execute(ctx, "install "+runner.Quote(path), serial)
}

// Uninstall removes pkg from the device.
func (e *Engine) Uninstall(ctx context.Context, pkg, serial string) Result {
	return e.Execute(ctx, "uninstall "+pkg, serial)
}

// PackageFilter narrows ListPackages.
type PackageFilter int

const (
	AllPackages PackageFilter = iota
	SystemPackages
	ThirdPartyPackages
)

// ListPackages returns installed package names. A failed listing yields
// nil.
func (e *Engine) ListPackages(ctx context.Context, serial string, filter PackageFilter) []string {
	cmd := "shell pm list packages"
	switch filter {
	case SystemPackages:
		cmd += " -s"
	case ThirdPartyPackages:
		cmd += " -3"
	}

	res := e.Execute(ctx, cmd, serial)
	if !res.Success {
		return nil
	}
	var pkgs []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if name, ok := strings.CutPrefix(strings.TrimSpace(line), "package:"); ok {
			pkgs = append(pkgs, name)
		}
	}
	return pkgs
}

// Push copies a host file to the device.
func (e *Engine) Push(ctx context.Context, localPath, devicePath, serial string) Result {
	return e.Execute(ctx, "push "+runner.Quote(localPath)+" "+runner.Quote(devicePath), serial)
}

// Pull copies a device file to the host.
func (e *Engine) Pull(ctx context.Context, devicePath, localPath, serial string) Result {
	return e.Execute(ctx, "pull "+runner.Quote(devicePath)+" "+runner.Quote(localPath), serial)
}

// Forward forwards a host TCP port to a device port.
func (e *Engine) Forward(ctx context.Context, localPort, devicePort int, serial string) Result {
	return e.Execute(ctx, fmt.Sprintf("forward tcp:%d tcp:%d", localPort, devicePort), serial)
}

// Reverse forwards a device TCP port to a host port.
func (e *Engine) Reverse(ctx context.Context, devicePort, localPort int, serial string) Result {
	return e.Execute(ctx, fmt.Sprintf("reverse tcp:%d tcp:%d", devicePort, localPort), serial)
}

// Logcat dumps the last lines of the log buffer, optionally narrowed by a
// filter expression such as "ActivityManager:I *:S".
func (e *Engine) Logcat(ctx context.Context, serial string, lines int, filter string) Result {
	cmd := fmt.Sprintf("logcat -d -t %d", lines)
	if filter != "" {
		cmd += " " + filter
	}
	return e.Execute(ctx, cmd, serial)
}

// ClearLogcat empties the log buffer.
func (e *Engine) ClearLogcat(ctx context.Context, serial string) Result {
	return e.Execute(ctx, "logcat -c", serial)
}

// SetProperty sets a system property as root.
func (e *Engine) SetProperty(ctx context.Context, name, value, serial string) Result {
	return e.ExecuteShell(ctx, "setprop "+name+" "+value, serial, true)
}

// GetProperty reads a system property.
func (e *Engine) GetProperty(ctx context.Context, name, serial string) (string, bool) {
	res := e.ExecuteShell(ctx, "getprop "+name, serial, false)
	if !res.Success {
		return "", false
	}
	return strings.TrimSpace(res.Stdout), true
}

// Reboot restarts the device. mode may be "", "bootloader" or "recovery".
func (e *Engine) Reboot(ctx context.Context, serial, mode string) Result {
	if mode == "" {
		return e.Execute(ctx, "reboot", serial)
	}
	return e.Execute(ctx, "reboot "+mode, serial)
}
