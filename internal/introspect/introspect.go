// Package introspect reads battery and network state from a device and
// simulates user input, all through a command.Engine.
package introspect

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/droidbench/internal/command"
)

// Device wraps an engine bound to one serial.
type Device struct {
	engine *command.Engine
	serial string
}

// New returns helpers for serial.
func New(engine *command.Engine, serial string) *Device {
	return &Device{engine: engine, serial: serial}
}

// Serial returns the device the helpers target.
func (d *Device) Serial() string { return d.serial }

// BatteryInfo returns the key/value pairs of `dumpsys battery`. A failed
// dump yields an empty map.
func (d *Device) BatteryInfo(ctx context.Context) map[string]string {
	info := make(map[string]string)
	res := d.engine.ExecuteShell(ctx, "dumpsys battery", d.serial, false)
	if !res.Success {
		return info
	}
	for _, line := range strings.Split(res.Stdout, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		info[key] = strings.TrimSpace(value)
	}
	return info
}

// SimulateBatteryLevel overrides the reported battery level.
func (d *Device) SimulateBatteryLevel(ctx context.Context, level int) command.Result {
	return d.engine.ExecuteShell(ctx, fmt.Sprintf("dumpsys battery set level %d", level), d.serial, false)
}

// ResetBattery returns battery reporting to the real values.
func (d *Device) ResetBattery(ctx context.Context) command.Result {
	return d.engine.ExecuteShell(ctx, "dumpsys battery reset", d.serial, false)
}

// NetworkInfo summarizes connectivity.
type NetworkInfo struct {
	WifiConnected   bool `json:"wifi_connected"`
	MobileConnected bool `json:"mobile_connected"`
	AirplaneMode    bool `json:"airplane_mode"`
}

// NetworkInfo inspects `dumpsys connectivity` and the airplane mode
// property.
func (d *Device) NetworkInfo(ctx context.Context) NetworkInfo {
	var info NetworkInfo
	if res := d.engine.ExecuteShell(ctx, "dumpsys connectivity", d.serial, false); res.Success {
		info.WifiConnected = strings.Contains(res.Stdout, "Wi-Fi is enabled")
		info.MobileConnected = strings.Contains(res.Stdout, "Mobile network is available")
	}
	airplane, _ := d.engine.GetProperty(ctx, "persist.radio.airplane_mode_on", d.serial)
	info.AirplaneMode = airplane == "1"
	return info
}

// ToggleWifi enables or disables Wi-Fi as root.
func (d *Device) ToggleWifi(ctx context.Context, enable bool) command.Result {
	action := "disable"
	if enable {
		action = "enable"
	}
	return d.engine.ExecuteShell(ctx, "svc wifi "+action, d.serial, true)
}

// EscapeInputText encodes text for `input text`: spaces become %s and
// single quotes are backslash-escaped.
func EscapeInputText(text string) string {
	return strings.NewReplacer(" ", "%s", "'", `\'`).Replace(text)
}

// InputText types text into the focused field.
func (d *Device) InputText(ctx context.Context, text string) command.Result {
	return d.engine.ExecuteShell(ctx, "input text '"+EscapeInputText(text)+"'", d.serial, false)
}

// Tap taps the screen at x, y.
func (d *Device) Tap(ctx context.Context, x, y int) command.Result {
	return d.engine.ExecuteShell(ctx, fmt.Sprintf("input tap %d %d", x, y), d.serial, false)
}

// Swipe drags from (x1, y1) to (x2, y2) over durationMs milliseconds.
func (d *Device) Swipe(ctx context.Context, x1, y1, x2, y2, durationMs int) command.Result {
	return d.engine.ExecuteShell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, durationMs), d.serial, false)
}

// KeyEvent sends a key code such as "KEYCODE_HOME" or "3".
func (d *Device) KeyEvent(ctx context.Context, keycode string) command.Result {
	return d.engine.ExecuteShell(ctx, "input keyevent "+keycode, d.serial, false)
}
