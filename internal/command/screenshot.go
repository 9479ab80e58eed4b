package command

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/droidbench/internal/runner"
)

const screenshotStamp = "20060102_150405"

// CaptureScreenshot captures the screen of serial, pulls the PNG into the
// screenshot directory and removes it from the device. It returns the host
// path, or false when any step fails.
func (e *Engine) CaptureScreenshot(ctx context.Context, serial string) (string, bool) {
	log := e.logger.WithDevice(serial)
	stamp := e.now().Format(screenshotStamp)

	dir := e.cfg.ScreenshotDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Error("failed to create screenshot directory", "dir", dir, "error", err.Error())
		return "", false
	}

	devicePath := "/sdcard/screenshot_" + stamp + ".png"
	hostPath := filepath.Join(dir, "screenshot_"+sanitize(serial)+"_"+stamp+".png")

	if res := e.Execute(ctx, "shell screencap -p "+devicePath, serial); !res.Success {
		log.Error("screencap failed", "stderr", res.Stderr)
		return "", false
	}
	if res := e.Execute(ctx, "pull "+devicePath+" "+runner.Quote(hostPath), serial); !res.Success {
		log.Error("screenshot pull failed", "stderr", res.Stderr)
		return "", false
	}
	if res := e.Execute(ctx, "shell rm "+devicePath, serial); !res.Success {
		log.Error("screenshot cleanup failed", "path", devicePath, "stderr", res.Stderr)
		return "", false
	}

	log.Info("screenshot captured", "path", hostPath)
	return hostPath, true
}

// sanitize makes a serial such as "192.168.1.5:5555" safe for a file name.
func sanitize(serial string) string {
	return strings.NewReplacer(":", "_", "/", "_", "\\", "_").Replace(serial)
}
