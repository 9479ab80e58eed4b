// Package sdk locates the Android SDK on the host and resolves the paths of
// the command-line tools droidbench drives.
package sdk

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
)

// Tool names a control tool shipped with the SDK.
type Tool string

const (
	ADB        Tool = "adb"
	Emulator   Tool = "emulator"
	AVDManager Tool = "avdmanager"
	SDKManager Tool = "sdkmanager"
)

// Tools lists every tool the orchestrator depends on, in check order.
var Tools = []Tool{ADB, Emulator, AVDManager, SDKManager}

// EnvOverride returns the environment variable that pins a tool's path,
// e.g. DROIDBENCH_ADB.
func (t Tool) EnvOverride() string {
	return "DROIDBENCH_" + strings.ToUpper(string(t))
}

// subdirectories added to PATH, in order.
var pathDirs = []string{
	"emulator",
	"platform-tools",
	filepath.Join("cmdline-tools", "latest", "bin"),
	filepath.Join("tools", "bin"),
}

// Locator finds an SDK root. The zero value is not usable; see NewLocator.
type Locator struct {
	Fs      afero.Fs
	Getenv  func(string) string
	HomeDir string
	GOOS    string
}

// NewLocator returns a Locator for the real host.
func NewLocator() *Locator {
	home, _ := os.UserHomeDir()
	return &Locator{
		Fs:      afero.NewOsFs(),
		Getenv:  os.Getenv,
		HomeDir: home,
		GOOS:    runtime.GOOS,
	}
}

// Candidates returns the SDK roots searched by Locate, in priority order.
func (l *Locator) Candidates(override string) []string {
	var out []string
	add := func(p string) {
		if p != "" {
			out = append(out, p)
		}
	}

	add(override)
	add(l.Getenv("ANDROID_HOME"))
	add(l.Getenv("ANDROID_SDK_ROOT"))

	switch l.GOOS {
	case "darwin":
		add(filepath.Join(l.HomeDir, "Library", "Android", "sdk"))
		add("/usr/local/share/android-sdk")
		add("/opt/android-sdk")
	case "windows":
		if local := l.Getenv("LOCALAPPDATA"); local != "" {
			add(filepath.Join(local, "Android", "Sdk"))
		}
	default:
		add(filepath.Join(l.HomeDir, "Android", "Sdk"))
		add(filepath.Join(l.HomeDir, "android-sdk"))
		add("/opt/android-sdk")
	}
	return out
}

// Locate returns the first existing candidate root. When none exists the
// returned SDK has an empty Root and the error is ErrSDKNotFound; tool paths
// still resolve through overrides and PATH.
func (l *Locator) Locate(override string) (*SDK, error) {
	s := &SDK{fs: l.Fs, getenv: l.Getenv, goos: l.GOOS}
	for _, c := range l.Candidates(override) {
		if ok, _ := afero.DirExists(l.Fs, c); ok {
			s.Root = c
			return s, nil
		}
	}
	return s, errors.ErrSDKNotFound
}

// Locate finds the SDK on the real host.
func Locate(override string) (*SDK, error) {
	return NewLocator().Locate(override)
}

// SDK is a located (or missing) Android SDK installation.
type SDK struct {
	// Root is empty when no SDK was found.
	Root string

	fs     afero.Fs
	getenv func(string) string
	goos   string
}

// Found reports whether an SDK root was located.
func (s *SDK) Found() bool { return s.Root != "" }

// PathDirs returns the existing tool directories under Root.
func (s *SDK) PathDirs() []string {
	if !s.Found() {
		return nil
	}
	var dirs []string
	for _, d := range pathDirs {
		full := filepath.Join(s.Root, d)
		if ok, _ := afero.DirExists(s.fs, full); ok {
			dirs = append(dirs, full)
		}
	}
	return dirs
}

// PrependPath puts the SDK tool directories in front of PATH and sets
// ANDROID_HOME when it is unset. It does nothing when no SDK was found.
func (s *SDK) PrependPath(logger *logging.Logger) error {
	if !s.Found() {
		logger.Warn("android sdk not found, set ANDROID_HOME")
		return nil
	}

	if dirs := s.PathDirs(); len(dirs) > 0 {
		path := strings.Join(append(dirs, os.Getenv("PATH")), string(os.PathListSeparator))
		if err := os.Setenv("PATH", path); err != nil {
			return fmt.Errorf("failed to update PATH: %w", err)
		}
		logger.Info("android sdk found", "root", s.Root, "path_dirs", len(dirs))
	}

	if os.Getenv("ANDROID_HOME") == "" {
		if err := os.Setenv("ANDROID_HOME", s.Root); err != nil {
			return fmt.Errorf("failed to set ANDROID_HOME: %w", err)
		}
	}
	return nil
}

// toolFiles returns the locations of a tool relative to the SDK root.
func (s *SDK) toolFiles(t Tool) []string {
	exe := func(name string) string {
		if s.goos == "windows" {
			if t == AVDManager || t == SDKManager {
				return name + ".bat"
			}
			return name + ".exe"
		}
		return name
	}

	name := exe(string(t))
	switch t {
	case ADB:
		return []string{filepath.Join("platform-tools", name)}
	case Emulator:
		return []string{filepath.Join("emulator", name)}
	default:
		return []string{
			filepath.Join("cmdline-tools", "latest", "bin", name),
			filepath.Join("tools", "bin", name),
		}
	}
}

// ToolPath resolves a tool: the DROIDBENCH_<TOOL> override first, then the
// SDK root, then PATH. When nothing resolves the bare name is returned so
// that invocations fail with the shell's own "not found".
func (s *SDK) ToolPath(t Tool) string {
	if s.getenv != nil {
		if p := s.getenv(t.EnvOverride()); p != "" {
			return p
		}
	}
	if s.Found() {
		for _, rel := range s.toolFiles(t) {
			full := filepath.Join(s.Root, rel)
			if ok, _ := afero.Exists(s.fs, full); ok {
				return full
			}
		}
	}
	if p, err := exec.LookPath(string(t)); err == nil {
		return p
	}
	return string(t)
}

// ToolExists reports whether the resolved tool path points at a file.
func (s *SDK) ToolExists(t Tool) bool {
	p := s.ToolPath(t)
	if !filepath.IsAbs(p) {
		return false
	}
	ok, _ := afero.Exists(s.fs, p)
	return ok
}

// Static returns an SDK rooted at root on fs, for tests and callers that
// already know the location.
func Static(fs afero.Fs, root string, getenv func(string) string) *SDK {
	if getenv == nil {
		getenv = func(string) string { return "" }
	}
	return &SDK{Root: root, fs: fs, getenv: getenv, goos: runtime.GOOS}
}
