// Package avd manages Android Virtual Device definitions: system image
// provisioning, creation, hardware configuration, listing and deletion.
package avd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// DefaultCleanupPattern matches the definitions droidbench creates.
const DefaultCleanupPattern = "test_android_*"

const (
	createTimeout = 30 * time.Second
	deleteTimeout = 30 * time.Second
	listTimeout   = 5 * time.Second
)

var sysdirPattern = regexp.MustCompile(`android-(\d+)`)

// Definition describes a persisted device definition.
type Definition struct {
	Name            string
	Path            string
	PlatformVersion int // 0 when it cannot be determined
	AndroidVersion  string
	RAM             string
	DeviceProfile   string
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	AVDManager string
	Emulator   string
	// Home is the directory holding <name>.avd folders.
	Home     string
	Settings Settings
}

// Manager creates, inspects and deletes device definitions.
type Manager struct {
	cfg         ManagerConfig
	fs          afero.Fs
	runner      runner.Runner
	provisioner ImageEnsurer
	logger      *logging.Logger
}

// NewManager creates a Manager. fs is where config.ini files are read and
// written; pass afero.NewOsFs() outside tests.
func NewManager(cfg ManagerConfig, fs afero.Fs, r runner.Runner, provisioner ImageEnsurer, logger *logging.Logger) *Manager {
	if cfg.AVDManager == "" {
		cfg.AVDManager = "avdmanager"
	}
	if cfg.Emulator == "" {
		cfg.Emulator = "emulator"
	}
	if cfg.Home == "" {
		cfg.Home = Home(nil)
	}
	return &Manager{cfg: cfg, fs: fs, runner: r, provisioner: provisioner, logger: logger}
}

// Dir returns the directory of a definition.
func (m *Manager) Dir(name string) string {
	return filepath.Join(m.cfg.Home, name+".avd")
}

// ConfigPath returns the config.ini path of a definition.
func (m *Manager) ConfigPath(name string) string {
	return filepath.Join(m.Dir(name), "config.ini")
}

// Create provisions the system image if needed, creates the definition and
// applies the hardware overrides. An existing definition with the same
// name is replaced.
func (m *Manager) Create(ctx context.Context, name string, platform int, profile string) error {
	log := m.logger.WithDefinition(name)

	if !Supported(platform) {
		log.Error("unsupported platform version", "platform", platform)
		return fmt.Errorf("platform %d: %w", platform, errors.ErrUnsupportedPlatform)
	}
	if profile == "" {
		profile = DefaultDeviceProfile
	}

	log.Info("creating definition", "platform", platform, "profile", profile)
	if err := m.provisioner.EnsureImage(ctx, platform); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	res, err := m.runner.Run(ctx, runner.Cmd{
		Name: m.cfg.AVDManager,
		Args: []string{
			"create", "avd",
			"-n", name,
			"-k", m.provisioner.ImageID(platform),
			"-d", profile,
			"--force",
		},
		// Answers the "custom hardware profile?" prompt with the default.
		Stdin: strings.NewReader("\n"),
	})
	if err != nil {
		log.Error("avdmanager create failed", "error", err.Error())
		return fmt.Errorf("create definition %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		log.Error("avdmanager create failed", "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return fmt.Errorf("create definition %s: %w", name, errors.NewToolError("avdmanager", res.ExitCode, res.Stderr))
	}

	log.Info("definition created")
	return m.Configure(name)
}

// Configure merges the hardware overrides into the definition's
// config.ini. A missing file is logged and ignored; an unreadable or
// unwritable one is returned as an error.
func (m *Manager) Configure(name string) error {
	log := m.logger.WithDefinition(name)
	path := m.ConfigPath(name)

	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("definition config not found, skipping overrides", "path", path)
			return nil
		}
		return fmt.Errorf("read %s: %w", path, errors.Join(errors.ErrConfigCorrupt, err))
	}

	cfg, err := ParseHWConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, errors.Join(errors.ErrConfigCorrupt, err))
	}
	cfg.Merge(m.cfg.Settings.Overrides())

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return err
	}
	if err := afero.WriteFile(m.fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	log.Info("definition configured")
	return nil
}

// Info reads a definition from its config.ini. It returns an error
// matching ErrDefinitionNotFound when the file does not exist.
func (m *Manager) Info(name string) (*Definition, error) {
	path := m.ConfigPath(name)
	data, err := afero.ReadFile(m.fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("definition", name).WithCause(errors.ErrDefinitionNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, errors.Join(errors.ErrConfigCorrupt, err))
	}

	cfg, err := ParseHWConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, errors.Join(errors.ErrConfigCorrupt, err))
	}
	values := cfg.Values()

	def := &Definition{
		Name:          name,
		Path:          m.Dir(name),
		RAM:           valueOr(values, "hw.ramSize", Unknown),
		DeviceProfile: valueOr(values, "hw.device.name", Unknown),
	}
	if match := sysdirPattern.FindStringSubmatch(values["image.sysdir.1"]); match != nil {
		def.PlatformVersion, _ = strconv.Atoi(match[1])
	}
	def.AndroidVersion = AndroidVersion(def.PlatformVersion)
	return def, nil
}

func valueOr(values map[string]string, key, fallback string) string {
	if v, ok := values[key]; ok && v != "" {
		return v
	}
	return fallback
}

// Exists reports whether a definition has a readable config.ini.
func (m *Manager) Exists(name string) bool {
	_, err := m.Info(name)
	return err == nil
}

// Names returns the definition names reported by `emulator -list-avds`.
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	res, err := m.runner.Run(ctx, runner.Cmd{Name: m.cfg.Emulator, Args: []string{"-list-avds"}})
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("list definitions: %w", errors.NewToolError("emulator", res.ExitCode, res.Stderr))
	}

	var names []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		// The emulator sometimes prefixes the list with "INFO | ..." noise.
		if line == "" || strings.ContainsAny(line, " \t|") {
			continue
		}
		names = append(names, line)
	}
	return names, nil
}

// List returns every definition whose config can be read. Definitions
// without a config.ini are skipped.
func (m *Manager) List(ctx context.Context) ([]Definition, error) {
	names, err := m.Names(ctx)
	if err != nil {
		return nil, err
	}

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		def, err := m.Info(name)
		if err != nil {
			if !errors.Is(err, errors.ErrDefinitionNotFound) {
				m.logger.WithDefinition(name).Warn("skipping unreadable definition", "error", err.Error())
			}
			continue
		}
		defs = append(defs, *def)
	}
	return defs, nil
}

// Delete removes a definition through avdmanager.
func (m *Manager) Delete(ctx context.Context, name string) error {
	log := m.logger.WithDefinition(name)
	log.Info("deleting definition")

	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	res, err := m.runner.Run(ctx, runner.Cmd{Name: m.cfg.AVDManager, Args: []string{"delete", "avd", "-n", name}})
	if err != nil {
		log.Error("avdmanager delete failed", "error", err.Error())
		return fmt.Errorf("delete definition %s: %w", name, err)
	}
	if res.ExitCode != 0 {
		log.Error("avdmanager delete failed", "exit_code", res.ExitCode, "stderr", strings.TrimSpace(res.Stderr))
		return fmt.Errorf("delete definition %s: %w", name, errors.NewToolError("avdmanager", res.ExitCode, res.Stderr))
	}
	return nil
}

// Cleanup deletes every definition whose name matches the glob pattern
// (DefaultCleanupPattern when empty). It returns the names deleted; failed
// deletions are joined into the error and do not stop the sweep.
func (m *Manager) Cleanup(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultCleanupPattern
	}
	g, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.NewValidationError("invalid cleanup pattern").WithField("pattern").WithValue(pattern).WithCause(err)
	}

	defs, err := m.List(ctx)
	if err != nil {
		return nil, err
	}

	var deleted []string
	var errs []error
	for _, def := range defs {
		if !g.Match(def.Name) {
			continue
		}
		if err := m.Delete(ctx, def.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		deleted = append(deleted, def.Name)
	}

	m.logger.Info("cleanup complete", "pattern", pattern, "deleted", len(deleted), "failed", len(errs))
	return deleted, errors.Join(errs...)
}
