package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/droidbench/internal/avd"
	"github.com/Iron-Ham/droidbench/internal/emulator"
	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/sdk"
)

// Prerequisites reports which external tools are available.
type Prerequisites interface {
	Check(ctx context.Context) map[string]bool
}

// Definitions looks up and creates device definitions.
type Definitions interface {
	Info(name string) (*avd.Definition, error)
	Create(ctx context.Context, name string, platform int, profile string) error
}

// Launcher spawns an emulator and discovers its serial.
type Launcher interface {
	Start(ctx context.Context, name string, opts emulator.Options) (*emulator.Launch, error)
}

// BootWaiter blocks until a device has booted.
type BootWaiter interface {
	WaitForBoot(ctx context.Context, serial string) error
}

// DeviceControl issues emulator console commands through adb.
type DeviceControl interface {
	EmuKill(ctx context.Context, serial string) error
	SnapshotSave(ctx context.Context, serial, name string) error
	SnapshotLoad(ctx context.Context, serial, name string) error
}

// Deps are the collaborators of a Manager.
type Deps struct {
	// Prerequisites is optional. When set, Start refuses to run while any
	// tool is missing.
	Prerequisites Prerequisites
	Definitions   Definitions
	Launcher      Launcher
	Boot          BootWaiter
	Control       DeviceControl
	// Registry defaults to a fresh one.
	Registry *Registry
	Logger   *logging.Logger
}

// Request names the definition to start and how to launch it.
type Request struct {
	Name string
	// PlatformVersion is used to create the definition when it does not
	// exist yet. Zero means the definition must already exist.
	PlatformVersion int
	DeviceProfile   string
	Options         emulator.Options
}

// Manager drives device records through their lifecycle.
type Manager struct {
	deps     Deps
	registry *Registry
	logger   *logging.Logger
	now      func() time.Time
}

// NewManager creates a Manager.
func NewManager(deps Deps) *Manager {
	reg := deps.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	return &Manager{
		deps:     deps,
		registry: reg,
		logger:   deps.Logger,
		now:      time.Now,
	}
}

// Registry returns the table of active records.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Start brings up the named definition and returns its running record.
// A failed start leaves no record behind.
func (m *Manager) Start(ctx context.Context, req Request) (*Record, error) {
	log := m.logger.WithDefinition(req.Name)

	if err := m.checkPrerequisites(ctx); err != nil {
		log.Error("prerequisites missing", "error", err.Error())
		return nil, err
	}

	def, err := m.ensureDefinition(ctx, req, log)
	if err != nil {
		return nil, err
	}

	platform := def.PlatformVersion
	if platform == 0 {
		platform = req.PlatformVersion
	}

	rec := &Record{
		LaunchID:        uuid.NewString(),
		Name:            req.Name,
		PlatformVersion: platform,
		Status:          StatusStarting,
		StartTime:       m.now(),
	}
	m.registry.add(rec)
	log = log.WithLaunch(rec.LaunchID)
	log.Info("starting device", "platform", platform)

	launch, err := m.deps.Launcher.Start(ctx, req.Name, req.Options)
	if err != nil {
		m.discard(rec.LaunchID)
		log.Error("launch failed", "error", err.Error())
		return nil, errors.NewDeviceError("launch failed", err).WithDefinition(req.Name)
	}

	if err := m.registry.claim(rec.LaunchID, launch.Serial, launch.Process); err != nil {
		m.discard(rec.LaunchID)
		if termErr := launch.Process.Terminate(); termErr != nil {
			log.Warn("failed to terminate emulator", "error", termErr.Error())
		}
		log.Error("serial conflict", logging.KeySerial, launch.Serial, "error", err.Error())
		return nil, errors.NewDeviceError("launch failed", err).WithDefinition(req.Name).WithSerial(launch.Serial)
	}
	log = log.WithDevice(launch.Serial)

	if err := m.deps.Boot.WaitForBoot(ctx, launch.Serial); err != nil {
		log.Error("boot failed, stopping device", "error", err.Error())
		m.Stop(context.WithoutCancel(ctx), launch.Serial)
		return nil, errors.NewDeviceError("boot not confirmed", err).WithDefinition(req.Name).WithSerial(launch.Serial)
	}

	running, err := m.registry.transition(rec.LaunchID, StatusRunning)
	if err != nil {
		// Stopped concurrently by another caller.
		return nil, errors.NewDeviceError("device stopped during start", err).WithDefinition(req.Name).WithSerial(launch.Serial)
	}
	log.Info("device running", "elapsed", m.now().Sub(rec.StartTime).Round(time.Millisecond).String())
	return &running, nil
}

func (m *Manager) checkPrerequisites(ctx context.Context) error {
	if m.deps.Prerequisites == nil {
		return nil
	}
	missing := sdk.Missing(m.deps.Prerequisites.Check(ctx))
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", errors.ErrPrerequisitesMissing, strings.Join(missing, ", "))
}

func (m *Manager) ensureDefinition(ctx context.Context, req Request, log *logging.Logger) (*avd.Definition, error) {
	def, err := m.deps.Definitions.Info(req.Name)
	if err == nil {
		return def, nil
	}
	if !errors.IsNotFound(err) || req.PlatformVersion <= 0 {
		log.Error("definition unavailable", "error", err.Error())
		return nil, err
	}

	log.Info("creating definition", "platform", req.PlatformVersion, "profile", req.DeviceProfile)
	if err := m.deps.Definitions.Create(ctx, req.Name, req.PlatformVersion, req.DeviceProfile); err != nil {
		log.Error("definition creation failed", "error", err.Error())
		return nil, err
	}

	def, err = m.deps.Definitions.Info(req.Name)
	if err != nil {
		// avdmanager may place the definition somewhere Info cannot see.
		log.Warn("created definition not readable", "error", err.Error())
		return &avd.Definition{Name: req.Name, PlatformVersion: req.PlatformVersion}, nil
	}
	return def, nil
}

func (m *Manager) discard(launchID string) {
	_, _ = m.registry.transition(launchID, StatusStopped)
	m.registry.remove(launchID)
}

// Stop shuts the device down. It asks the emulator console to exit and then
// terminates the process if the manager spawned it, whatever the console
// said. Stop never fails; untracked serials still get the console kill.
func (m *Manager) Stop(ctx context.Context, serial string) {
	log := m.logger.WithDevice(serial).WithPhase("stop")

	rec, tracked := m.registry.Get(serial)
	if tracked && rec.Status == StatusRunning {
		if _, err := m.registry.transition(rec.LaunchID, StatusStopping); err != nil {
			log.Debug("status change skipped", "error", err.Error())
		}
	}

	if err := m.deps.Control.EmuKill(ctx, serial); err != nil {
		log.Warn("graceful kill failed", "error", err.Error())
	}
	if tracked && rec.Process != nil {
		if err := rec.Process.Terminate(); err != nil {
			log.Warn("process termination failed", "pid", rec.Process.Pid(), "error", err.Error())
		}
	}

	if tracked {
		m.discard(rec.LaunchID)
	}
	log.Info("device stopped", "tracked", tracked)
}

// StopAll stops every tracked device concurrently and returns the serials
// it stopped.
func (m *Manager) StopAll(ctx context.Context) []string {
	var serials []string
	for _, rec := range m.registry.List() {
		if rec.Serial != "" {
			serials = append(serials, rec.Serial)
		}
	}

	p := pool.New()
	for _, serial := range serials {
		p.Go(func() { m.Stop(ctx, serial) })
	}
	p.Wait()
	return serials
}

// List returns copies of all tracked records.
func (m *Manager) List() []Record {
	return m.registry.List()
}

// Get returns a copy of the record for serial.
func (m *Manager) Get(serial string) (Record, bool) {
	return m.registry.Get(serial)
}

// SaveSnapshot saves the emulator state of serial under name.
func (m *Manager) SaveSnapshot(ctx context.Context, serial, name string) error {
	return m.deps.Control.SnapshotSave(ctx, serial, name)
}

// LoadSnapshot restores the emulator state of serial saved under name.
func (m *Manager) LoadSnapshot(ctx context.Context, serial, name string) error {
	return m.deps.Control.SnapshotLoad(ctx, serial, name)
}
