package lifecycle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/adb"
	"github.com/Iron-Ham/droidbench/internal/avd"
	"github.com/Iron-Ham/droidbench/internal/emulator"
	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/runner/runnertest"
)

type fakePrereqs map[string]bool

func (f fakePrereqs) Check(context.Context) map[string]bool { return f }

type fakeDefinitions struct {
	mu      sync.Mutex
	defs    map[string]*avd.Definition
	created []string
	infoErr error
}

func (f *fakeDefinitions) Info(name string) (*avd.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.infoErr != nil {
		return nil, f.infoErr
	}
	def, ok := f.defs[name]
	if !ok {
		return nil, errors.NewNotFoundError("definition", name).WithCause(errors.ErrDefinitionNotFound)
	}
	return def, nil
}

func (f *fakeDefinitions) Create(_ context.Context, name string, platform int, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !avd.Supported(platform) {
		return errors.ErrUnsupportedPlatform
	}
	f.created = append(f.created, name)
	f.defs[name] = &avd.Definition{Name: name, PlatformVersion: platform}
	return nil
}

type fakeLauncher struct {
	mu      sync.Mutex
	serials map[string]string
	err     error
	procs   []*runnertest.Process
	fake    *runnertest.Fake
}

func (f *fakeLauncher) Start(_ context.Context, name string, opts emulator.Options) (*emulator.Launch, error) {
	if f.err != nil {
		return nil, f.err
	}
	proc, _ := f.fake.Start(runner.Cmd{Name: "emulator", Args: opts.Args(name)})
	f.mu.Lock()
	defer f.mu.Unlock()
	f.procs = append(f.procs, proc.(*runnertest.Process))
	return &emulator.Launch{Name: name, Serial: f.serials[name], Process: proc}, nil
}

type fakeBoot struct{ failFor map[string]bool }

func (f fakeBoot) WaitForBoot(_ context.Context, serial string) error {
	if f.failFor[serial] {
		return errors.NewTimeoutError("waiting for "+serial+" to boot", time.Minute).WithCause(errors.ErrBootTimeout)
	}
	return nil
}

type fakeControl struct {
	mu      sync.Mutex
	killed  []string
	killErr error
	saved   []string
}

func (f *fakeControl) EmuKill(_ context.Context, serial string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, serial)
	return f.killErr
}

func (f *fakeControl) SnapshotSave(_ context.Context, serial, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, serial+":"+name)
	return nil
}

func (f *fakeControl) SnapshotLoad(context.Context, string, string) error { return nil }

type fixture struct {
	defs     *fakeDefinitions
	launcher *fakeLauncher
	boot     fakeBoot
	control  *fakeControl
	manager  *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		defs: &fakeDefinitions{defs: map[string]*avd.Definition{
			"dev_34": {Name: "dev_34", PlatformVersion: 34},
			"dev_35": {Name: "dev_35", PlatformVersion: 35},
		}},
		launcher: &fakeLauncher{
			serials: map[string]string{"dev_34": "dev-5556", "dev_35": "dev-5558", "test_android_33": "dev-5560"},
			fake:    runnertest.New(),
		},
		boot:    fakeBoot{failFor: map[string]bool{}},
		control: &fakeControl{},
	}
	f.rebuild(nil)
	return f
}

func (f *fixture) rebuild(prereqs Prerequisites) {
	f.manager = NewManager(Deps{
		Prerequisites: prereqs,
		Definitions:   f.defs,
		Launcher:      f.launcher,
		Boot:          f.boot,
		Control:       f.control,
	})
}

func TestManager_StartRunning(t *testing.T) {
	f := newFixture(t)
	f.rebuild(fakePrereqs{"adb": true, "emulator": true, "avdmanager": true, "sdkmanager": true})

	rec, err := f.manager.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, rec.Status)
	assert.Equal(t, "dev-5556", rec.Serial)
	assert.Equal(t, 34, rec.PlatformVersion)
	assert.NotEmpty(t, rec.LaunchID)
	assert.NotNil(t, rec.Process)

	got, ok := f.manager.Get("dev-5556")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Len(t, f.manager.List(), 1)
}

func TestManager_StartRequiresPrerequisites(t *testing.T) {
	f := newFixture(t)
	f.rebuild(fakePrereqs{"adb": true, "emulator": false, "avdmanager": true, "sdkmanager": false})

	_, err := f.manager.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, errors.ErrPrerequisitesMissing)
	assert.ErrorContains(t, err, "emulator, sdkmanager")
	assert.Empty(t, f.launcher.procs)
}

func TestManager_StartCreatesMissingDefinition(t *testing.T) {
	f := newFixture(t)

	rec, err := f.manager.Start(context.Background(), Request{
		Name:            "test_android_33",
		PlatformVersion: 33,
		Options:         emulator.DefaultOptions(),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"test_android_33"}, f.defs.created)
	assert.Equal(t, 33, rec.PlatformVersion)
}

func TestManager_StartMissingDefinitionWithoutPlatform(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Start(context.Background(), Request{Name: "ghost", Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, errors.ErrDefinitionNotFound)
	assert.Empty(t, f.defs.created)
	assert.Empty(t, f.manager.List())
}

func TestManager_StartUnsupportedPlatform(t *testing.T) {
	f := newFixture(t)

	_, err := f.manager.Start(context.Background(), Request{Name: "ghost", PlatformVersion: 30, Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, errors.ErrUnsupportedPlatform)
	assert.Empty(t, f.launcher.procs)
}

func TestManager_StartCorruptConfigPropagates(t *testing.T) {
	f := newFixture(t)
	f.defs.infoErr = errors.ErrConfigCorrupt

	_, err := f.manager.Start(context.Background(), Request{Name: "dev_34", PlatformVersion: 34, Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, errors.ErrConfigCorrupt)
	assert.Empty(t, f.defs.created)
}

func TestManager_LaunchFailureLeavesNoRecord(t *testing.T) {
	f := newFixture(t)
	f.launcher.err = errors.NewTimeoutError("discovery", time.Minute).WithCause(errors.ErrDiscoveryTimeout)

	_, err := f.manager.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, errors.ErrDiscoveryTimeout)
	assert.Empty(t, f.manager.List())
	assert.Empty(t, f.control.killed, "no serial was discovered, nothing to kill")
}

func TestManager_BootFailureStopsAndDiscards(t *testing.T) {
	f := newFixture(t)
	f.boot.failFor["dev-5556"] = true
	f.rebuild(nil)

	_, err := f.manager.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, errors.ErrBootTimeout)

	var devErr *errors.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, "dev-5556", devErr.Serial)

	assert.Empty(t, f.manager.List())
	assert.Equal(t, []string{"dev-5556"}, f.control.killed)
	require.Len(t, f.launcher.procs, 1)
	assert.Equal(t, 1, f.launcher.procs[0].Terminations())
}

func TestManager_SerialConflictTerminatesNewProcess(t *testing.T) {
	f := newFixture(t)
	f.launcher.serials["dev_35"] = "dev-5556"

	_, err := f.manager.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	require.NoError(t, err)

	_, err = f.manager.Start(context.Background(), Request{Name: "dev_35", Options: emulator.DefaultOptions()})
	assert.ErrorIs(t, err, ErrSerialClaimed)
	require.Len(t, f.launcher.procs, 2)
	assert.Equal(t, 0, f.launcher.procs[0].Terminations())
	assert.Equal(t, 1, f.launcher.procs[1].Terminations())
	assert.Len(t, f.manager.List(), 1)
}

func TestManager_StopTerminatesEvenWhenKillFails(t *testing.T) {
	f := newFixture(t)
	f.control.killErr = errors.NewToolError("adb", 1, "error: device offline")

	_, err := f.manager.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	require.NoError(t, err)

	f.manager.Stop(context.Background(), "dev-5556")

	assert.Equal(t, []string{"dev-5556"}, f.control.killed)
	assert.Equal(t, 1, f.launcher.procs[0].Terminations())
	_, ok := f.manager.Get("dev-5556")
	assert.False(t, ok)
}

func TestManager_StopUntrackedSerial(t *testing.T) {
	f := newFixture(t)
	f.manager.Stop(context.Background(), "emulator-5554")
	assert.Equal(t, []string{"emulator-5554"}, f.control.killed)
}

func TestManager_ConcurrentStartsAndStopAll(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, name := range []string{"dev_34", "dev_35"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.manager.Start(context.Background(), Request{Name: name, Options: emulator.DefaultOptions()})
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Len(t, f.manager.List(), 2)

	stopped := f.manager.StopAll(context.Background())
	assert.ElementsMatch(t, []string{"dev-5556", "dev-5558"}, stopped)
	assert.ElementsMatch(t, []string{"dev-5556", "dev-5558"}, f.control.killed)
	assert.Empty(t, f.manager.List())
}

func TestManager_Snapshots(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.manager.SaveSnapshot(context.Background(), "dev-5556", "clean"))
	require.NoError(t, f.manager.LoadSnapshot(context.Background(), "dev-5556", "clean"))
	assert.Equal(t, []string{"dev-5556:clean"}, f.control.saved)
}

func TestManager_EndToEndWithScriptedTools(t *testing.T) {
	fake := runnertest.New()
	fake.OnResult("adb devices",
		runner.Result{Stdout: "List of devices attached\nemulator-5554\tdevice\n"},
		runner.Result{Stdout: "List of devices attached\nemulator-5554\tdevice\nemulator-5556\tdevice\n"},
	)
	fake.OnStdout("getprop sys.boot_completed", "1\n")
	fake.OnStdout("pm list packages", "package:android\n")

	client := adb.New("adb", fake, nil)
	m := NewManager(Deps{
		Definitions: &fakeDefinitions{defs: map[string]*avd.Definition{"dev_34": {Name: "dev_34", PlatformVersion: 34}}},
		Launcher: emulator.NewLauncher(emulator.LauncherConfig{
			DiscoveryInterval: 5 * time.Millisecond,
			DiscoveryTimeout:  time.Second,
		}, client, fake, nil),
		Boot:    emulator.NewBootMonitor(emulator.BootConfig{Interval: 5 * time.Millisecond, Timeout: time.Second}, client, nil),
		Control: client,
	})

	rec, err := m.Start(context.Background(), Request{Name: "dev_34", Options: emulator.DefaultOptions()})
	require.NoError(t, err)
	assert.Equal(t, "emulator-5556", rec.Serial)
	assert.Equal(t, StatusRunning, rec.Status)

	m.Stop(context.Background(), rec.Serial)
	assert.NotEmpty(t, fake.CallsMatching("adb -s emulator-5556 emu kill"))
	assert.Equal(t, 1, fake.Started()[0].Terminations())
	assert.Empty(t, m.List())
}
