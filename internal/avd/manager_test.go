package avd

import (
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/runner/runnertest"
)

type fakeEnsurer struct {
	calls []int
	err   error
}

func (f *fakeEnsurer) EnsureImage(_ context.Context, platform int) error {
	f.calls = append(f.calls, platform)
	return f.err
}

func (f *fakeEnsurer) ImageID(platform int) string {
	return ImageID(platform, "", "x86_64")
}

type managerFixture struct {
	fs       afero.Fs
	fake     *runnertest.Fake
	ensurer  *fakeEnsurer
	manager  *Manager
	settings Settings
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		fs:       afero.NewMemMapFs(),
		fake:     runnertest.New(),
		ensurer:  &fakeEnsurer{},
		settings: Settings{MemoryMB: 2048, GPUMode: "auto", Headless: true},
	}
	f.manager = NewManager(ManagerConfig{Home: "/avd", Settings: f.settings}, f.fs, f.fake, f.ensurer, nil)
	return f
}

func (f *managerFixture) writeConfig(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(f.fs, "/avd/"+name+".avd/config.ini", []byte(content), 0o644))
}

func TestManager_CreateUnsupportedSkipsProvisioning(t *testing.T) {
	f := newManagerFixture(t)

	err := f.manager.Create(context.Background(), "test_android_30", 30, "")
	assert.ErrorIs(t, err, errors.ErrUnsupportedPlatform)
	assert.Empty(t, f.ensurer.calls)
	assert.Empty(t, f.fake.Calls())
}

func TestManager_CreateProvisionFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.ensurer.err = errors.ErrProvisionFailed

	err := f.manager.Create(context.Background(), "test_android_34", 34, "")
	assert.ErrorIs(t, err, errors.ErrProvisionFailed)
	assert.Empty(t, f.fake.Calls(), "avdmanager must not run after a failed provision")
}

func TestManager_CreateAndConfigure(t *testing.T) {
	f := newManagerFixture(t)

	var stdin string
	f.fake.On("create avd", func(_ context.Context, cmd runner.Cmd) (runner.Result, error) {
		b, _ := io.ReadAll(cmd.Stdin)
		stdin = string(b)
		f.writeConfig(t, "test_android_34", "AvdId=test_android_34\nhw.ramSize=1536\n")
		return runner.Result{}, nil
	})

	require.NoError(t, f.manager.Create(context.Background(), "test_android_34", 34, "pixel_7"))

	assert.Equal(t, []int{34}, f.ensurer.calls)
	assert.Equal(t, []string{
		"avdmanager create avd -n test_android_34 -k system-images;android-34;google_apis;x86_64 -d pixel_7 --force",
	}, f.fake.Calls())
	assert.Equal(t, "\n", stdin)

	def, err := f.manager.Info("test_android_34")
	require.NoError(t, err)
	assert.Equal(t, "2048", def.RAM)

	data, _ := afero.ReadFile(f.fs, "/avd/test_android_34.avd/config.ini")
	assert.Contains(t, string(data), "showDeviceFrame=no\n")
}

func TestManager_CreateDefaultProfileAndToolFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.fake.OnExit("create avd", 1, "Error: Invalid --device")

	err := f.manager.Create(context.Background(), "x", 33, "")
	assert.ErrorIs(t, err, errors.ErrToolFailed)
	assert.Contains(t, f.fake.Calls()[0], "-d pixel_5")
}

func TestManager_ConfigureMissingFile(t *testing.T) {
	f := newManagerFixture(t)
	assert.NoError(t, f.manager.Configure("ghost"))
}

func TestManager_Info(t *testing.T) {
	f := newManagerFixture(t)
	f.writeConfig(t, "test_android_35", "image.sysdir.1=system-images/android-35/google_apis/x86_64/\nhw.ramSize=4096\nhw.device.name=pixel_7\n")
	f.writeConfig(t, "odd", "image.sysdir.1=system-images/custom/\n")

	def, err := f.manager.Info("test_android_35")
	require.NoError(t, err)
	assert.Equal(t, Definition{
		Name:            "test_android_35",
		Path:            "/avd/test_android_35.avd",
		PlatformVersion: 35,
		AndroidVersion:  "15",
		RAM:             "4096",
		DeviceProfile:   "pixel_7",
	}, *def)

	odd, err := f.manager.Info("odd")
	require.NoError(t, err)
	assert.Equal(t, 0, odd.PlatformVersion)
	assert.Equal(t, UnknownVersion, odd.AndroidVersion)
	assert.Equal(t, Unknown, odd.RAM)
	assert.Equal(t, Unknown, odd.DeviceProfile)

	_, err = f.manager.Info("nope")
	assert.ErrorIs(t, err, errors.ErrDefinitionNotFound)
	assert.True(t, errors.IsNotFound(err))
	assert.False(t, f.manager.Exists("nope"))
	assert.True(t, f.manager.Exists("odd"))
}

func TestManager_ListSkipsMissingConfigs(t *testing.T) {
	f := newManagerFixture(t)
	f.fake.OnStdout("-list-avds", "INFO    | Storing crashdata in: /tmp/x\ntest_android_34\nghost\n\ntest_android_35\n")
	f.writeConfig(t, "test_android_34", "image.sysdir.1=system-images/android-34/google_apis/x86_64/\n")
	f.writeConfig(t, "test_android_35", "image.sysdir.1=system-images/android-35/google_apis/x86_64/\n")

	defs, err := f.manager.List(context.Background())
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "test_android_34", defs[0].Name)
	assert.Equal(t, "test_android_35", defs[1].Name)
}

func TestManager_Delete(t *testing.T) {
	f := newManagerFixture(t)
	f.fake.OnExit("delete avd -n missing", 1, "Error: There is no Android Virtual Device named 'missing'.")

	require.NoError(t, f.manager.Delete(context.Background(), "present"))

	err := f.manager.Delete(context.Background(), "missing")
	var toolErr *errors.ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "avdmanager", toolErr.Tool)
}

func TestManager_Cleanup(t *testing.T) {
	f := newManagerFixture(t)
	f.fake.OnStdout("-list-avds", "test_android_34\nPixel_7_API_34\ntest_android_35\n")
	for _, n := range []string{"test_android_34", "Pixel_7_API_34", "test_android_35"} {
		f.writeConfig(t, n, "hw.ramSize=2048\n")
	}
	f.fake.OnExit("delete avd -n test_android_35", 1, "locked")

	deleted, err := f.manager.Cleanup(context.Background(), "")
	assert.Equal(t, []string{"test_android_34"}, deleted)
	assert.ErrorIs(t, err, errors.ErrToolFailed)
	assert.Empty(t, f.fake.CallsMatching("Pixel_7_API_34"))
}

func TestManager_CleanupInvalidPattern(t *testing.T) {
	f := newManagerFixture(t)
	_, err := f.manager.Cleanup(context.Background(), "[")
	var vErr *errors.ValidationError
	assert.ErrorAs(t, err, &vErr)
}
