package sdk

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/runner/runnertest"
)

func envFrom(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLocator_Candidates(t *testing.T) {
	tests := []struct {
		name string
		goos string
		env  map[string]string
		want []string
	}{
		{
			name: "linux defaults",
			goos: "linux",
			want: []string{"/home/u/Android/Sdk", "/home/u/android-sdk", "/opt/android-sdk"},
		},
		{
			name: "env first",
			goos: "linux",
			env:  map[string]string{"ANDROID_HOME": "/a", "ANDROID_SDK_ROOT": "/b"},
			want: []string{"/a", "/b", "/home/u/Android/Sdk", "/home/u/android-sdk", "/opt/android-sdk"},
		},
		{
			name: "darwin",
			goos: "darwin",
			want: []string{"/home/u/Library/Android/sdk", "/usr/local/share/android-sdk", "/opt/android-sdk"},
		},
		{
			name: "windows",
			goos: "windows",
			env:  map[string]string{"LOCALAPPDATA": "/appdata"},
			want: []string{filepath.Join("/appdata", "Android", "Sdk")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &Locator{Fs: afero.NewMemMapFs(), Getenv: envFrom(tt.env), HomeDir: "/home/u", GOOS: tt.goos}
			assert.Equal(t, tt.want, l.Candidates(""))
		})
	}
}

func TestLocator_Locate(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/opt/android-sdk/platform-tools", 0o755))

	l := &Locator{Fs: fs, Getenv: envFrom(map[string]string{"ANDROID_HOME": "/missing"}), HomeDir: "/home/u", GOOS: "linux"}

	s, err := l.Locate("")
	require.NoError(t, err)
	assert.Equal(t, "/opt/android-sdk", s.Root)

	require.NoError(t, fs.MkdirAll("/custom", 0o755))
	s, err = l.Locate("/custom")
	require.NoError(t, err)
	assert.Equal(t, "/custom", s.Root, "config override wins")
}

func TestLocator_NotFound(t *testing.T) {
	l := &Locator{Fs: afero.NewMemMapFs(), Getenv: envFrom(nil), HomeDir: "/home/u", GOOS: "linux"}
	s, err := l.Locate("")
	assert.ErrorIs(t, err, errors.ErrSDKNotFound)
	require.NotNil(t, s)
	assert.False(t, s.Found())
	assert.Nil(t, s.PathDirs())
}

func TestSDK_PathDirs(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/sdk/platform-tools", 0o755))
	require.NoError(t, fs.MkdirAll("/sdk/cmdline-tools/latest/bin", 0o755))

	s := Static(fs, "/sdk", nil)
	assert.Equal(t, []string{
		"/sdk/platform-tools",
		filepath.Join("/sdk", "cmdline-tools", "latest", "bin"),
	}, s.PathDirs())
}

func TestSDK_ToolPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/sdk/emulator/emulator", []byte{}, 0o755))
	require.NoError(t, afero.WriteFile(fs, "/sdk/tools/bin/avdmanager", []byte{}, 0o755))

	s := Static(fs, "/sdk", envFrom(map[string]string{"DROIDBENCH_ADB": "/custom/adb"}))

	assert.Equal(t, "/custom/adb", s.ToolPath(ADB))
	assert.Equal(t, "/sdk/emulator/emulator", s.ToolPath(Emulator))
	assert.Equal(t, "/sdk/tools/bin/avdmanager", s.ToolPath(AVDManager), "legacy tools dir is a fallback")
	assert.True(t, s.ToolExists(Emulator))
}

func TestTool_EnvOverride(t *testing.T) {
	assert.Equal(t, "DROIDBENCH_SDKMANAGER", SDKManager.EnvOverride())
}

func TestChecker_Check(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/sdk/emulator/emulator", []byte{}, 0o755))
	s := Static(fs, "/sdk", envFrom(map[string]string{
		"DROIDBENCH_ADB":        "/t/adb",
		"DROIDBENCH_AVDMANAGER": "/t/avdmanager",
		"DROIDBENCH_SDKMANAGER": "/t/sdkmanager",
	}))

	fake := runnertest.New()
	fake.Default = runner.Result{ExitCode: 127}
	fake.OnStdout("/t/adb version", "Android Debug Bridge version 1.0.41")
	fake.OnStdout("/t/sdkmanager --version", "12.0")

	checks := NewChecker(s, fake, logging.NopLogger()).Check(context.Background())

	assert.Equal(t, map[string]bool{
		"adb":        true,
		"emulator":   true,
		"avdmanager": false,
		"sdkmanager": true,
	}, checks)
	assert.Equal(t, []string{"avdmanager"}, Missing(checks))
	assert.Len(t, fake.CallsMatching("--version"), 3)
}

func TestChecker_TimeoutCountsAsMissing(t *testing.T) {
	s := Static(afero.NewMemMapFs(), "", envFrom(map[string]string{
		"DROIDBENCH_ADB": "/t/adb", "DROIDBENCH_EMULATOR": "/t/emulator",
		"DROIDBENCH_AVDMANAGER": "/t/avdmanager", "DROIDBENCH_SDKMANAGER": "/t/sdkmanager",
	}))
	fake := runnertest.New().OnBlock("/t/")

	c := NewChecker(s, fake, nil)
	c.versionTimeout = 10 * time.Millisecond

	checks := c.Check(context.Background())
	assert.Equal(t, []string{"adb", "avdmanager", "emulator", "sdkmanager"}, Missing(checks))
}
