// Package internal holds tests that exercise several droidbench packages
// together over a scripted adb/emulator host.
package internal

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/app"
	"github.com/Iron-Ham/droidbench/internal/config"
	"github.com/Iron-Ham/droidbench/internal/history"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/sdk"
	"github.com/Iron-Ham/droidbench/internal/suite"
	"github.com/Iron-Ham/droidbench/internal/testutil"
)

const checksSuite = `name: checks
steps:
  - name: release
    command: shell getprop ro.build.version.release
    expect: "^14"
  - command: shell pm list packages
    expect: com.android.settings
`

// TestSuiteRunRecordsHistoryAndLogs drives a full run: suite file on disk,
// device boot, suite execution, shutdown, then reads back what was
// persisted.
func TestSuiteRunRecordsHistoryAndLogs(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Logging.Level = "debug"
	cfg.Emulator.DiscoveryInterval = 5 * time.Millisecond
	cfg.Emulator.BootInterval = 5 * time.Millisecond
	cfg.Exec.RetryBackoff = time.Millisecond

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/work/checks.yaml", []byte(checksSuite), 0o644))
	testutil.WriteDefinition(t, fs, "/avd", "test_android_34", 34)

	host := testutil.NewHost()
	a, err := app.New(cfg, app.Options{
		Runner:  host,
		Fs:      fs,
		SDK:     sdk.Static(fs, "/sdk", nil),
		AVDHome: "/avd",
	})
	require.NoError(t, err)

	s, err := suite.Load(fs, "/work/checks.yaml")
	require.NoError(t, err)

	results, err := a.RunLanes(context.Background(), app.PlanLanes([]int{34}, 0), app.RunOptions{
		Suite:   s,
		Options: cfg.EmulatorOptions(),
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.True(t, results[0].Passed())
	assert.Equal(t, "emulator-5554", results[0].Record.Serial)
	assert.Empty(t, host.Online())

	store, err := a.History()
	require.NoError(t, err)
	rows, err := store.List(context.Background(), history.Query{Serial: "emulator-5554"})
	require.NoError(t, err)

	var commands []string
	for _, r := range rows {
		assert.True(t, r.Success, r.Command)
		assert.Equal(t, 34, r.PlatformVersion, r.Command)
		commands = append(commands, r.Command)
	}
	joined := strings.Join(commands, "\n")
	assert.Contains(t, joined, "-s emulator-5554 shell getprop ro.build.version.release")
	assert.Contains(t, joined, "-s emulator-5554 shell pm list packages")

	require.NoError(t, a.Close())

	entries, err := logging.AggregateLogs(cfg.Paths.LogDir())
	require.NoError(t, err)
	device := logging.FilterLogs(entries, logging.LogFilter{Serial: "emulator-5554"})
	assert.NotEmpty(t, device)
}
