package command

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/runner"
	"github.com/Iron-Ham/droidbench/internal/runner/runnertest"
)

func newTestEngine(fake *runnertest.Fake) *Engine {
	return NewEngine(Config{RetryBackoff: time.Millisecond}, fake, nil)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		command string
		serial  string
		want    string
	}{
		{"adds serial", "adb", "shell getprop", "emulator-5554", "adb -s emulator-5554 shell getprop"},
		{"strips adb", "adb", "adb shell ls /sdcard", "emulator-5554", "adb -s emulator-5554 shell ls /sdcard"},
		{"keeps explicit serial", "adb", "adb -s emulator-5556 shell ls", "emulator-5554", "adb -s emulator-5556 shell ls"},
		{"serial after other global flag", "adb", "-H localhost -s emulator-5556 devices", "emulator-5554", "adb -H localhost -s emulator-5556 devices"},
		{"-s inside shell command is not a device flag", "adb", "shell pm list packages -s", "emulator-5554", "adb -s emulator-5554 shell pm list packages -s"},
		{"no serial", "adb", "devices", "", "adb devices"},
		{"tool path with space", "/Android Sdk/adb", "devices", "", "'/Android Sdk/adb' devices"},
		{"bare adb", "adb", "adb", "emulator-5554", "adb -s emulator-5554"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.tool, tt.command, tt.serial))
		})
	}
}

func TestNormalize_NeverDoubleInsertsSerial(t *testing.T) {
	once := Normalize("adb", "shell ls", "emulator-5554")
	twice := Normalize("adb", once, "emulator-5554")
	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, "-s "))
}

func TestNormalize_CmdQuoting(t *testing.T) {
	tests := []struct {
		name string
		tool string
		want string
	}{
		{
			name: "sdk path without spaces stays bare",
			tool: `C:\Users\dev\AppData\Local\Android\Sdk\platform-tools\adb.exe`,
			want: `C:\Users\dev\AppData\Local\Android\Sdk\platform-tools\adb.exe -s emulator-5554 shell getprop`,
		},
		{
			name: "path with spaces is double-quoted",
			tool: `C:\Program Files\Android\platform-tools\adb.exe`,
			want: `"C:\Program Files\Android\platform-tools\adb.exe" -s emulator-5554 shell getprop`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize(runner.QuoteCmd, tt.tool, "shell getprop", "emulator-5554")
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "'")
		})
	}
}

func TestExecute_AlwaysFailingUsesEveryAttempt(t *testing.T) {
	fake := runnertest.New().OnExit("shell false", 1, "boom")
	e := newTestEngine(fake)

	res := e.Execute(context.Background(), "shell false", "emulator-5554", WithRetryAttempts(2))

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ReturnCode)
	assert.Equal(t, 2, res.Attempt)

	history := e.History()
	require.Len(t, history, 2)
	for _, h := range history {
		assert.False(t, h.Success)
		assert.Equal(t, "boom", h.Stderr)
		assert.Equal(t, "emulator-5554", h.Serial)
	}
	assert.NotEqual(t, history[0].ID, history[1].ID)
}

func TestExecute_StopsAfterFirstSuccess(t *testing.T) {
	fake := runnertest.New().OnResult("shell flaky",
		runner.Result{ExitCode: 1, Stderr: "device busy"},
		runner.Result{Stdout: "ok\n"},
	)
	e := newTestEngine(fake)

	res := e.Execute(context.Background(), "shell flaky", "emulator-5554", WithRetryAttempts(3))

	assert.True(t, res.Success)
	assert.Equal(t, "ok\n", res.Stdout)
	assert.Len(t, e.History(), 2)
	assert.Len(t, fake.Calls(), 2)
}

func TestExecute_SingleAttempt(t *testing.T) {
	fake := runnertest.New().OnExit("shell false", 1, "")
	e := newTestEngine(fake)

	e.Execute(context.Background(), "shell false", "emulator-5554", WithRetryAttempts(0))
	assert.Len(t, e.History(), 1)
}

func TestExecute_Timeout(t *testing.T) {
	fake := runnertest.New().OnBlock("shell sleep")
	e := newTestEngine(fake)

	res := e.Execute(context.Background(), "shell sleep 60", "emulator-5554",
		WithTimeout(20*time.Millisecond), WithRetryAttempts(1))

	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ReturnCode)
	assert.Equal(t, "Command timeout after 0.02s", res.Stderr)
}

func TestExecute_SpawnFailure(t *testing.T) {
	fake := runnertest.New().On("shell", func(context.Context, runner.Cmd) (runner.Result, error) {
		return runner.Result{ExitCode: -1}, errors.New("fork/exec /bin/sh: no such file or directory")
	})
	e := newTestEngine(fake)

	res := e.Execute(context.Background(), "shell ls", "emulator-5554", WithRetryAttempts(1))
	assert.False(t, res.Success)
	assert.Equal(t, -1, res.ReturnCode)
	assert.Contains(t, res.Stderr, "no such file")
}

func TestExecute_CancelledContextStopsRetrying(t *testing.T) {
	fake := runnertest.New().OnExit("shell false", 1, "")
	e := NewEngine(Config{RetryBackoff: time.Hour}, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res := e.Execute(ctx, "shell false", "emulator-5554", WithRetryAttempts(5))
	assert.False(t, res.Success)
	assert.Len(t, e.History(), 1)
}

func TestExecute_PlatformVersionAndClearHistory(t *testing.T) {
	e := newTestEngine(runnertest.New())

	res := e.Execute(context.Background(), "shell true", "emulator-5554", WithPlatformVersion(34))
	assert.True(t, res.Success)
	assert.Equal(t, 34, res.PlatformVersion)
	assert.Equal(t, "adb -s emulator-5554 shell true", res.Command)

	e.ClearHistory()
	assert.Empty(t, e.History())
}

type memRecorder struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (m *memRecorder) Record(_ context.Context, res Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, res)
	return m.err
}

func TestExecute_RecorderSeesEveryAttempt(t *testing.T) {
	fake := runnertest.New().OnExit("shell false", 1, "")
	e := newTestEngine(fake)
	rec := &memRecorder{err: errors.New("disk full")}
	e.SetRecorder(rec)

	res := e.Execute(context.Background(), "shell false", "emulator-5554")
	assert.False(t, res.Success)
	assert.Len(t, rec.results, 2)
	assert.Len(t, e.History(), 2, "recorder errors do not affect history")
}

func TestExecute_ConcurrentCallsAllRecorded(t *testing.T) {
	e := newTestEngine(runnertest.New())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(context.Background(), "shell true", "emulator-5554")
		}()
	}
	wg.Wait()
	assert.Len(t, e.History(), 20)
}
