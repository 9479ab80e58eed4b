package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/command"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func result(id, serial string, success bool, ts time.Time) command.Result {
	code := 0
	if !success {
		code = 1
	}
	return command.Result{
		ID:              id,
		Command:         "adb -s " + serial + " shell getprop",
		Success:         success,
		Stdout:          "out-" + id,
		Stderr:          "",
		ReturnCode:      code,
		ExecutionTime:   1500 * time.Millisecond,
		Timestamp:       ts,
		Serial:          serial,
		PlatformVersion: 34,
		Attempt:         1,
	}
}

func TestStore_RoundTripNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, result("a", "emulator-5554", true, base)))
	require.NoError(t, s.Record(ctx, result("b", "emulator-5556", false, base.Add(time.Second))))
	require.NoError(t, s.Record(ctx, result("c", "emulator-5554", false, base.Add(2*time.Second))))

	all, err := s.List(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	got := all[2]
	want := result("a", "emulator-5554", true, base)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
	got.Timestamp = want.Timestamp
	assert.Equal(t, want, got)
}

func TestStore_Filters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Now()

	for i, r := range []command.Result{
		result("a", "emulator-5554", true, base),
		result("b", "emulator-5556", false, base.Add(time.Second)),
		result("c", "emulator-5554", false, base.Add(2*time.Second)),
		result("d", "emulator-5554", true, base.Add(3*time.Second)),
	} {
		require.NoError(t, s.Record(ctx, r), i)
	}

	bySerial, err := s.List(ctx, Query{Serial: "emulator-5554", Limit: 2})
	require.NoError(t, err)
	require.Len(t, bySerial, 2)
	assert.Equal(t, "d", bySerial[0].ID)
	assert.Equal(t, "c", bySerial[1].ID)

	failed, err := s.List(ctx, Query{FailedOnly: true})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "c", failed[0].ID)

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	empty, err := s.List(ctx, Query{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_DuplicateIDFails(t *testing.T) {
	s := openTestStore(t)
	r := result("dup", "emulator-5554", true, time.Now())
	require.NoError(t, s.Record(context.Background(), r))
	assert.Error(t, s.Record(context.Background(), r))
}

func TestStore_RecordsEngineAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, command.Result{ID: "x", Command: "adb devices", Timestamp: time.Now()}))
	list, err := s.List(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "adb devices", list[0].Command)
	assert.False(t, list[0].Success)
}
