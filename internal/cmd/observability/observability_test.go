package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/droidbench/internal/command"
)

func TestTail(t *testing.T) {
	items := []int{1, 2, 3, 4}
	assert.Equal(t, []int{3, 4}, tail(items, 2))
	assert.Equal(t, items, tail(items, 0))
	assert.Equal(t, items, tail(items, 10))
}

func TestHistoryRows(t *testing.T) {
	rows := historyRows([]command.Result{{
		Command:       "adb -s emulator-5554 shell false",
		Stdout:        "ignored\n",
		Stderr:        "\n  error: closed\nmore\n",
		ReturnCode:    1,
		ExecutionTime: 1234567 * time.Microsecond,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local),
		Serial:        "emulator-5554",
		Attempt:       2,
	}})
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "2026-03-01 12:00:00", row[0])
	assert.Equal(t, "emulator-5554", row[1])
	assert.Equal(t, "adb -s emulator-5554 shell false", row[2])
	assert.Equal(t, []string{"1", "1.235s", "2", "error: closed"}, row[4:])
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("x", 60)
	assert.Equal(t, "package:com.android.settings", preview(command.Result{Success: true, Stdout: "package:com.android.settings\npackage:x\n"}))
	assert.Equal(t, "out", preview(command.Result{Stdout: "out\n", Stderr: "  \n"}))
	assert.Equal(t, strings.Repeat("x", 37)+"...", preview(command.Result{Success: true, Stdout: long}))
}
