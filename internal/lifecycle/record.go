package lifecycle

import (
	"fmt"
	"time"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// Status is the lifecycle state of a device record.
type Status string

const (
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
)

// allowed lists the legal transitions out of each status.
var allowed = map[Status][]Status{
	StatusStarting: {StatusRunning, StatusStopped},
	StatusRunning:  {StatusStopping},
	StatusStopping: {StatusStopped},
}

// CanTransition reports whether a record may move from s to next.
func (s Status) CanTransition(next Status) bool {
	for _, to := range allowed[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Record tracks one launched device.
type Record struct {
	LaunchID        string
	Name            string
	Serial          string
	PlatformVersion int
	Status          Status
	StartTime       time.Time
	// Process is the emulator process handle, nil for devices the manager
	// did not spawn.
	Process runner.Process
}

// Uptime returns how long the device has been tracked.
func (r Record) Uptime(now time.Time) time.Duration {
	if r.StartTime.IsZero() {
		return 0
	}
	return now.Sub(r.StartTime)
}

func (r *Record) transition(next Status) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s (launch %s)", errors.ErrInvalidTransition, r.Status, next, r.LaunchID)
	}
	r.Status = next
	return nil
}
