package lifecycle

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// ErrSerialClaimed is returned when a launch discovers a serial another
// record already holds.
var ErrSerialClaimed = errors.New("serial already tracked by another launch")

// Registry is the table of active device records, keyed by launch ID.
// Every accessor hands out copies.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

func (r *Registry) add(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.LaunchID] = rec
}

// claim binds serial and process to a starting record. At most one record
// holds a given serial.
func (r *Registry) claim(launchID, serial string, proc runner.Process) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.records {
		if id != launchID && rec.Serial == serial {
			return fmt.Errorf("%w: %s (launch %s)", ErrSerialClaimed, serial, id)
		}
	}
	rec, ok := r.records[launchID]
	if !ok {
		return errors.NewNotFoundError("launch", launchID).WithCause(errors.ErrDeviceNotFound)
	}
	rec.Serial = serial
	rec.Process = proc
	return nil
}

func (r *Registry) transition(launchID string, next Status) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[launchID]
	if !ok {
		return Record{}, errors.NewNotFoundError("launch", launchID).WithCause(errors.ErrDeviceNotFound)
	}
	if err := rec.transition(next); err != nil {
		return *rec, err
	}
	return *rec, nil
}

func (r *Registry) remove(launchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, launchID)
}

func (r *Registry) bySerial(serial string) (*Record, bool) {
	if serial == "" {
		return nil, false
	}
	for _, rec := range r.records {
		if rec.Serial == serial {
			return rec, true
		}
	}
	return nil, false
}

// Get returns a copy of the record holding serial.
func (r *Registry) Get(serial string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.bySerial(serial)
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// List returns copies of all records ordered by start time.
func (r *Registry) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartTime.Equal(out[j].StartTime) {
			return out[i].LaunchID < out[j].LaunchID
		}
		return out[i].StartTime.Before(out[j].StartTime)
	})
	return out
}

// Len returns the number of tracked records.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}
