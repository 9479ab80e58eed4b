package app

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Iron-Ham/droidbench/internal/emulator"
	"github.com/Iron-Ham/droidbench/internal/lifecycle"
	"github.com/Iron-Ham/droidbench/internal/suite"
)

// FirstLanePort is the console port of the first lane when none is given.
const FirstLanePort = 5554

// Lane is one platform's pass through start, suite and stop.
type Lane struct {
	Platform int
	Port     int
}

// PlanLanes returns one lane per distinct platform, in ascending platform
// order, on consecutive even console ports starting at basePort.
func PlanLanes(platforms []int, basePort int) []Lane {
	if basePort <= 0 {
		basePort = FirstLanePort
	}
	basePort += basePort % 2

	sorted := slices.Clone(platforms)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	lanes := make([]Lane, 0, len(sorted))
	for i, p := range sorted {
		lanes = append(lanes, Lane{Platform: p, Port: basePort + 2*i})
	}
	return lanes
}

// RunOptions configure RunLanes.
type RunOptions struct {
	Suite   *suite.Suite
	Options emulator.Options
	// Keep leaves devices running after their suite.
	Keep bool
}

// LaneResult is the outcome of one lane. Report is nil when the device
// never came up.
type LaneResult struct {
	Lane   Lane
	Record *lifecycle.Record
	Report *suite.Report
	Err    error
}

// Passed reports whether the lane started and its suite passed.
func (r LaneResult) Passed() bool {
	return r.Err == nil && r.Report != nil && r.Report.Passed()
}

// RunLanes runs every lane concurrently and returns the results in lane
// order. The error is the first lane failure, if any; a failing suite is
// not an error.
func (a *App) RunLanes(ctx context.Context, lanes []Lane, opts RunOptions) ([]LaneResult, error) {
	s := opts.Suite
	if s == nil {
		s = suite.Smoke()
	}
	suiteRunner := a.SuiteRunner()
	results := make([]LaneResult, len(lanes))

	var g errgroup.Group
	for i, lane := range lanes {
		g.Go(func() error {
			res := LaneResult{Lane: lane}
			defer func() { results[i] = res }()

			launch := opts.Options
			launch.Port = lane.Port
			log := a.Logger.WithPhase("run").With("platform", lane.Platform, "port", lane.Port)

			rec, err := a.Lifecycle.Start(ctx, a.Request(lane.Platform, launch))
			if err != nil {
				res.Err = fmt.Errorf("android %d: %w", lane.Platform, err)
				log.Error("lane failed to start", "error", err.Error())
				return res.Err
			}
			res.Record = rec

			res.Report = suiteRunner.Run(ctx, s, rec.Serial, rec.PlatformVersion)
			passed, failed, skipped := res.Report.Counts()
			log.Info("lane finished", "serial", rec.Serial, "passed", passed, "failed", failed, "skipped", skipped)

			if !opts.Keep {
				a.Lifecycle.Stop(context.WithoutCancel(ctx), rec.Serial)
			}
			return nil
		})
	}
	err := g.Wait()
	return results, err
}
