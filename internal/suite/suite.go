// Package suite loads YAML verification suites and runs them against a
// device through a command.Engine.
package suite

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/droidbench/internal/command"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/validate"
)

// Suite is an ordered list of verification steps.
type Suite struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description,omitempty"`
	Steps       []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is one command with an optional output expectation.
type Step struct {
	Name    string `yaml:"name,omitempty"`
	Command string `yaml:"command" validate:"required"`
	// Expect is a case-insensitive pattern stdout must match.
	Expect string `yaml:"expect,omitempty"`
	// Zero values fall back to the engine defaults.
	Timeout    time.Duration `yaml:"timeout,omitempty" validate:"gte=0"`
	Attempts   int           `yaml:"attempts,omitempty" validate:"gte=0"`
	Screenshot bool          `yaml:"screenshot,omitempty"`
	// ContinueOnFailure keeps running later steps when this one fails.
	ContinueOnFailure bool `yaml:"continue_on_failure,omitempty"`
}

// Label returns the step name, or its command when unnamed.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Command
}

// Parse decodes and validates a suite. Unknown keys are rejected.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse suite: %w", err)
	}
	if err := validate.Struct(s); err != nil {
		return nil, fmt.Errorf("invalid suite %q: %w", s.Name, err)
	}
	return &s, nil
}

// Load reads and parses the suite at path.
func Load(fs afero.Fs, path string) (*Suite, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite: %w", err)
	}
	return Parse(data)
}

// Smoke returns the built-in suite used when none is given: it confirms
// boot, reads the build and lists packages.
func Smoke() *Suite {
	return &Suite{
		Name:        "smoke",
		Description: "Basic device health checks",
		Steps: []Step{
			{Name: "boot completed", Command: "shell getprop sys.boot_completed", Expect: "^1"},
			{Name: "android version", Command: "shell getprop ro.build.version.release", Expect: `\d+`},
			{Name: "package manager", Command: "shell pm list packages", Expect: "package:"},
			{Name: "screen size", Command: "shell wm size", Expect: `Physical size: \d+x\d+`, ContinueOnFailure: true},
		},
	}
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step    Step
	Passed  bool
	Skipped bool
	Message string
	Result  command.Result
}

// Report collects the outcome of a suite run on one device.
type Report struct {
	Suite           string
	Serial          string
	PlatformVersion int
	Started         time.Time
	Duration        time.Duration
	Steps           []StepResult
}

// Passed reports whether every executed step passed.
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if !s.Skipped && !s.Passed {
			return false
		}
	}
	return true
}

// Counts returns the number of passed, failed and skipped steps.
func (r *Report) Counts() (passed, failed, skipped int) {
	for _, s := range r.Steps {
		switch {
		case s.Skipped:
			skipped++
		case s.Passed:
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}

// Runner executes suites.
type Runner struct {
	engine *command.Engine
	logger *logging.Logger
}

// NewRunner creates a Runner.
func NewRunner(engine *command.Engine, logger *logging.Logger) *Runner {
	return &Runner{engine: engine, logger: logger}
}

// Run executes every step against serial in order. A failing step skips
// the rest unless it allows continuing. Run stops early when ctx is done.
func (r *Runner) Run(ctx context.Context, s *Suite, serial string, platform int) *Report {
	log := r.logger.WithDevice(serial).With("suite", s.Name)
	report := &Report{Suite: s.Name, Serial: serial, PlatformVersion: platform, Started: time.Now()}
	defer func() { report.Duration = time.Since(report.Started) }()

	halted := false
	for _, step := range s.Steps {
		if halted || ctx.Err() != nil {
			report.Steps = append(report.Steps, StepResult{Step: step, Skipped: true, Message: "skipped"})
			continue
		}

		sr := r.runStep(ctx, step, serial, platform)
		report.Steps = append(report.Steps, sr)
		if sr.Passed {
			log.Info("step passed", "step", step.Label())
			continue
		}
		log.Warn("step failed", "step", step.Label(), "message", sr.Message)
		if !step.ContinueOnFailure {
			halted = true
		}
	}
	return report
}

func (r *Runner) runStep(ctx context.Context, step Step, serial string, platform int) StepResult {
	opts := []command.Option{command.WithPlatformVersion(platform)}
	if step.Timeout > 0 {
		opts = append(opts, command.WithTimeout(step.Timeout))
	}
	if step.Attempts > 0 {
		opts = append(opts, command.WithRetryAttempts(step.Attempts))
	}
	if step.Screenshot {
		opts = append(opts, command.WithScreenshot())
	}

	if step.Expect != "" {
		res, ok, msg := r.engine.Verify(ctx, step.Command, serial, step.Expect, opts...)
		return StepResult{Step: step, Passed: ok, Message: msg, Result: res}
	}

	res := r.engine.Execute(ctx, step.Command, serial, opts...)
	msg := "ok"
	if !res.Success {
		msg = fmt.Sprintf("exit %d: %s", res.ReturnCode, res.Stderr)
	}
	return StepResult{Step: step, Passed: res.Success, Message: msg, Result: res}
}
