// Package runner is the seam between droidbench and the external Android
// tools. Everything that spawns adb, emulator, avdmanager or sdkmanager goes
// through a Runner so tests can script tool behavior with runnertest.Fake.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Iron-Ham/droidbench/internal/logging"
)

// DefaultWaitDelay bounds how long Run keeps draining output after the
// process group has been killed.
const DefaultWaitDelay = 2 * time.Second

// DefaultTerminateGrace is how long Terminate waits after the polite signal
// before killing the process group.
const DefaultTerminateGrace = 5 * time.Second

// Cmd describes one tool invocation.
type Cmd struct {
	// Name and Args form the argv. Ignored when Shell is set.
	Name string
	Args []string
	// Shell is a full command line run through the platform interpreter
	// (sh -c, or cmd /C on windows).
	Shell string
	// Stdin is fed to the process when non-nil.
	Stdin io.Reader
	// Env entries are appended to the current environment.
	Env []string
	// Stdout and Stderr receive output of processes launched with Start.
	// Run always captures output itself.
	Stdout io.Writer
	Stderr io.Writer
}

// String renders the command the way a user would type it.
func (c Cmd) String() string {
	if c.Shell != "" {
		return c.Shell
	}
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a completed Run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	// TimedOut is set when the context expired before the process exited.
	// ExitCode is -1 in that case.
	TimedOut bool
}

// Success reports whether the process exited with status zero.
func (r Result) Success() bool {
	return !r.TimedOut && r.ExitCode == 0
}

// Process is a handle to a process started without waiting for it.
type Process interface {
	// Pid returns the operating system process ID.
	Pid() int
	// Done is closed once the process has exited and been reaped.
	Done() <-chan struct{}
	// Exited reports whether the process has exited.
	Exited() bool
	// Terminate asks the process group to exit and kills it if it is still
	// alive after a grace period. Safe to call more than once.
	Terminate() error
}

// Runner runs external tools.
type Runner interface {
	// Run executes cmd to completion. A non-zero exit status is reported in
	// the Result, not as an error. An error is returned when the process
	// could not be spawned or when ctx expired; in the latter case the whole
	// process group is killed and the Result has TimedOut set.
	Run(ctx context.Context, cmd Cmd) (Result, error)
	// Start spawns cmd and returns immediately. A background goroutine reaps
	// the child.
	Start(cmd Cmd) (Process, error)
}

// Exec is the Runner backed by os/exec.
type Exec struct {
	WaitDelay      time.Duration
	TerminateGrace time.Duration
	logger         *logging.Logger
}

// New returns an Exec runner. A nil logger disables logging.
func New(logger *logging.Logger) *Exec {
	return &Exec{
		WaitDelay:      DefaultWaitDelay,
		TerminateGrace: DefaultTerminateGrace,
		logger:         logger,
	}
}

func (e *Exec) command(ctx context.Context, c Cmd) (*exec.Cmd, error) {
	name, args := c.Name, c.Args
	attr := sysProcAttr()
	if c.Shell != "" {
		name, args = shellCommand(c.Shell)
		attr = shellProcAttr(c.Shell)
	}
	if name == "" {
		return nil, errors.New("command is required")
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = attr
	cmd.Stdin = c.Stdin
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	return cmd, nil
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, c Cmd) (Result, error) {
	cmd, err := e.command(ctx, c)
	if err != nil {
		return Result{ExitCode: -1}, err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error { return killGroup(cmd.Process) }
	cmd.WaitDelay = e.WaitDelay

	e.logger.Debug("running tool", "cmd", c.String())

	start := time.Now()
	runErr := cmd.Run()
	res := Result{
		Stdout:   decode(stdout.Bytes()),
		Stderr:   decode(stderr.Bytes()),
		Duration: time.Since(start),
	}

	if ctxErr := ctx.Err(); ctxErr != nil && runErr != nil {
		res.TimedOut = true
		res.ExitCode = -1
		e.logger.Warn("tool timed out", "cmd", c.String(), "elapsed", res.Duration.String())
		return res, fmt.Errorf("%s: %w", c.Name, ctxErr)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, fmt.Errorf("failed to run %s: %w", c.String(), runErr)
	}
	return res, nil
}

// Start implements Runner.
func (e *Exec) Start(c Cmd) (Process, error) {
	cmd, err := e.command(context.Background(), c)
	if err != nil {
		return nil, err
	}
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr

	if err := cmd.Start(); err != nil {
		e.logger.Error("failed to start process", "cmd", c.String(), "error", err.Error())
		return nil, fmt.Errorf("failed to start %s: %w", c.String(), err)
	}

	p := &execProcess{
		cmd:   cmd,
		done:  make(chan struct{}),
		grace: e.TerminateGrace,
	}
	e.logger.Info("process started", "cmd", c.String(), "pid", cmd.Process.Pid)

	go func() {
		_ = cmd.Wait()
		close(p.done)
		e.logger.Debug("process exited", "pid", cmd.Process.Pid, "state", cmd.ProcessState.String())
	}()

	return p, nil
}

type execProcess struct {
	cmd   *exec.Cmd
	done  chan struct{}
	grace time.Duration
}

func (p *execProcess) Pid() int              { return p.cmd.Process.Pid }
func (p *execProcess) Done() <-chan struct{} { return p.done }

func (p *execProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *execProcess) Terminate() error {
	if p.Exited() {
		return nil
	}
	if err := signalGroup(p.cmd.Process); err != nil {
		return killGroup(p.cmd.Process)
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.grace):
		return killGroup(p.cmd.Process)
	}
}

// decode replaces invalid UTF-8 sequences instead of failing.
func decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
