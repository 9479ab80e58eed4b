// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Iron-Ham/droidbench/internal/runner"
)

// Handler produces the outcome of one scripted invocation.
type Handler func(ctx context.Context, cmd runner.Cmd) (runner.Result, error)

type rule struct {
	match   string
	handler Handler
}

// Fake is a runner.Runner whose responses are scripted by substring match
// on the rendered command line. The most recently registered matching rule
// wins; unmatched commands get Default. It is safe for concurrent use.
type Fake struct {
	mu      sync.Mutex
	rules   []rule
	calls   []runner.Cmd
	started []*Process

	// Default is returned for commands no rule matches.
	Default runner.Result
	// StartErr makes every Start call fail.
	StartErr error
}

// New returns a Fake whose unmatched commands succeed with empty output.
func New() *Fake {
	return &Fake{}
}

// On registers a handler for commands whose line contains match.
func (f *Fake) On(match string, h Handler) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{match: match, handler: h})
	return f
}

// OnResult registers a sequence of results for commands containing match.
// Each call consumes the next result; the last one repeats.
func (f *Fake) OnResult(match string, results ...runner.Result) *Fake {
	if len(results) == 0 {
		results = []runner.Result{{}}
	}
	var mu sync.Mutex
	next := 0
	return f.On(match, func(context.Context, runner.Cmd) (runner.Result, error) {
		mu.Lock()
		defer mu.Unlock()
		r := results[next]
		if next < len(results)-1 {
			next++
		}
		return r, nil
	})
}

// OnStdout is shorthand for a successful result with the given stdout.
func (f *Fake) OnStdout(match, stdout string) *Fake {
	return f.OnResult(match, runner.Result{Stdout: stdout})
}

// OnExit is shorthand for a failed result with the given exit code and stderr.
func (f *Fake) OnExit(match string, code int, stderr string) *Fake {
	return f.OnResult(match, runner.Result{ExitCode: code, Stderr: stderr})
}

// OnBlock makes commands containing match block until their context ends,
// then report a timeout the way the real runner does.
func (f *Fake) OnBlock(match string) *Fake {
	return f.On(match, func(ctx context.Context, cmd runner.Cmd) (runner.Result, error) {
		<-ctx.Done()
		return runner.Result{ExitCode: -1, TimedOut: true}, fmt.Errorf("%s: %w", cmd.Name, ctx.Err())
	})
}

// Run implements runner.Runner.
func (f *Fake) Run(ctx context.Context, cmd runner.Cmd) (runner.Result, error) {
	line := cmd.String()

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	var h Handler
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.Contains(line, f.rules[i].match) {
			h = f.rules[i].handler
			break
		}
	}
	def := f.Default
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return runner.Result{ExitCode: -1, TimedOut: true}, err
	}
	if h == nil {
		return def, nil
	}
	return h(ctx, cmd)
}

// Start implements runner.Runner.
func (f *Fake) Start(cmd runner.Cmd) (runner.Process, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)
	if f.StartErr != nil {
		return nil, f.StartErr
	}
	p := &Process{pid: 1000 + len(f.started), done: make(chan struct{}), Cmd: cmd}
	f.started = append(f.started, p)
	return p, nil
}

// Calls returns the rendered command lines seen so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.String()
	}
	return out
}

// CallsMatching returns the rendered command lines containing match.
func (f *Fake) CallsMatching(match string) []string {
	var out []string
	for _, c := range f.Calls() {
		if strings.Contains(c, match) {
			out = append(out, c)
		}
	}
	return out
}

// Commands returns the raw commands seen so far, in order.
func (f *Fake) Commands() []runner.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Cmd(nil), f.calls...)
}

// Started returns the processes handed out by Start.
func (f *Fake) Started() []*Process {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Process(nil), f.started...)
}

// Process is the fake runner.Process. Terminate closes Done.
type Process struct {
	Cmd runner.Cmd

	pid  int
	done chan struct{}

	mu         sync.Mutex
	terminated int
}

func (p *Process) Pid() int              { return p.pid }
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate records the call and marks the process exited.
func (p *Process) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated++
	if !p.Exited() {
		close(p.done)
	}
	return nil
}

// Exit marks the process as having exited on its own.
func (p *Process) Exit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.Exited() {
		close(p.done)
	}
}

// Terminations returns how many times Terminate was called.
func (p *Process) Terminations() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

var _ runner.Runner = (*Fake)(nil)
