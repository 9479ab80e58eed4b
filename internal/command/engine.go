// Package command executes adb commands against a device serial with a
// per-attempt timeout, bounded retries and an in-memory result history.
package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/Iron-Ham/droidbench/internal/errors"
	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// Engine defaults.
const (
	DefaultTimeout       = 30 * time.Second
	DefaultRetryAttempts = 2
	DefaultRetryBackoff  = 2 * time.Second
)

// Result is the outcome of one command attempt. Success is true exactly
// when ReturnCode is zero; timeouts and spawn failures report -1.
type Result struct {
	ID            string
	Command       string
	Success       bool
	Stdout        string
	Stderr        string
	ReturnCode    int
	ExecutionTime time.Duration
	Timestamp     time.Time
	Serial        string
	// PlatformVersion is zero when unknown.
	PlatformVersion int
	ScreenshotPath  string
	// Attempt is 1-based.
	Attempt int
}

// Recorder persists results outside the engine.
type Recorder interface {
	Record(ctx context.Context, res Result) error
}

// Config configures an Engine.
type Config struct {
	// ADB is the adb binary commands are prefixed with.
	ADB           string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	// ScreenshotDir receives pulled screenshots. Defaults to os.TempDir().
	ScreenshotDir string
}

// Engine runs commands and keeps their history.
type Engine struct {
	cfg      Config
	runner   runner.Runner
	recorder Recorder
	logger   *logging.Logger
	now      func() time.Time

	mu      sync.Mutex
	history []Result
}

// NewEngine creates an Engine. Zero values in cfg take the defaults.
func NewEngine(cfg Config, r runner.Runner, logger *logging.Logger) *Engine {
	if cfg.ADB == "" {
		cfg.ADB = "adb"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = DefaultRetryAttempts
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}
	return &Engine{cfg: cfg, runner: r, logger: logger, now: time.Now}
}

// SetRecorder attaches a persistent result store. Recorder failures are
// logged and otherwise ignored.
func (e *Engine) SetRecorder(rec Recorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = rec
}

type execOptions struct {
	timeout    time.Duration
	attempts   int
	screenshot bool
	platform   int
}

// Option adjusts a single Execute call.
type Option func(*execOptions)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *execOptions) { o.timeout = d }
}

// WithRetryAttempts sets the total number of attempts, including the first.
func WithRetryAttempts(n int) Option {
	return func(o *execOptions) { o.attempts = n }
}

// WithScreenshot captures a screenshot after the final attempt.
func WithScreenshot() Option {
	return func(o *execOptions) { o.screenshot = true }
}

// WithPlatformVersion tags results with the device's platform version.
func WithPlatformVersion(v int) Option {
	return func(o *execOptions) { o.platform = v }
}

var errAttemptFailed = errors.New("command attempt failed")

// Execute runs command against serial and returns the last attempt's
// result. Failed attempts are retried after a fixed backoff until one
// succeeds or the attempts are used up. Every attempt lands in the history.
func (e *Engine) Execute(ctx context.Context, command, serial string, opts ...Option) Result {
	o := execOptions{timeout: e.cfg.Timeout, attempts: e.cfg.RetryAttempts}
	for _, opt := range opts {
		opt(&o)
	}
	if o.timeout <= 0 {
		o.timeout = e.cfg.Timeout
	}
	if o.attempts < 1 {
		o.attempts = 1
	}

	line := e.Normalize(command, serial)
	log := e.logger.WithDevice(serial)
	log.Debug("executing command", "cmd", line)

	var last Result
	attempt := 0
	op := func() error {
		attempt++
		res := e.run(ctx, line, serial, o.timeout)
		res.Attempt = attempt
		res.PlatformVersion = o.platform
		if o.screenshot && (res.Success || attempt >= o.attempts) {
			if path, ok := e.CaptureScreenshot(ctx, serial); ok {
				res.ScreenshotPath = path
			}
		}
		e.record(ctx, res)
		last = res
		if res.Success {
			return nil
		}
		return errAttemptFailed
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.RetryBackoff), uint64(o.attempts-1)),
		ctx,
	)
	_ = backoff.RetryNotify(op, b, func(_ error, wait time.Duration) {
		log.Warn("command failed, retrying",
			"cmd", line,
			"attempt", attempt,
			"attempts", o.attempts,
			"return_code", last.ReturnCode,
			"wait", wait.String())
	})
	return last
}

func (e *Engine) run(ctx context.Context, line, serial string, timeout time.Duration) Result {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := e.now()
	res, err := e.runner.Run(runCtx, runner.Cmd{Shell: line})
	out := Result{
		ID:            uuid.NewString(),
		Command:       line,
		Serial:        serial,
		ExecutionTime: e.now().Sub(start),
		Timestamp:     e.now(),
	}

	switch {
	case ctx.Err() != nil:
		out.ReturnCode = -1
		out.Stdout = res.Stdout
		out.Stderr = fmt.Sprintf("Command cancelled: %v", ctx.Err())
	case res.TimedOut:
		out.ReturnCode = -1
		out.Stdout = res.Stdout
		out.Stderr = fmt.Sprintf("Command timeout after %gs", timeout.Seconds())
	case err != nil:
		out.ReturnCode = -1
		out.Stderr = err.Error()
	default:
		out.Stdout = res.Stdout
		out.Stderr = res.Stderr
		out.ReturnCode = res.ExitCode
		out.Success = res.ExitCode == 0
	}
	return out
}

func (e *Engine) record(ctx context.Context, res Result) {
	e.mu.Lock()
	e.history = append(e.history, res)
	rec := e.recorder
	e.mu.Unlock()

	if rec == nil {
		return
	}
	if err := rec.Record(context.WithoutCancel(ctx), res); err != nil {
		e.logger.WithDevice(res.Serial).Warn("failed to persist command result", "id", res.ID, "error", err.Error())
	}
}

// History returns a copy of every recorded attempt in completion order.
func (e *Engine) History() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.history...)
}

// ClearHistory drops the in-memory history.
func (e *Engine) ClearHistory() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = nil
}

// Normalize renders command as a full adb invocation for serial.
func (e *Engine) Normalize(command, serial string) string {
	return Normalize(e.cfg.ADB, command, serial)
}

// globalFlagsWithValue are adb options that consume the next token.
var globalFlagsWithValue = map[string]bool{
	"-s": true, "-t": true, "-H": true, "-P": true, "-L": true,
}

// Normalize strips a leading "adb" token from command, adds "-s serial"
// unless the leading global options already name a device, and prefixes the
// tool path.
func Normalize(tool, command, serial string) string {
	return normalize(runner.Quote, tool, command, serial)
}

func normalize(quote func(string) string, tool, command, serial string) string {
	command = strings.TrimSpace(command)
	if command == "adb" {
		command = ""
	} else if rest, ok := strings.CutPrefix(command, "adb "); ok {
		command = strings.TrimSpace(rest)
	}

	prefix := quote(tool)
	if serial == "" || hasDeviceFlag(command) {
		return strings.TrimSpace(prefix + " " + command)
	}
	return strings.TrimSpace(prefix + " -s " + quote(serial) + " " + command)
}

func hasDeviceFlag(command string) bool {
	fields := strings.Fields(command)
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		if !strings.HasPrefix(f, "-") {
			return false
		}
		if f == "-s" || strings.HasPrefix(f, "-s=") {
			return true
		}
		if globalFlagsWithValue[f] {
			i++
		}
	}
	return false
}
