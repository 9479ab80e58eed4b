// Package poll provides the bounded retry-until-condition loop shared by
// device discovery and boot detection.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Until when the overall deadline passes before
// the condition holds.
var ErrTimeout = errors.New("poll: condition not met before timeout")

// Options configures a polling loop.
type Options struct {
	// Interval between checks.
	Interval time.Duration
	// Timeout bounds the whole loop. Zero means no bound other than ctx.
	Timeout time.Duration
	// Immediate runs the first check before waiting one interval.
	Immediate bool
}

// Condition is evaluated on every tick. Returning true stops the loop.
// A non-nil error aborts the loop and is returned as-is.
type Condition func(ctx context.Context) (bool, error)

// Until evaluates cond every Interval until it returns true, the timeout
// elapses (ErrTimeout) or ctx is cancelled (ctx.Err()). The ctx passed to
// cond carries the overall deadline.
func Until(ctx context.Context, opts Options, cond Condition) error {
	if opts.Interval <= 0 {
		return errors.New("poll: interval must be positive")
	}

	loopCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		loopCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	check := func() (bool, error) {
		ok, err := cond(loopCtx)
		if err != nil {
			return false, err
		}
		return ok, nil
	}

	if opts.Immediate {
		if ok, err := check(); err != nil || ok {
			return err
		}
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-loopCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrTimeout
		case <-ticker.C:
			if ok, err := check(); err != nil || ok {
				return err
			}
		}
	}
}
