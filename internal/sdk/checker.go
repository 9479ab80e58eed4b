package sdk

import (
	"context"
	"slices"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/Iron-Ham/droidbench/internal/logging"
	"github.com/Iron-Ham/droidbench/internal/runner"
)

// DefaultVersionTimeout bounds each tool's version command.
const DefaultVersionTimeout = 5 * time.Second

// Checker reports which control tools are usable on this host.
type Checker struct {
	sdk            *SDK
	runner         runner.Runner
	logger         *logging.Logger
	versionTimeout time.Duration
}

// NewChecker creates a Checker for the tools of s through r.
func NewChecker(s *SDK, r runner.Runner, logger *logging.Logger) *Checker {
	return &Checker{sdk: s, runner: r, logger: logger, versionTimeout: DefaultVersionTimeout}
}

// Check runs every tool's version command concurrently and returns tool
// name → available. A tool is available when its version command exits 0
// within the timeout, or when its resolved path exists on disk. Check never
// fails; problems show up as false entries.
func (c *Checker) Check(ctx context.Context) map[string]bool {
	type check struct {
		tool Tool
		ok   bool
	}
	p := pool.NewWithResults[check]()
	for _, tool := range Tools {
		p.Go(func() check {
			return check{tool: tool, ok: c.runVersion(ctx, tool)}
		})
	}

	results := make(map[string]bool, len(Tools))
	for _, r := range p.Wait() {
		results[string(r.tool)] = r.ok
	}

	c.logger.Debug("prerequisite check complete", "missing", Missing(results))
	return results
}

func (c *Checker) runVersion(ctx context.Context, tool Tool) bool {
	path := c.sdk.ToolPath(tool)
	args := []string{"--version"}
	if tool == ADB {
		args = []string{"version"}
	}

	runCtx, cancel := context.WithTimeout(ctx, c.versionTimeout)
	defer cancel()

	res, err := c.runner.Run(runCtx, runner.Cmd{Name: path, Args: args})
	if err == nil && res.ExitCode == 0 {
		return true
	}
	if c.sdk.ToolExists(tool) {
		return true
	}
	c.logger.Debug("tool unavailable", "tool", string(tool), "path", path)
	return false
}

// Missing returns the sorted names of tools reported unavailable.
func Missing(checks map[string]bool) []string {
	var missing []string
	for name, ok := range checks {
		if !ok {
			missing = append(missing, name)
		}
	}
	slices.Sort(missing)
	return missing
}
