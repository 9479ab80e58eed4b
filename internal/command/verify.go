package command

import (
	"context"
	"regexp"

	"github.com/Iron-Ham/droidbench/internal/util"
)

// verifyPreviewLen bounds how much output a mismatch diagnostic shows.
const verifyPreviewLen = 200

// VerifyOutputPattern runs command once through Execute and searches its
// stdout for pattern, ignoring case. The string is a human-readable
// diagnostic.
func (e *Engine) VerifyOutputPattern(ctx context.Context, command, serial, pattern string, opts ...Option) (bool, string) {
	_, ok, msg := e.Verify(ctx, command, serial, pattern, opts...)
	return ok, msg
}

// Verify is VerifyOutputPattern that also returns the executed result. The
// result is zero when the pattern does not compile.
func (e *Engine) Verify(ctx context.Context, command, serial, pattern string, opts ...Option) (Result, bool, string) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return Result{}, false, "Invalid pattern: " + err.Error()
	}

	res := e.Execute(ctx, command, serial, opts...)
	if !res.Success {
		return res, false, "Command failed: " + res.Stderr
	}
	if re.MatchString(res.Stdout) {
		return res, true, "Pattern matched"
	}
	return res, false, "Pattern not found. Output: " + util.Head(res.Stdout, verifyPreviewLen) + "..."
}
