//go:build windows

package runner

import (
	"errors"
	"os"
	"syscall"
)

// Quote escapes s as one argument of a Cmd.Shell line.
func Quote(s string) string {
	return QuoteCmd(s)
}

func shellCommand(line string) (string, []string) {
	return "cmd", []string{"/S", "/C", line}
}

// The line reaches cmd.exe verbatim, not re-escaped for argv.
func shellProcAttr(line string) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{CmdLine: `cmd /S /C "` + line + `"`}
}

func sysProcAttr() *syscall.SysProcAttr {
	return nil
}

// Windows has no process-group signal; both paths kill the process.
func signalGroup(p *os.Process) error {
	return killGroup(p)
}

func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
