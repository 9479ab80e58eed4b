//go:build !windows

package runner

import (
	"errors"
	"os"
	"syscall"
)

func shellCommand(line string) (string, []string) {
	return "sh", []string{"-c", line}
}

// Quote escapes s as one argument of a Cmd.Shell line.
func Quote(s string) string {
	return QuotePOSIX(s)
}

func shellProcAttr(string) *syscall.SysProcAttr {
	return sysProcAttr()
}

func sysProcAttr() *syscall.SysProcAttr {
	// New process group so the tool and anything it forks die together.
	return &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	return ignoreGone(syscall.Kill(-p.Pid, syscall.SIGTERM))
}

func killGroup(p *os.Process) error {
	if p == nil {
		return nil
	}
	return ignoreGone(syscall.Kill(-p.Pid, syscall.SIGKILL))
}

func ignoreGone(err error) error {
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}
