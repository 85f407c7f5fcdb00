package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// StartDetached spawns `webmon serve` as a background process detached from
// the terminal. Extra args are passed through to the serve command.
func StartDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, fmt.Errorf("failed to get executable path: %w", err)
	}
	return spawn(executable, append([]string{"serve"}, args...)...)
}

func spawn(executable string, args ...string) (int, error) {
	cmd := exec.Command(executable, args...)

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // new session, detached from the terminal
	}

	// No stdin/stdout/stderr: the daemon logs to files in the data dir.
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start daemon: %w", err)
	}
	pid := cmd.Process.Pid
	// The child is reparented; we never wait on it.
	_ = cmd.Process.Release()
	return pid, nil
}
