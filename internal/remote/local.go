package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"syscall"
	"time"
)

// LocalExecutor runs commands on the current machine through bash. It is used
// for single-node setups where the mount is local, so Run accepts exactly one
// host name and reports the result under it.
type LocalExecutor struct {
	Shell            string
	TailBytes        int
	TerminationGrace time.Duration
}

// NewLocalExecutor returns a LocalExecutor with defaults.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{Shell: "/bin/bash", TailBytes: defaultTailBytes, TerminationGrace: 5 * time.Second}
}

// Run implements Executor.
func (e *LocalExecutor) Run(ctx context.Context, hosts []string, command string, timeout time.Duration) (Result, error) {
	switch {
	case len(hosts) == 0:
		return Result{}, ErrNoHosts
	case len(hosts) > 1:
		return Result{}, fmt.Errorf("%w: local transport cannot reach %v", ErrSingleHost, hosts[1:])
	}

	runCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	shell := e.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	out := newTailBuffer(e.TailBytes)

	cmd := exec.CommandContext(runCtx, shell, "-c", command)
	cmd.Stdout = out
	cmd.Stderr = out
	// Own process group so the whole tree is signalled on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = e.TerminationGrace

	slog.Debug("Running local command", "host", hosts[0], "timeout", timeout)
	err := cmd.Run()

	hr := HostResult{Host: hosts[0], ExitCode: -1, Output: out.String()}
	if cmd.ProcessState != nil {
		hr.ExitCode = cmd.ProcessState.ExitCode()
	}
	switch {
	case deadlineHit(ctx, runCtx):
		hr.TimedOut = true
	case err != nil:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			hr.Err = err
		}
	}

	return aggregate([]HostResult{hr}), nil
}
