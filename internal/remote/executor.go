// Package remote runs shell commands on the client host set.
//
// An Executor fans a single command out to every host and waits for all of them
// under one aggregate timeout. It reports the aggregate verdict in Result; errors are
// reserved for requests that could not be attempted at all.
package remote

import (
	"context"
	"errors"
	"time"
)

// ErrNoHosts is returned when Run is called with an empty host set.
var ErrNoHosts = errors.New("remote: no hosts")

// ErrSingleHost is returned by executors that can only reach one host.
var ErrSingleHost = errors.New("remote: executor supports a single host")

// Executor runs one command on a host set with a single aggregate timeout.
type Executor interface {
	Run(ctx context.Context, hosts []string, command string, timeout time.Duration) (Result, error)
}

// HostResult is the outcome on one host.
type HostResult struct {
	Host     string
	ExitCode int
	// Output is the tail of combined stdout/stderr.
	Output   string
	TimedOut bool
	Err      error
}

// Passed reports whether the command exited 0 on this host.
func (h HostResult) Passed() bool {
	return h.Err == nil && !h.TimedOut && h.ExitCode == 0
}

// Result aggregates host results.
type Result struct {
	// Passed is true only if every host passed.
	Passed bool
	// TimedOut is true if the aggregate timeout expired on any host.
	TimedOut bool
	Hosts    []HostResult
}

// FailedHosts returns the hosts that did not pass.
func (r Result) FailedHosts() []string {
	var out []string
	for _, h := range r.Hosts {
		if !h.Passed() {
			out = append(out, h.Host)
		}
	}
	return out
}

func aggregate(hosts []HostResult) Result {
	res := Result{Passed: len(hosts) > 0, Hosts: hosts}
	for _, h := range hosts {
		if !h.Passed() {
			res.Passed = false
		}
		if h.TimedOut {
			res.TimedOut = true
		}
	}
	return res
}

// deadlineHit reports whether runCtx ended because of its own timeout rather
// than cancellation of parent.
func deadlineHit(parent, runCtx context.Context) bool {
	return parent.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded)
}
