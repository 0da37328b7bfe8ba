package helpers

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/remote"
)

// RemoteCall records one FakeRemote.Run invocation.
type RemoteCall struct {
	Hosts   []string
	Command string
	Timeout time.Duration
}

type remoteRule struct {
	match  string
	result func(hosts []string) remote.Result
	err    error
}

// FakeRemote is a scripted remote.Executor. Commands containing a registered
// substring get the scripted result (first match wins); everything else passes
// on every host.
type FakeRemote struct {
	mu    sync.Mutex
	rules []remoteRule
	calls []RemoteCall
}

// NewFakeRemote returns a FakeRemote on which every command passes.
func NewFakeRemote() *FakeRemote { return &FakeRemote{} }

// Fail makes commands containing match exit with code on every host.
func (f *FakeRemote) Fail(match string, code int, output string) *FakeRemote {
	return f.add(remoteRule{match: match, result: func(hosts []string) remote.Result {
		return FailResult(hosts, code, output)
	}})
}

// FailOn makes commands containing match exit with code on the listed hosts
// only; the other hosts pass.
func (f *FakeRemote) FailOn(match string, failing []string, code int, output string) *FakeRemote {
	return f.add(remoteRule{match: match, result: func(hosts []string) remote.Result {
		res := remote.Result{Passed: true}
		for _, h := range hosts {
			hr := remote.HostResult{Host: h}
			if slices.Contains(failing, h) {
				hr.ExitCode, hr.Output = code, output
				res.Passed = false
			}
			res.Hosts = append(res.Hosts, hr)
		}
		return res
	}})
}

// Timeout makes commands containing match exceed their timeout.
func (f *FakeRemote) Timeout(match string) *FakeRemote {
	return f.add(remoteRule{match: match, result: TimeoutResult})
}

// Error makes commands containing match return err from Run.
func (f *FakeRemote) Error(match string, err error) *FakeRemote {
	return f.add(remoteRule{match: match, err: err})
}

func (f *FakeRemote) add(r remoteRule) *FakeRemote {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, r)
	return f
}

// Run implements remote.Executor.
func (f *FakeRemote) Run(_ context.Context, hosts []string, command string, timeout time.Duration) (remote.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, RemoteCall{Hosts: append([]string(nil), hosts...), Command: command, Timeout: timeout})
	if len(hosts) == 0 {
		return remote.Result{}, remote.ErrNoHosts
	}
	for _, r := range f.rules {
		if !strings.Contains(command, r.match) {
			continue
		}
		if r.err != nil {
			return remote.Result{}, r.err
		}
		return r.result(hosts), nil
	}
	return PassResult(hosts), nil
}

// Calls returns a copy of the recorded invocations.
func (f *FakeRemote) Calls() []RemoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RemoteCall(nil), f.calls...)
}

// Commands returns the recorded command strings in order.
func (f *FakeRemote) Commands() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Command
	}
	return out
}

// CountContaining returns how many recorded commands contain substr.
func (f *FakeRemote) CountContaining(substr string) int {
	n := 0
	for _, c := range f.Commands() {
		if strings.Contains(c, substr) {
			n++
		}
	}
	return n
}

// PassResult is a Result where every host exited 0.
func PassResult(hosts []string) remote.Result {
	res := remote.Result{Passed: true}
	for _, h := range hosts {
		res.Hosts = append(res.Hosts, remote.HostResult{Host: h})
	}
	return res
}

// FailResult is a Result where every host exited with code.
func FailResult(hosts []string, code int, output string) remote.Result {
	var res remote.Result
	for _, h := range hosts {
		res.Hosts = append(res.Hosts, remote.HostResult{Host: h, ExitCode: code, Output: output})
	}
	return res
}

// TimeoutResult is a Result where every host hit the aggregate timeout.
func TimeoutResult(hosts []string) remote.Result {
	res := remote.Result{TimedOut: true}
	for _, h := range hosts {
		res.Hosts = append(res.Hosts, remote.HostResult{Host: h, ExitCode: -1, TimedOut: true})
	}
	return res
}
