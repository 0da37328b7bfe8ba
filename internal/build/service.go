package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/diagnostics"
	"git.home.luguber.info/inful/cachebuild/internal/execution"
)

// Runner executes a single run.
type Runner interface {
	Run(ctx context.Context, req Request) (*RunResult, error)
}

// Request is the input to one run.
type Request struct {
	// RunID identifies the run; a UUID is generated when empty.
	RunID    string
	Scenario string
	Mode     cachemode.Mode
	Library  cachemode.InterceptionLibrary
	// Hosts are the client hosts every pipeline step runs on.
	Hosts       []string
	Constrained bool
	// Prefix overrides DAOS_PREFIX when locating interception libraries.
	Prefix string
	// NamespaceHint overrides the mount directory template.
	NamespaceHint string
	// SourceRef is resolved to a revision for the report when a resolver is set.
	SourceRef     string
	KeepOnFailure bool
}

// State is the orchestrator lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StatePreparing State = "preparing"
	StateExecuting State = "executing"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// IsTerminal reports whether no further transition can happen.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// StepRecord is the outcome of one executed step.
type StepRecord struct {
	Index   int
	Name    string
	IsBuild bool
	Timeout time.Duration
	Outcome execution.Outcome
}

// RunResult describes a finished run.
type RunResult struct {
	RunID        string
	Scenario     string
	Mode         cachemode.Mode
	Library      cachemode.InterceptionLibrary
	Jobs         int
	BuildTimeout time.Duration
	Revision     string

	Pool      string
	Container string
	MountDir  string

	State State
	Steps []StepRecord

	// FailedIndex is the 1-based index of the failing step, or 0.
	FailedIndex   int
	FailedStep    string
	FailedOutcome execution.Outcome
	Diagnostics   []diagnostics.Capture
	// Message is the terminal report line.
	Message string

	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
}

// Succeeded reports whether every step passed.
func (r *RunResult) Succeeded() bool { return r.State == StateSucceeded }

// StepsCompleted counts the steps that succeeded.
func (r *RunResult) StepsCompleted() int {
	n := 0
	for _, s := range r.Steps {
		if s.Outcome.Succeeded() {
			n++
		}
	}
	return n
}
