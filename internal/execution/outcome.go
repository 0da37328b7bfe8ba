// Package execution runs one pipeline step on the client host set and classifies
// what happened.
package execution

import "time"

// Kind classifies a finished step.
type Kind int

const (
	Success Kind = iota
	FunctionalFailure
	TimedOut
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case FunctionalFailure:
		return "functional_failure"
	case TimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Outcome is the result of executing one step. Detail carries the failing hosts
// and their output tail, or the executor error, for non-success outcomes.
type Outcome struct {
	Kind    Kind
	Elapsed time.Duration
	Detail  string
}

// Succeeded reports whether the step passed on every host.
func (o Outcome) Succeeded() bool { return o.Kind == Success }
