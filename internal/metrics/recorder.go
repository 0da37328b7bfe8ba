package metrics

import "time"

// OutcomeLabel enumerates step outcome categories for counters.
type OutcomeLabel string

const (
	OutcomeSuccess           OutcomeLabel = "success"
	OutcomeFunctionalFailure OutcomeLabel = "functional_failure"
	OutcomeTimedOut          OutcomeLabel = "timed_out"
)

// Recorder defines observability hooks for steps, orchestrator stages and whole
// runs. Implementations may forward to Prometheus or similar backends.
type Recorder interface {
	ObserveStepDuration(step string, d time.Duration)
	// ObserveTimeoutFraction records elapsed/timeout for a step (1.0 means the
	// whole window was consumed).
	ObserveTimeoutFraction(step string, fraction float64)
	IncStepOutcome(step string, outcome OutcomeLabel)
	ObserveStageDuration(stage string, d time.Duration)
	ObserveRunDuration(mode string, d time.Duration)
	IncRunOutcome(mode, outcome string) // outcome: succeeded|failed
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, time.Duration)    {}
func (NoopRecorder) ObserveTimeoutFraction(string, float64)       {}
func (NoopRecorder) IncStepOutcome(string, OutcomeLabel)          {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration)   {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)     {}
func (NoopRecorder) IncRunOutcome(string, string)                 {}
