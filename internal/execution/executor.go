package execution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/logfields"
	"git.home.luguber.info/inful/cachebuild/internal/metrics"
	"git.home.luguber.info/inful/cachebuild/internal/observability"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
	"git.home.luguber.info/inful/cachebuild/internal/remote"
)

// StepExecutor runs pipeline steps through a remote.Executor. It makes exactly
// one attempt per step.
type StepExecutor struct {
	remote   remote.Executor
	recorder metrics.Recorder
	now      func() time.Time
}

// NewStepExecutor returns a StepExecutor using r for remote execution.
func NewStepExecutor(r remote.Executor) *StepExecutor {
	return &StepExecutor{remote: r, recorder: metrics.NoopRecorder{}, now: time.Now}
}

// WithRecorder sets the metrics recorder.
func (e *StepExecutor) WithRecorder(r metrics.Recorder) *StepExecutor {
	if r != nil {
		e.recorder = r
	}
	return e
}

// WithClock overrides the time source (tests).
func (e *StepExecutor) WithClock(now func() time.Time) *StepExecutor {
	if now != nil {
		e.now = now
	}
	return e
}

// Execute runs step.Script on hosts under step.Timeout. It never returns an error:
// every failure mode maps to an Outcome kind.
func (e *StepExecutor) Execute(ctx context.Context, step pipeline.Step, hosts []string) Outcome {
	observability.InfoContext(ctx, fmt.Sprintf("Running '%s' with a %ds timeout", step.Command, step.TimeoutSeconds()),
		logfields.StepIndex(step.Index),
		logfields.Step(step.Name),
		logfields.Hosts(hosts))

	start := e.now()
	res, err := e.remote.Run(ctx, hosts, step.Script, step.Timeout)
	elapsed := e.now().Sub(start)

	out := Outcome{Kind: classify(res, err), Elapsed: elapsed}
	if out.Kind != Success {
		out.Detail = detail(res, err)
	}

	pct := percentOf(elapsed, step.Timeout)
	attrs := []slog.Attr{
		logfields.StepIndex(step.Index),
		logfields.Step(step.Name),
		logfields.Outcome(out.Kind.String()),
		logfields.Elapsed(elapsed),
		logfields.TimeoutPercent(pct),
	}
	msg := fmt.Sprintf("Command %s completed in %s (%d%% of timeout)", step.Command, logfields.MinSec(elapsed), pct)
	if out.Kind == Success {
		observability.InfoContext(ctx, msg, attrs...)
	} else {
		observability.WarnContext(ctx, msg, append(attrs, slog.String("detail", out.Detail))...)
	}

	e.recorder.ObserveStepDuration(step.Name, elapsed)
	if step.Timeout > 0 {
		e.recorder.ObserveTimeoutFraction(step.Name, elapsed.Seconds()/step.Timeout.Seconds())
	}
	e.recorder.IncStepOutcome(step.Name, outcomeLabel(out.Kind))

	return out
}

func classify(res remote.Result, err error) Kind {
	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return TimedOut
	case err != nil:
		return FunctionalFailure
	case res.TimedOut:
		return TimedOut
	case res.Passed:
		return Success
	default:
		return FunctionalFailure
	}
}

func detail(res remote.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	var b strings.Builder
	for _, h := range res.Hosts {
		if h.Passed() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		switch {
		case h.TimedOut:
			fmt.Fprintf(&b, "%s: timed out", h.Host)
		case h.Err != nil:
			fmt.Fprintf(&b, "%s: %v", h.Host, h.Err)
		default:
			fmt.Fprintf(&b, "%s: exit status %d", h.Host, h.ExitCode)
		}
		if tail := strings.TrimSpace(h.Output); tail != "" {
			b.WriteString("\n")
			b.WriteString(tail)
		}
	}
	return b.String()
}

func percentOf(elapsed, timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	return int(elapsed * 100 / timeout)
}

func outcomeLabel(k Kind) metrics.OutcomeLabel {
	switch k {
	case Success:
		return metrics.OutcomeSuccess
	case TimedOut:
		return metrics.OutcomeTimedOut
	default:
		return metrics.OutcomeFunctionalFailure
	}
}
