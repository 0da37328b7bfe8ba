// Package diagnostics gathers targeted evidence from client hosts after a step
// fails, before the failure is reported.
package diagnostics

import (
	"context"
	"log/slog"
	"path"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/execution"
	"git.home.luguber.info/inful/cachebuild/internal/logfields"
	"git.home.luguber.info/inful/cachebuild/internal/observability"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
	"git.home.luguber.info/inful/cachebuild/internal/remote"
)

// CaptureTimeout bounds each diagnostic command.
const CaptureTimeout = 30 * time.Second

const (
	// KindProcessSnapshot is a process listing taken after a timeout.
	KindProcessSnapshot = "process-snapshot"
	// KindConfigLog is the build tool's configuration log.
	KindConfigLog = "config-log"
)

// Capture is one diagnostic command and what it returned per host.
type Capture struct {
	Kind    string
	Command string
	Result  remote.Result
	Err     error
}

// Collector issues diagnostic commands through a remote.Executor.
type Collector struct {
	remote remote.Executor
}

// NewCollector returns a Collector using r.
func NewCollector(r remote.Executor) *Collector {
	return &Collector{remote: r}
}

// Diagnose collects evidence for a failed step. A timed-out step gets a process
// snapshot; a build step that failed functionally gets its config log. Timed-out
// build steps get only the snapshot. Collection problems are logged, never
// returned, and never change the step's classification.
func (c *Collector) Diagnose(ctx context.Context, step pipeline.Step, outcome execution.Outcome, buildDir string, hosts []string) []Capture {
	var commands []Capture
	switch {
	case outcome.Kind == execution.TimedOut:
		commands = append(commands, Capture{Kind: KindProcessSnapshot, Command: "ps auwx"})
	case outcome.Kind == execution.FunctionalFailure && step.IsBuild:
		commands = append(commands, Capture{Kind: KindConfigLog, Command: "cat " + path.Join(buildDir, "config.log")})
	}

	for i := range commands {
		capture := &commands[i]
		res, err := c.remote.Run(ctx, hosts, capture.Command, CaptureTimeout)
		capture.Result = res
		capture.Err = err
		attrs := []slog.Attr{
			logfields.Step(step.Name),
			logfields.Command(capture.Command),
			slog.String("kind", capture.Kind),
		}
		switch {
		case err != nil:
			observability.WarnContext(ctx, "Diagnostic capture failed", append(attrs, logfields.Error(err))...)
		case !res.Passed:
			observability.WarnContext(ctx, "Diagnostic capture incomplete", append(attrs, logfields.Hosts(res.FailedHosts()))...)
		default:
			observability.InfoContext(ctx, "Diagnostic captured", attrs...)
		}
		for _, h := range res.Hosts {
			observability.DebugContext(ctx, "Diagnostic output", logfields.Host(h.Host), slog.String("output", h.Output))
		}
	}
	return commands
}
