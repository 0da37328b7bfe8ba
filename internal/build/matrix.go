package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/cachebuild/internal/logfields"
)

// MatrixResult collects the runs of one matrix pass in request order.
type MatrixResult struct {
	Runs []*RunResult
	// Skipped counts requests not started because the context was cancelled.
	Skipped int
}

// Failed returns the runs that did not succeed.
func (m *MatrixResult) Failed() []*RunResult {
	var out []*RunResult
	for _, r := range m.Runs {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

// RunMatrix executes reqs one after another. A failed run does not stop the
// matrix; cancellation of ctx does. The returned error joins every run error.
func RunMatrix(ctx context.Context, runner Runner, reqs []Request) (*MatrixResult, error) {
	out := &MatrixResult{}
	var errs []error

	for i, req := range reqs {
		if err := ctx.Err(); err != nil {
			out.Skipped = len(reqs) - i
			errs = append(errs, fmt.Errorf("matrix cancelled before %q: %w", req.Scenario, err))
			break
		}

		slog.Info("Matrix run starting",
			logfields.Scenario(req.Scenario),
			logfields.Mode(string(req.Mode)),
			slog.Int("position", i+1),
			slog.Int("total", len(reqs)))

		res, err := runner.Run(ctx, req)
		if res != nil {
			out.Runs = append(out.Runs, res)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", req.Scenario, err))
		}
	}

	slog.Info("Matrix finished",
		slog.Int("runs", len(out.Runs)),
		slog.Int("failed", len(out.Failed())),
		slog.Int("skipped", out.Skipped))
	return out, errors.Join(errs...)
}
