package build

import (
	"fmt"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/execution"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
)

// FailureMessage renders the terminal report line for a failed step.
func FailureMessage(kind execution.Kind, mode cachemode.Mode, lib cachemode.InterceptionLibrary) string {
	verb := "Failure to build"
	if kind == execution.TimedOut {
		verb = "Timeout building"
	}
	if lib.Selected() {
		return fmt.Sprintf("%s over dfuse with il %s in mode %s", verb, lib, mode)
	}
	return fmt.Sprintf("%s over dfuse in mode %s", verb, mode)
}

func stepFailure(step pipeline.Step, outcome execution.Outcome, mode cachemode.Mode, lib cachemode.InterceptionLibrary) error {
	msg := FailureMessage(outcome.Kind, mode, lib)
	b := ferrors.BuildError(msg)
	if outcome.Kind == execution.TimedOut {
		b = ferrors.TimeoutError(msg)
	}
	b = b.Fatal().
		WithContext("step", step.Name).
		WithContext("step_index", step.Index).
		WithContext("elapsed", outcome.Elapsed.String())
	if outcome.Detail != "" {
		b = b.WithContext("detail", outcome.Detail)
	}
	return b.Build()
}
