package build

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/execution"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
)

type scriptedRunner struct {
	fail   map[string]bool
	cancel context.CancelFunc
	calls  []string
}

func (r *scriptedRunner) Run(_ context.Context, req Request) (*RunResult, error) {
	r.calls = append(r.calls, req.Scenario)
	res := &RunResult{Scenario: req.Scenario, Mode: req.Mode, State: StateSucceeded}
	if r.cancel != nil && len(r.calls) == 2 {
		r.cancel()
	}
	if r.fail[req.Scenario] {
		res.State = StateFailed
		return res, ferrors.BuildError(FailureMessage(execution.FunctionalFailure, req.Mode, req.Library)).Build()
	}
	return res, nil
}

func matrixRequests() []Request {
	return []Request{
		{Scenario: "wb", Mode: cachemode.WriteBack},
		{Scenario: "wt", Mode: cachemode.WriteThrough},
		{Scenario: "nocache", Mode: cachemode.NoCache},
	}
}

func TestRunMatrix_ContinuesAfterFailure(t *testing.T) {
	runner := &scriptedRunner{fail: map[string]bool{"wt": true}}

	out, err := RunMatrix(context.Background(), runner, matrixRequests())
	require.Error(t, err)

	assert.Equal(t, []string{"wb", "wt", "nocache"}, runner.calls)
	require.Len(t, out.Runs, 3)
	failed := out.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "wt", failed[0].Scenario)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryBuild))
	assert.Contains(t, err.Error(), "wt: ")
}

func TestRunMatrix_AllPass(t *testing.T) {
	out, err := RunMatrix(context.Background(), &scriptedRunner{}, matrixRequests())
	require.NoError(t, err)
	assert.Len(t, out.Runs, 3)
	assert.Empty(t, out.Failed())
	assert.Zero(t, out.Skipped)
}

func TestRunMatrix_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner := &scriptedRunner{cancel: cancel}

	out, err := RunMatrix(ctx, runner, matrixRequests())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"wb", "wt"}, runner.calls)
	assert.Equal(t, 1, out.Skipped)
}
