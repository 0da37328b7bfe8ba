package commands

import (
	"context"
	"os"

	"git.home.luguber.info/inful/cachebuild/internal/build"
)

// MatrixCmd implements the 'matrix' command.
type MatrixCmd struct {
	Scenarios []string `arg:"" optional:"" help:"Scenarios to run instead of the configured matrix"`
}

func (m *MatrixCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(false)
	if err != nil {
		return err
	}
	if len(m.Scenarios) > 0 {
		cfg.Matrix = m.Scenarios
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	out, err := runMatrix(ctx, a)
	if out != nil {
		for _, r := range out.Runs {
			printRunResult(os.Stdout, r)
		}
		printMatrixSummary(os.Stdout, out)
	}
	return err
}

// runMatrix resolves the configured matrix and runs it, pushing metrics at the end.
func runMatrix(ctx context.Context, a *app) (*build.MatrixResult, error) {
	scenarios, err := a.cfg.MatrixScenarios()
	if err != nil {
		return nil, err
	}
	reqs := make([]build.Request, 0, len(scenarios))
	for _, s := range scenarios {
		reqs = append(reqs, a.request(s))
	}
	out, err := build.RunMatrix(ctx, a.orchestrator, reqs)
	a.pushMetrics(ctx, map[string]string{"scenario": "matrix"})
	return out, err
}
