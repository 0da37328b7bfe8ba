package commands

import (
	"fmt"
	"os"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/config"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Scenario      string   `short:"s" help:"Scenario to run (see 'cachebuild modes')" xor:"target"`
	Mode          string   `short:"m" help:"Cache mode (writeback|writethrough|metadata|data|nocache)" xor:"target"`
	Library       string   `short:"l" help:"Interception library with --mode (ioil|pil4dfs)"`
	Hosts         []string `help:"Override hosts.clients"`
	Constrained   bool     `help:"Treat the client hosts as resource-constrained"`
	KeepOnFailure bool     `name:"keep-on-failure" help:"Leave pool, container and mount in place when the run fails"`
	RunID         string   `name:"run-id" help:"Run identifier (generated when empty)"`
}

func (r *RunCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(false)
	if err != nil {
		return err
	}
	scenario, err := resolveScenario(cfg, r.Scenario, r.Mode, r.Library)
	if err != nil {
		return err
	}
	if err := r.applyOverrides(cfg); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := signalContext()
	defer cancel()

	req := a.request(scenario)
	req.RunID = r.RunID
	if r.Constrained {
		req.Constrained = true
	}

	res, runErr := a.orchestrator.Run(ctx, req)
	printRunResult(os.Stdout, res)
	a.pushMetrics(ctx, map[string]string{"scenario": scenario.Name})
	return runErr
}

// applyOverrides applies host and teardown flags and re-validates the result.
func (r *RunCmd) applyOverrides(cfg *config.Config) error {
	if r.KeepOnFailure {
		cfg.Run.KeepOnFailure = true
	}
	if len(r.Hosts) == 0 {
		return nil
	}
	cfg.Hosts.Clients = r.Hosts
	return config.Validate(cfg)
}

// resolveScenario resolves --scenario or --mode/--library into a scenario.
func resolveScenario(cfg *config.Config, scenario, mode, library string) (config.Scenario, error) {
	if scenario != "" {
		if library != "" {
			return config.Scenario{}, usageError("--library cannot be combined with --scenario")
		}
		return cfg.Scenario(scenario)
	}
	if mode == "" {
		return config.Scenario{}, usageError("one of --scenario or --mode is required")
	}
	m, err := cachemode.ParseMode(mode)
	if err != nil {
		return config.Scenario{}, err
	}
	lib, err := cachemode.ParseInterceptionLibrary(library)
	if err != nil {
		return config.Scenario{}, err
	}
	name := string(m)
	if lib.Selected() {
		name = fmt.Sprintf("%s+%s", m, lib)
	}
	return config.Scenario{Name: name, Mode: m, Library: lib}, nil
}
