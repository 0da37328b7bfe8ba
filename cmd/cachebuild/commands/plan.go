package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/config"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
	"git.home.luguber.info/inful/cachebuild/internal/provision"
	"git.home.luguber.info/inful/cachebuild/internal/remoteenv"
)

// PlanCmd implements the 'plan' command.
type PlanCmd struct {
	Scenario    string `short:"s" help:"Scenario to plan" xor:"target"`
	Mode        string `short:"m" help:"Cache mode" xor:"target"`
	Library     string `short:"l" help:"Interception library with --mode"`
	Constrained bool   `help:"Treat the client hosts as resource-constrained"`
	MountDir    string `name:"mount-dir" help:"Mount directory to render (defaults to the namespace template)"`
}

func (p *PlanCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(true)
	if err != nil {
		return err
	}
	s, err := resolveScenario(cfg, p.Scenario, p.Mode, p.Library)
	if err != nil {
		return err
	}
	constrained := s.Constrained || cfg.Hosts.Constrained || p.Constrained
	return writePlan(os.Stdout, cfg, s, constrained, p.MountDir, remoteenv.OSSource{})
}

func writePlan(w io.Writer, cfg *config.Config, s config.Scenario, constrained bool, mountDir string, src remoteenv.Source) error {
	profile, err := cachemode.Catalog{}.Resolve(s.Mode, s.Library)
	if err != nil {
		return err
	}
	if mountDir == "" {
		mountDir = cfg.Run.Namespace
		if mountDir == "" {
			mountDir = provision.NamespaceHint(constrained)
		}
	}

	env, err := (&remoteenv.Builder{Source: src}).Build(remoteenv.Request{
		MountDir:    mountDir,
		Mode:        s.Mode,
		Library:     s.Library,
		Constrained: constrained,
		Prefix:      cfg.DAOS.Prefix,
	})
	if err != nil {
		return err
	}
	jobs := pipeline.JobCount(constrained, s.Library)
	plan := pipeline.NewAssembler(cfg.Source.URL).Assemble(pipeline.Context{
		MountDir: mountDir,
		Jobs:     jobs,
		Profile:  profile,
	}, env)

	fmt.Fprintf(w, "Scenario %s: mode %s", s.Name, s.Mode)
	if s.Library.Selected() {
		fmt.Fprintf(w, ", library %s", s.Library)
	}
	fmt.Fprintf(w, ", constrained %t\n\n", constrained)

	fmt.Fprintln(w, "Container attributes:")
	for _, a := range profile.Attributes() {
		fmt.Fprintf(w, "  %s=%s\n", a.Name, a.Value)
	}
	fmt.Fprintf(w, "\nClient:\n  %s\n", provision.StartCommand(&provision.ClientHandle{
		MountDir:         mountDir,
		DisableWriteback: profile.DisableWriteback(),
		DisableCaching:   profile.DisableCaching(),
	}, provision.Pool{Label: "<pool>"}, provision.Container{Label: "<container>"}))

	fmt.Fprintf(w, "\nJobs %d, build timeout %s (x%d)\n", jobs, pipeline.BuildTimeout(profile), profile.BuildTimeMultiplier())

	fmt.Fprintln(w, "\nEnvironment:")
	m := env.Map()
	for _, k := range env.Keys() {
		fmt.Fprintf(w, "  %s=%s\n", k, m[k])
	}

	fmt.Fprintln(w, "\nSteps:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, st := range plan.Steps {
		kind := ""
		if st.IsBuild {
			kind = "build"
		}
		fmt.Fprintf(tw, "  %d\t%s\t%ds\t%s\t%s\n", st.Index, st.Name, st.TimeoutSeconds(), kind, st.Command)
	}
	return tw.Flush()
}
