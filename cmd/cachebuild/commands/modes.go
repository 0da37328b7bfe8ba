package commands

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/cachebuild/internal/cachemode"
	"git.home.luguber.info/inful/cachebuild/internal/config"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
)

// ModesCmd implements the 'modes' command.
type ModesCmd struct{}

func (m *ModesCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(true)
	if err != nil {
		return err
	}
	return writeModes(os.Stdout, cfg)
}

func writeModes(w io.Writer, cfg *config.Config) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODE\tDATA CACHE\tENTRY TIME\tNO WB\tNO CACHE\tBUILD TIMEOUT\tWITH IL")
	for _, mode := range cachemode.Modes() {
		p, err := cachemode.Catalog{}.Resolve(mode, cachemode.NoLibrary)
		if err != nil {
			return err
		}
		il, err := cachemode.Catalog{}.Resolve(mode, cachemode.IOIL)
		if err != nil {
			return err
		}
		attrs := p.AttributeMap()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			mode, attrs[cachemode.AttrDataCache], attrs[cachemode.AttrAttrTime],
			p.DisableWriteback(), p.DisableCaching(),
			pipeline.BuildTimeout(p), pipeline.BuildTimeout(il))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	scenarios, err := cfg.AllScenarios()
	if err != nil {
		return err
	}
	inMatrix := make(map[string]bool, len(cfg.Matrix))
	for _, n := range cfg.Matrix {
		inMatrix[n] = true
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tMODE\tLIBRARY\tCONSTRAINED\tMATRIX")
	for _, s := range scenarios {
		lib := string(s.Library)
		if lib == "" {
			lib = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%t\n", s.Name, s.Mode, lib, s.Constrained, inMatrix[s.Name])
	}
	return tw.Flush()
}
