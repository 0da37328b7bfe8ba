package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"git.home.luguber.info/inful/cachebuild/internal/build"
	"git.home.luguber.info/inful/cachebuild/internal/logfields"
	"git.home.luguber.info/inful/cachebuild/internal/pipeline"
)

func printRunResult(w io.Writer, res *build.RunResult) {
	if res == nil {
		return
	}
	fmt.Fprintf(w, "Run %s", res.RunID)
	if res.Scenario != "" {
		fmt.Fprintf(w, " (%s)", res.Scenario)
	}
	fmt.Fprintf(w, ": %s\n", res.State)

	lib := string(res.Library)
	if lib == "" {
		lib = "-"
	}
	fmt.Fprintf(w, "  mode %s, library %s, jobs %d, build timeout %s\n", res.Mode, lib, res.Jobs, res.BuildTimeout)
	if res.Revision != "" {
		fmt.Fprintf(w, "  revision %s\n", res.Revision)
	}
	if res.MountDir != "" {
		fmt.Fprintf(w, "  pool %s, container %s, mount %s\n", res.Pool, res.Container, res.MountDir)
	}

	if len(res.Steps) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tSTEP\tOUTCOME\tELAPSED\tTIMEOUT")
		for _, s := range res.Steps {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%ds\n",
				s.Index, s.Name, s.Outcome.Kind, logfields.MinSec(s.Outcome.Elapsed), int(s.Timeout.Seconds()))
		}
		_ = tw.Flush()
	}

	for _, c := range res.Diagnostics {
		fmt.Fprintf(w, "  diagnostics %s (%s):\n", c.Kind, c.Command)
		if c.Err != nil {
			fmt.Fprintf(w, "    error: %v\n", c.Err)
			continue
		}
		for _, h := range c.Result.Hosts {
			fmt.Fprintf(w, "    [%s]\n", h.Host)
			for _, line := range strings.Split(strings.TrimRight(h.Output, "\n"), "\n") {
				fmt.Fprintf(w, "      %s\n", line)
			}
		}
	}

	if res.Message != "" {
		fmt.Fprintf(w, "  %s\n", res.Message)
	}
	fmt.Fprintf(w, "  finished in %s\n", logfields.MinSec(res.Duration))
}

func printMatrixSummary(w io.Writer, m *build.MatrixResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tMODE\tLIBRARY\tSTATE\tSTEPS\tDURATION\tMESSAGE")
	for _, r := range m.Runs {
		lib := string(r.Library)
		if lib == "" {
			lib = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			r.Scenario, r.Mode, lib, r.State, r.StepsCompleted(), pipeline.StepCount, logfields.MinSec(r.Duration), r.Message)
	}
	_ = tw.Flush()
	if m.Skipped > 0 {
		fmt.Fprintf(w, "%d scenario(s) skipped after cancellation\n", m.Skipped)
	}
}
