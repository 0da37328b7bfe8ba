package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/events"
	"git.home.luguber.info/inful/cachebuild/internal/eventstore"
	ferrors "git.home.luguber.info/inful/cachebuild/internal/foundation/errors"
	"git.home.luguber.info/inful/cachebuild/internal/logfields"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Number of runs to show" default:"20"`
	RunID string `name:"run" help:"Show the recorded events of one run"`
	JSON  bool   `help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig(true)
	if err != nil {
		return err
	}
	if _, err := os.Stat(cfg.History.Path); err != nil {
		return ferrors.StorageError("no run history recorded").WithContext("path", cfg.History.Path).Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.RunID != "" {
		return writeRunEvents(ctx, os.Stdout, store, h.RunID, h.JSON)
	}

	projection := eventstore.NewRunHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(ctx); err != nil {
		return err
	}
	return writeHistory(os.Stdout, projection.History(), h.JSON)
}

func writeHistory(w io.Writer, runs []eventstore.RunSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tRUN\tSCENARIO\tMODE\tSTATE\tSTEPS\tDURATION\tREVISION\tMESSAGE")
	for _, r := range runs {
		rev := r.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			r.StartedAt.Local().Format(time.DateTime), r.RunID, r.Scenario, r.Mode, r.State,
			r.StepsCompleted, logfields.MinSec(r.Duration), rev, r.Message)
	}
	return tw.Flush()
}

func writeRunEvents(ctx context.Context, w io.Writer, store eventstore.Store, runID string, asJSON bool) error {
	stored, err := store.GetByRunID(ctx, runID)
	if err != nil {
		return err
	}
	if len(stored) == 0 {
		return ferrors.ValidationError("unknown run").WithContext("run_id", runID).Build()
	}

	decoded := make([]events.Event, 0, len(stored))
	for _, ev := range stored {
		e, err := eventstore.Decode(ev)
		if err != nil {
			return err
		}
		decoded = append(decoded, e)
	}
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(decoded)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEVENT\tDETAIL")
	for _, e := range decoded {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", e.Time.Local().Format(time.TimeOnly), e.Type, eventDetail(e))
	}
	return tw.Flush()
}

func eventDetail(e events.Event) string {
	switch e.Type {
	case events.RunStarted:
		return fmt.Sprintf("mode=%s library=%s jobs=%d revision=%s", e.Mode, e.Library, e.Jobs, e.Revision)
	case events.StateChanged:
		return e.State
	case events.StepFinished:
		return fmt.Sprintf("%d %s %s in %s", e.StepIndex, e.Step, e.Outcome, logfields.MinSec(time.Duration(e.ElapsedMS)*time.Millisecond))
	case events.RunFinished:
		return fmt.Sprintf("%s %s", e.State, e.Message)
	default:
		return e.Message
	}
}
