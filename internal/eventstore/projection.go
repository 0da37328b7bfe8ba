package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"git.home.luguber.info/inful/cachebuild/internal/events"
)

const runStatusRunning = "running"

// RunSummary is a read model summarizing a finished or in-progress run.
type RunSummary struct {
	RunID          string        `json:"run_id"`
	Scenario       string        `json:"scenario,omitempty"`
	Mode           string        `json:"mode"`
	Library        string        `json:"library,omitempty"`
	Revision       string        `json:"revision,omitempty"`
	Jobs           int           `json:"jobs"`
	State          string        `json:"state"`
	StartedAt      time.Time     `json:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	StepsCompleted int           `json:"steps_completed"`
	FailedIndex    int           `json:"failed_index,omitempty"`
	FailedStep     string        `json:"failed_step,omitempty"`
	Outcome        string        `json:"outcome,omitempty"`
	Message        string        `json:"message,omitempty"`
}

// RunHistoryProjection maintains an in-memory view of run history,
// reconstructed from events stored in the event store.
type RunHistoryProjection struct {
	mu      sync.RWMutex
	store   Store
	runs    map[string]*RunSummary
	history []*RunSummary // newest first
	maxSize int
}

// NewRunHistoryProjection creates a new projection backed by the given store.
func NewRunHistoryProjection(store Store, maxHistorySize int) *RunHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &RunHistoryProjection{
		store:   store,
		runs:    make(map[string]*RunSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *RunHistoryProjection) Rebuild(ctx context.Context) error {
	stored, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs = make(map[string]*RunSummary)
	p.history = nil
	for _, ev := range stored {
		decoded, err := Decode(ev)
		if err != nil {
			continue
		}
		if decoded.RunID == "" {
			decoded.RunID = ev.RunID()
		}
		if decoded.Time.IsZero() {
			decoded.Time = ev.Timestamp()
		}
		p.applyLocked(decoded)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	return nil
}

// Publish implements events.Sink so the projection can follow a live run.
func (p *RunHistoryProjection) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyLocked(e)
	return nil
}

func (p *RunHistoryProjection) applyLocked(e events.Event) {
	if e.RunID == "" {
		return
	}
	summary, ok := p.runs[e.RunID]
	if !ok {
		summary = &RunSummary{RunID: e.RunID, State: runStatusRunning, StartedAt: e.Time}
		p.runs[e.RunID] = summary
	}

	switch e.Type {
	case events.RunStarted:
		summary.StartedAt = e.Time
		summary.Scenario = e.Scenario
		summary.Mode = e.Mode
		summary.Library = e.Library
		summary.Revision = e.Revision
		summary.Jobs = e.Jobs
		summary.State = runStatusRunning

	case events.StateChanged:
		summary.State = e.State

	case events.StepFinished:
		if e.Outcome == "success" {
			summary.StepsCompleted++
		} else {
			summary.FailedIndex = e.StepIndex
			summary.FailedStep = e.Step
			summary.Outcome = e.Outcome
		}

	case events.RunFinished:
		done := e.Time
		summary.CompletedAt = &done
		summary.Duration = done.Sub(summary.StartedAt)
		summary.State = e.State
		summary.Message = e.Message
		p.addToHistoryLocked(summary)
	}
}

func (p *RunHistoryProjection) addToHistoryLocked(summary *RunSummary) {
	for _, h := range p.history {
		if h.RunID == summary.RunID {
			return
		}
	}
	p.history = append([]*RunSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
}

// History returns finished runs, newest first.
func (p *RunHistoryProjection) History() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]RunSummary, len(p.history))
	for i, h := range p.history {
		out[i] = *h
	}
	return out
}

// Run returns the summary for a specific run.
func (p *RunHistoryProjection) Run(runID string) (RunSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.runs[runID]
	if !ok {
		return RunSummary{}, false
	}
	return *s, true
}

// Active returns runs that have not finished.
func (p *RunHistoryProjection) Active() []RunSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []RunSummary
	for _, s := range p.runs {
		if s.CompletedAt == nil {
			out = append(out, *s)
		}
	}
	return out
}
