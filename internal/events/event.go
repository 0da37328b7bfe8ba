// Package events carries run lifecycle events from the orchestrator to sinks
// such as the run-history store and a NATS subject.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names an event kind.
type Type string

const (
	RunStarted   Type = "RunStarted"
	StateChanged Type = "StateChanged"
	StepFinished Type = "StepFinished"
	RunFinished  Type = "RunFinished"
)

// Event is one lifecycle record. Fields not relevant to Type are left zero.
type Event struct {
	Type      Type      `json:"type"`
	RunID     string    `json:"run_id"`
	Time      time.Time `json:"time"`
	Scenario  string    `json:"scenario,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Library   string    `json:"library,omitempty"`
	Revision  string    `json:"revision,omitempty"`
	Jobs      int       `json:"jobs,omitempty"`
	State     string    `json:"state,omitempty"`
	StepIndex int       `json:"step_index,omitempty"`
	Step      string    `json:"step,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
	ElapsedMS int64     `json:"elapsed_ms,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Sink receives events. Publish failures never affect a run's verdict.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// NopSink discards events.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }

// MultiSink fans an event out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
