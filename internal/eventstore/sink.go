package eventstore

import (
	"context"
	"encoding/json"
	"fmt"

	"git.home.luguber.info/inful/cachebuild/internal/events"
)

// Sink appends run events to a Store.
type Sink struct {
	store Store
}

// NewSink returns an events.Sink writing to store.
func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

// Publish implements events.Sink.
func (s *Sink) Publish(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", e.Type, err)
	}
	var meta map[string]string
	if e.Mode != "" {
		meta = map[string]string{"mode": e.Mode}
	}
	return s.store.Append(ctx, e.RunID, string(e.Type), e.Time, payload, meta)
}

// Decode returns the run event carried in a stored event's payload.
func Decode(ev Event) (events.Event, error) {
	var out events.Event
	if err := json.Unmarshal(ev.Payload(), &out); err != nil {
		return events.Event{}, fmt.Errorf("unmarshal %s payload: %w", ev.Type(), err)
	}
	return out, nil
}
