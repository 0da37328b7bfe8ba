package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSConfig configures a NATSPublisher.
type NATSConfig struct {
	URL string
	// Subject is the prefix; events go to <Subject>.<run id>.<type>.
	Subject string
	// JetStream publishes with acknowledgement into a stream bound to Subject.>.
	JetStream bool
	Timeout   time.Duration
}

// NATSPublisher publishes events as JSON on a NATS subject.
type NATSPublisher struct {
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
	timeout time.Duration
}

// NewNATSPublisher connects to cfg.URL.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("nats url is required")
	}
	if cfg.Subject == "" {
		cfg.Subject = "cachebuild.events"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("cachebuild"), nats.Timeout(cfg.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	p := &NATSPublisher{conn: conn, subject: cfg.Subject, timeout: cfg.Timeout}

	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to create JetStream context: %w", err)
		}
		p.js = js
	}

	slog.Info("NATS event publisher connected", "url", cfg.URL, "subject", cfg.Subject, "jetstream", cfg.JetStream)
	return p, nil
}

// SubjectFor returns the subject an event is published on.
func SubjectFor(prefix string, e Event) string {
	run := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(e.RunID)
	if run == "" {
		run = "unknown"
	}
	return prefix + "." + run + "." + string(e.Type)
}

// Publish implements Sink.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := SubjectFor(p.subject, e)

	if p.js != nil {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return fmt.Errorf("failed to publish event: %w", err)
		}
		return nil
	}

	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}
