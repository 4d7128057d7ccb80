package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject anomaly events are published on.
const DefaultSubject = "fleetwatch.anomalies"

// NATSPublisher forwards anomaly events to a NATS subject so downstream
// consumers (dashboards, pagers) can subscribe without touching the
// monitor database.
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
}

// NewNATSPublisher connects to the given NATS URL. An empty subject uses
// DefaultSubject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	nc, err := nats.Connect(url,
		nats.Name("fleetwatch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, subject: subject}, nil
}

// Publish sends one event as JSON.
func (p *NATSPublisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Run drains events from ch until it closes or ctx is cancelled. Publish
// failures are logged and do not stop the drain.
func (p *NATSPublisher) Run(ctx context.Context, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := p.Publish(ev); err != nil {
				log.Printf("notify: %v", err)
			}
		}
	}
}

// Close flushes and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.nc.Drain()
}
