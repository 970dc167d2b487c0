package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/parkwatch/internal/core/domain"
)

// streams holds the JetStream streams the service relies on.
var streams = []nats.StreamConfig{
	{
		Name:              "PARKING_OCCUPANCY",
		Subjects:          []string{"parking.occupancy.>"},
		Retention:         nats.LimitsPolicy,
		MaxAge:            1 * time.Hour,
		MaxMsgsPerSubject: 100,
		Storage:           nats.MemoryStorage,
	},
	{
		Name:      "PARKING_AVAILABILITY",
		Subjects:  []string{"parking.availability.>"},
		Retention: nats.WorkQueuePolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	},
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

func ensureStreams(js nats.JetStreamContext) error {
	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishSnapshot publishes the whole snapshot on SubjectSnapshot.
func (p *Publisher) PublishSnapshot(ctx context.Context, snap *domain.OccupancySnapshot) error {
	data, err := json.Marshal(NewSnapshotMessage(snap))
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectSnapshot, data, nats.Context(ctx))
	return err
}

// PublishAvailability publishes a became-available event. The event id is
// used as the JetStream message id so redeliveries are deduplicated.
func (p *Publisher) PublishAvailability(ctx context.Context, event *domain.AvailabilityEvent) error {
	if err := checkToken("lot", event.LotID); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(AvailabilitySubject(event.LotID), data, nats.MsgId(event.ID), nats.Context(ctx))
	return err
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
