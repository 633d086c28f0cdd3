// Package kafka publishes audit events to a Kafka topic for long-retention
// compliance storage. Publishing is best-effort: a broker outage must never
// block a DBS transition, so failures are logged and the local store remains
// the source of truth.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "minderdesk/pkg/platform/audit"
)

// Publisher wraps a Kafka producer and the local audit store. Append
// persists locally first, then produces asynchronously.
type Publisher struct {
	client *kgo.Client
	store  audit.Store
	topic  string
	logger *slog.Logger
}

// New creates a Kafka-backed publisher. Returns an error if the client
// cannot be constructed; callers fall back to the plain store.
func New(brokers []string, topic string, store audit.Store, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Publisher{client: client, store: store, topic: topic, logger: logger}, nil
}

func (p *Publisher) Append(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Subject),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			p.logger.Error("failed to publish audit event",
				"action", event.Action,
				"subject", event.Subject,
				"error", err,
			)
		}
	})
	return nil
}

func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close flushes pending records and releases the producer.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return fmt.Errorf("flush kafka producer: %w", err)
	}
	p.client.Close()
	return nil
}
