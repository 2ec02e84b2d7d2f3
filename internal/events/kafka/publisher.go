// Package kafka publishes ledger events to a kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"covenant/internal/events"
)

const flushTimeout = 10 * time.Second

var publishFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "covenant_event_publish_failures_total",
	Help: "Events that could not be delivered to kafka",
})

// Publisher delivers events to one topic, keyed by event kind so consumers
// keep per-kind ordering. Delivery is asynchronous and fail-open: the
// originating operation never waits on or fails with kafka.
type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// New connects to the brokers and ensures the topic exists.
func New(brokers []string, topic string, logger *slog.Logger) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	// Best effort: brokers with auto-create disabled need the topic ahead
	// of time anyway.
	admin := kadm.NewClient(client)
	if _, err := admin.CreateTopic(context.Background(), 1, 1, nil, topic); err != nil {
		logger.Warn("kafka topic bootstrap failed", "topic", topic, "error", err)
	}

	return &Publisher{client: client, topic: topic, logger: logger}, nil
}

func (p *Publisher) Emit(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.Kind),
		Value: payload,
	}
	p.client.Produce(ctx, record, func(_ *kgo.Record, err error) {
		if err != nil {
			publishFailures.Inc()
			p.logger.Error("event publish failed",
				"kind", event.Kind,
				"event_id", event.ID,
				"error", err,
			)
		}
	})
	return nil
}

// Close flushes outstanding records and releases the client.
func (p *Publisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.client.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush incomplete", "error", err)
	}
	p.client.Close()
	return nil
}
