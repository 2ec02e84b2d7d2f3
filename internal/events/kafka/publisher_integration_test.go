//go:build integration

package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredpanda "github.com/testcontainers/testcontainers-go/modules/redpanda"
	"github.com/twmb/franz-go/pkg/kgo"

	"covenant/internal/events"
	"covenant/internal/platform/logger"
)

func TestPublisherDeliversEvents(t *testing.T) {
	ctx := context.Background()

	container, err := tcredpanda.Run(ctx, "redpandadata/redpanda:v24.1.7")
	require.NoError(t, err, "start redpanda container")
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	broker, err := container.KafkaSeedBroker(ctx)
	require.NoError(t, err)

	const topic = "covenant.ledger.events.test"
	publisher, err := New([]string{broker}, topic, logger.New())
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	emitted := events.New(events.KindTransfer, at, map[string]string{
		"from":   "0x0000000000000000000000000000000000000001",
		"to":     "0x0000000000000000000000000000000000000002",
		"amount": "125",
	})
	require.NoError(t, publisher.Emit(ctx, emitted))
	require.NoError(t, publisher.Close())

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, string(events.KindTransfer), string(records[0].Key))

	var got events.Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, emitted.ID, got.ID)
	assert.Equal(t, events.KindTransfer, got.Kind)
	assert.True(t, got.At.Equal(at))
	assert.Equal(t, "125", got.Attrs["amount"])
}
