package outbox

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestWriterForTopicIsCachedPerTopic(t *testing.T) {
	producer := NewKafkaProducer([]string{"kafka:9092"})
	t.Cleanup(func() { _ = producer.Close() })

	first := producer.writerForTopic("asset_state_changed")
	second := producer.writerForTopic("asset_state_changed")
	require.Same(t, first, second)

	other := producer.writerForTopic("asset_activity")
	require.NotSame(t, first, other)
}

func TestWriterForTopicConfiguration(t *testing.T) {
	producer := NewKafkaProducer([]string{"kafka:9092"})
	t.Cleanup(func() { _ = producer.Close() })

	writer := producer.writerForTopic("asset_state_changed")
	require.Equal(t, "asset_state_changed", writer.Topic)
	require.Equal(t, kafka.RequireAll, writer.RequiredAcks)
	// Keyed hashing keeps each asset's events on one partition.
	require.IsType(t, &kafka.Hash{}, writer.Balancer)
	require.False(t, writer.Async)
}
