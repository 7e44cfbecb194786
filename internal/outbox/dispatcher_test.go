package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubProducer struct {
	written map[string][]kafka.Message
}

func (p *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	if p.written == nil {
		p.written = make(map[string][]kafka.Message)
	}
	p.written[topic] = append(p.written[topic], msgs...)
	return nil
}

type stubRegistry struct {
	schemaID int
	calls    int
}

func (r *stubRegistry) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	r.calls++
	return r.schemaID, nil
}

func TestDeliverAppliesWireFormatAndHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{schemaID: 42}
	d := &Dispatcher{producer: producer, registry: registry}

	payload := json.RawMessage(`{"asset_id":"a-1"}`)
	messages := []Message{
		{EventID: 1, EventType: "asset.state_changed", Topic: "asset_state_changed", SchemaSubject: "asset_state_changed-value", PartitionKey: "a-1", Payload: payload},
		{EventID: 2, EventType: "asset.state_changed", Topic: "asset_state_changed", SchemaSubject: "asset_state_changed-value", PartitionKey: "a-2", Payload: payload},
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	require.Len(t, producer.written["asset_state_changed"], 2)
	// Schema ids are cached per subject, so the registry is hit once.
	require.Equal(t, 1, registry.calls)

	record := producer.written["asset_state_changed"][0]
	require.Equal(t, []byte("a-1"), record.Key)
	require.Equal(t, byte(0), record.Value[0])
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(record.Value[1:5]))
	require.JSONEq(t, string(payload), string(record.Value[5:]))

	headers := map[string]string{}
	for _, h := range record.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "asset.state_changed", headers["event_type"])
	require.Equal(t, "asset_state_changed-value", headers["schema_subject"])
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	d := &Dispatcher{producer: &stubProducer{}, registry: &stubRegistry{}}

	err := d.deliver(context.Background(), []Message{
		{EventID: 1, EventType: "asset.unknown", Topic: "t", SchemaSubject: "s", Payload: json.RawMessage(`{}`)},
	})
	require.Error(t, err)
}

func TestDeliverBatchesPerTopic(t *testing.T) {
	producer := &stubProducer{}
	d := &Dispatcher{producer: producer, registry: &stubRegistry{schemaID: 1}}

	payload := json.RawMessage(`{}`)
	messages := []Message{
		{EventID: 1, EventType: "asset.state_changed", Topic: "asset_state_changed", SchemaSubject: "asset_state_changed-value", Payload: payload},
		{EventID: 2, EventType: "asset.activity_recorded", Topic: "asset_activity", SchemaSubject: "asset_activity-value", Payload: payload},
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	require.Len(t, producer.written["asset_state_changed"], 1)
	require.Len(t, producer.written["asset_activity"], 1)
}
