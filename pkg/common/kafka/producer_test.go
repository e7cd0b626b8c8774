package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediscanner/api/pkg/common/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEventEncodesEnvelope(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w, topic: "prescription-events"}

	err := p.PublishEvent(context.Background(), "prescription.extracted", "mediscanner-api", "user-1", map[string]interface{}{"serial_no": 0})
	require.NoError(t, err)
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, "user-1", string(msg.Key))
	assert.Equal(t, "event-type", msg.Headers[0].Key)
	assert.Equal(t, "prescription.extracted", string(msg.Headers[0].Value))

	var event models.Event
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, "prescription.extracted", event.Type)
	assert.Equal(t, "mediscanner-api", event.Source)
	assert.NotEmpty(t, event.ID)
	assert.EqualValues(t, 0, event.Data["serial_no"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishEventDefaultsKeyToEventID(t *testing.T) {
	event := NewEvent("t", "s", nil)
	msg, err := EncodeEvent(event, "")
	require.NoError(t, err)
	assert.Equal(t, event.ID, string(msg.Key))
}

func TestPublishEventReturnsWriterError(t *testing.T) {
	p := &Producer{writer: &recordingWriter{err: errors.New("no brokers")}, topic: "t"}
	err := p.PublishEvent(context.Background(), "t", "s", "", nil)
	assert.EqualError(t, err, "no brokers")
}

func TestNewProducerPartitionsByKey(t *testing.T) {
	p := NewProducer([]string{"localhost:9092"}, "prescription-events")
	writer, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	require.IsType(t, &kafka.Hash{}, writer.Balancer)

	partitions := []int{0, 1, 2, 3, 4, 5, 6, 7}
	first, err := EncodeEvent(NewEvent("prescription.extracted", "test", nil), "user-42")
	require.NoError(t, err)
	second, err := EncodeEvent(NewEvent("prescription.extracted", "test", nil), "user-42")
	require.NoError(t, err)

	assert.Equal(t,
		writer.Balancer.Balance(first, partitions...),
		writer.Balancer.Balance(second, partitions...))
}
