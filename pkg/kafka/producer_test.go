package kafka

import (
	"context"
	"testing"
	"time"

	cKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestProducer(t *testing.T, ctx context.Context) *Producer {
	t.Helper()
	cfg := &cKafka.ConfigMap{
		"bootstrap.servers": "localhost:9092",
	}
	producer, err := NewProducer(ctx, cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return producer
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	cfg := &cKafka.ConfigMap{
		"bootstrap.servers": "localhost:9092",
		"acks":              "sometimes",
	}
	_, err := NewProducer(t.Context(), cfg, zaptest.NewLogger(t).Sugar())
	require.Error(t, err)
}

func TestProducer_Close_Idempotent(t *testing.T) {
	producer := newTestProducer(t, t.Context())

	start := time.Now()
	producer.Close(5 * time.Second)
	producer.Close(5 * time.Second)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProducer_Errors_ChannelClosed(t *testing.T) {
	producer := newTestProducer(t, t.Context())

	errCh := producer.Errors()
	require.NotNil(t, errCh)
	assert.Positive(t, cap(errCh))

	producer.Close(time.Second)

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed after Close()")
}

func TestProducer_ProduceAfterClose(t *testing.T) {
	producer := newTestProducer(t, t.Context())
	producer.Close(time.Second)

	err := producer.Produce(t.Context(), Msg{Topic: "ethscraper.block", Value: []byte("{}")})
	require.ErrorIs(t, err, ErrProducerClosed)
}

func TestProducer_Produce_ContextCanceled(t *testing.T) {
	producer := newTestProducer(t, t.Context())
	defer producer.Close(time.Second)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := producer.Produce(ctx, Msg{Topic: "ethscraper.block", Value: []byte("{}")})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProducer_ContextCancellation_StopsGoroutines(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	producer := newTestProducer(t, ctx)

	cancel()

	select {
	case <-producer.eventsDone:
	case <-time.After(5 * time.Second):
		t.Fatal("event monitor did not stop")
	}
	producer.Close(time.Second)
}

func TestToKafkaHeaders(t *testing.T) {
	assert.Nil(t, toKafkaHeaders(nil))

	headers := toKafkaHeaders(map[string]string{"record-kind": "block"})
	require.Len(t, headers, 1)
	assert.Equal(t, "record-kind", headers[0].Key)
	assert.Equal(t, []byte("block"), headers[0].Value)
}

func TestHandleDeliveryEvent(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	topic := "ethscraper.erc20_transfer"
	msg := &cKafka.Message{TopicPartition: cKafka.TopicPartition{Topic: &topic}}

	ok := &cKafka.Message{TopicPartition: cKafka.TopicPartition{Topic: &topic, Partition: 2, Offset: 42}}
	require.NoError(t, handleDeliveryEvent(log, msg, ok))

	failed := &cKafka.Message{TopicPartition: cKafka.TopicPartition{
		Topic: &topic,
		Error: cKafka.NewError(cKafka.ErrMsgTimedOut, "message timed out", false),
	}}
	require.ErrorContains(t, handleDeliveryEvent(log, msg, failed), "delivery to ethscraper.erc20_transfer failed")

	require.Error(t, handleDeliveryEvent(log, msg, cKafka.Stats{}))
}
