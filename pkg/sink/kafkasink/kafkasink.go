// Package kafkasink publishes records to Kafka, one topic per record kind.
package kafkasink

import (
	"context"
	"time"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/kafka"
	"github.com/ava-labs/ethscraper/pkg/sink"
)

const HeaderRecordKind = "record-kind"

// Producer is the subset of kafka.Producer used by the sink.
type Producer interface {
	Produce(ctx context.Context, msg kafka.Msg) error
	Close(timeout time.Duration)
}

var _ Producer = (*kafka.Producer)(nil)

type Sink struct {
	producer     Producer
	topic        func(kind string) string
	flushTimeout time.Duration
}

var _ sink.Sink = (*Sink)(nil)

// New publishes to <prefix>.<kind> topics as named by cfg.Topic.
func New(p Producer, cfg kafka.ProducerConfig) *Sink {
	flush := cfg.FlushTimeout
	if flush <= 0 {
		flush = kafka.DefaultFlushTimeout
	}
	return &Sink{producer: p, topic: cfg.Topic, flushTimeout: flush}
}

// Emit blocks until the broker acknowledged the record. The record key is
// the message key, so re-scraped records land on the same partition.
func (s *Sink) Emit(ctx context.Context, r types.Record) error {
	value, err := types.MarshalRecord(r)
	if err != nil {
		return err
	}
	kind := string(r.Kind())
	return s.producer.Produce(ctx, kafka.Msg{
		Topic:   s.topic(kind),
		Key:     []byte(r.Key()),
		Value:   value,
		Headers: map[string]string{HeaderRecordKind: kind},
	})
}

// Close flushes outstanding messages and closes the producer.
func (s *Sink) Close(context.Context) error {
	s.producer.Close(s.flushTimeout)
	return nil
}
