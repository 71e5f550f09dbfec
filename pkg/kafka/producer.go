package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Msg is a message to publish. Headers are attached in map iteration order.
type Msg struct {
	Topic   string
	Value   []byte
	Key     []byte
	Headers map[string]string
}

var ErrProducerClosed = errors.New("kafka producer closed")

// Producer is a synchronous Kafka producer.
//
// Produce blocks until a delivery confirmation is received from Kafka.
// Background goroutines are used to process Kafka producer events and logs.
//
// Close MUST be called at least once to stop background goroutines and flush
// all in-flight messages.
type Producer struct {
	producer   *kafka.Producer
	log        *zap.SugaredLogger
	errCh      chan error
	eventsDone chan struct{}
	logsDone   chan struct{}
	closedCh   chan struct{}
	once       sync.Once
}

const queueFullErrorRetryDelay = 250 * time.Millisecond

// NewProducer creates a Kafka producer.
//
// The provided context controls the lifetime of background goroutines.
// Callers must call Close to flush messages and release resources.
func NewProducer(ctx context.Context, conf *kafka.ConfigMap, log *zap.SugaredLogger) (*Producer, error) {
	p, err := kafka.NewProducer(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	logsChEnabled, err := conf.Get("go.logs.channel.enable", false)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("failed to get go.logs.channel.enable: %w", err)
	}

	kp := &Producer{
		producer:   p,
		log:        log,
		eventsDone: make(chan struct{}),
		logsDone:   make(chan struct{}),
		errCh:      make(chan error, 1),
		closedCh:   make(chan struct{}),
	}

	if enabled, _ := logsChEnabled.(bool); enabled {
		go kp.printKafkaLogs(ctx)
	} else {
		close(kp.logsDone)
	}

	go kp.monitorProducerEvents(ctx)

	return kp, nil
}

// Produce synchronously produces a message to Kafka.
//
// If the producer queue is full the message is retried until it is accepted
// or ctx is done. If ctx is canceled before delivery confirmation, Produce
// returns ctx.Err() and the message MAY still be delivered.
func (q *Producer) Produce(ctx context.Context, msg Msg) error {
	select {
	case <-q.closedCh:
		return ErrProducerClosed
	default:
	}

	deliveryCh := make(chan kafka.Event, 1)

	kMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &msg.Topic,
			Partition: kafka.PartitionAny,
		},
		Value:   msg.Value,
		Key:     msg.Key,
		Headers: toKafkaHeaders(msg.Headers),
	}

	if err := q.produceWithRetry(ctx, kMsg, deliveryCh); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case e := <-deliveryCh:
		return handleDeliveryEvent(q.log, kMsg, e)
	}
}

func toKafkaHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	headers := make([]kafka.Header, 0, len(h))
	for k, v := range h {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return headers
}

// Close stops background goroutines and flushes pending messages for at most
// timeout. Reaching the timeout may lose messages. Calling Close multiple
// times does nothing.
func (q *Producer) Close(timeout time.Duration) {
	q.once.Do(func() {
		q.log.Info("closing kafka producer")
		defer close(q.errCh)

		close(q.closedCh)
		<-q.eventsDone
		<-q.logsDone

		if pending := q.producer.Flush(int(timeout.Milliseconds())); pending > 0 {
			q.log.Warnw("flush incomplete, messages will be lost", "pending", pending)
		}

		q.producer.Close()
		q.log.Info("kafka producer closed")
	})
}

// Errors returns a channel that receives at most one fatal error.
// The channel is closed when the producer shuts down.
// After receiving an error, the producer is no longer usable.
func (q *Producer) Errors() <-chan error {
	return q.errCh
}

func (q *Producer) printKafkaLogs(ctx context.Context) {
	defer close(q.logsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closedCh:
			return
		case log, ok := <-q.producer.Logs():
			if !ok {
				return
			}
			q.log.Debugw("librdkafka", "level", log.Level, "tag", log.Tag, "message", log.Message)
		}
	}
}

// produceWithRetry enqueues msg, retrying while the local queue is full.
func (q *Producer) produceWithRetry(
	ctx context.Context,
	msg *kafka.Message,
	deliveryCh chan kafka.Event,
) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := q.producer.Produce(msg, deliveryCh)
		if err == nil {
			return nil
		}

		var kafkaErr kafka.Error
		if !errors.As(err, &kafkaErr) {
			return fmt.Errorf("failed to produce: %w", err)
		}

		switch kafkaErr.Code() {
		case kafka.ErrQueueFull:
			q.log.Warnw("producer queue full, retrying", "delay", queueFullErrorRetryDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(queueFullErrorRetryDelay):
			}
		case kafka.ErrBrokerNotAvailable:
			return fmt.Errorf("broker not available: %w", err)
		case kafka.ErrMsgSizeTooLarge, kafka.ErrInvalidMsgSize:
			return fmt.Errorf("invalid message size: %w", err)
		case kafka.ErrUnknownTopicOrPart:
			return fmt.Errorf("unknown topic or partition: %w", err)
		case kafka.ErrAuthentication:
			return fmt.Errorf("authentication error: %w", err)
		default:
			return fmt.Errorf("failed to produce: %w", err)
		}
	}
}

func (q *Producer) monitorProducerEvents(ctx context.Context) {
	defer close(q.eventsDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closedCh:
			return
		case ev, ok := <-q.producer.Events():
			if !ok {
				q.reportFatal(errors.New("kafka producer event channel closed"))
				return
			}

			switch e := ev.(type) {
			case *kafka.Message:
				// Delivery reports go to the per-message channel.
				q.log.Warnw("unexpected delivery report on events channel",
					"topic", e.TopicPartition.Topic,
					"error", e.TopicPartition.Error,
				)
			case kafka.Stats:
				q.log.Debugw("kafka stats", "stats", e.String())
			case kafka.Error:
				if e.IsFatal() || e.Code() == kafka.ErrAllBrokersDown {
					q.reportFatal(fmt.Errorf("fatal kafka error %#x: %w", e.Code(), e))
					return
				}
				q.log.Warnw("ignoring kafka error", "code", e.Code(), "error", e)
			default:
				q.log.Warnw("unknown kafka event", "event", e)
			}
		}
	}
}

func (q *Producer) reportFatal(err error) {
	select {
	case q.errCh <- err:
	default:
		q.log.Warnw("error channel is full", "error", err)
	}
}

func handleDeliveryEvent(log *zap.SugaredLogger, msg *kafka.Message, ev kafka.Event) error {
	e, ok := ev.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected delivery event: %T", ev)
	}

	if err := e.TopicPartition.Error; err != nil {
		return fmt.Errorf("delivery to %s failed: %w", *msg.TopicPartition.Topic, err)
	}

	log.Debugw("delivered",
		"topic", *msg.TopicPartition.Topic,
		"partition", e.TopicPartition.Partition,
		"offset", e.TopicPartition.Offset,
	)
	return nil
}
