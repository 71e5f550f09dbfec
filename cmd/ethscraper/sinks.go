package main

import (
	"context"
	"errors"
	"fmt"

	confluentKafka "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/clickhouse"
	"github.com/ava-labs/ethscraper/pkg/kafka"
	"github.com/ava-labs/ethscraper/pkg/metrics"
	"github.com/ava-labs/ethscraper/pkg/sink"
	"github.com/ava-labs/ethscraper/pkg/sink/clickhousesink"
	"github.com/ava-labs/ethscraper/pkg/sink/jsonl"
	"github.com/ava-labs/ethscraper/pkg/sink/kafkasink"
	"github.com/ava-labs/ethscraper/pkg/sink/postgressink"
)

// Sink names used in logs and the sink metrics.
const (
	sinkJSONL      = "jsonl"
	sinkKafka      = "kafka"
	sinkClickHouse = "clickhouse"
	sinkPostgres   = "postgres"
)

// outputs is the combined sink of a run plus the Kafka producer, whose
// asynchronous fatal errors the run has to watch.
type outputs struct {
	sink     sink.Sink
	producer *kafka.Producer
}

// producerErrors returns the fatal error channel of the producer, or nil
// (blocking forever) without Kafka.
func (o *outputs) producerErrors() <-chan error {
	if o.producer == nil {
		return nil
	}
	return o.producer.Errors()
}

// recordKinds lists the kinds a run with cfg can emit.
func recordKinds(cfg *Config) []string {
	kinds := make([]string, 0, 4)
	if cfg.ExportBlocks {
		kinds = append(kinds, string(types.KindBlock))
	}
	if cfg.Scraper.ExportTransactions {
		kinds = append(kinds, string(types.KindTransaction))
	}
	if cfg.Scraper.ExportERC20Transfers {
		kinds = append(kinds, string(types.KindERC20Transfer))
	}
	return append(kinds, string(types.KindRPCError))
}

// openOutputs opens every configured sink. Sinks opened before a failure are closed.
func openOutputs(
	ctx context.Context,
	cfg *Config,
	sugar *zap.SugaredLogger,
	m *metrics.Metrics,
	ch clickhouse.Client,
) (*outputs, error) {
	var (
		out   outputs
		sinks []sink.Sink
	)
	fail := func(err error) (*outputs, error) {
		for _, s := range sinks {
			if cerr := s.Close(ctx); cerr != nil {
				sugar.Warnw("failed to close sink", "error", cerr)
			}
		}
		return nil, err
	}

	if cfg.Output != "" {
		s, err := jsonl.Open(cfg.Output)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, sink.Instrumented(sinkJSONL, s, m))
		sugar.Infow("writing records as JSON lines", "output", cfg.Output)
	}

	if cfg.KafkaBrokers != "" {
		producerCfg := cfg.KafkaProducerConfig()
		if err := ensureTopics(ctx, cfg, producerCfg, sugar); err != nil {
			return fail(err)
		}
		producer, err := kafka.NewProducer(ctx, producerCfg.ConfigMap(), sugar)
		if err != nil {
			return fail(err)
		}
		out.producer = producer
		sinks = append(sinks, sink.Instrumented(sinkKafka, kafkasink.New(producer, producerCfg), m))
		sugar.Infow("publishing records to kafka",
			"brokers", cfg.KafkaBrokers,
			"topicPrefix", cfg.KafkaTopicPrefix,
		)
	}

	if cfg.ClickHouseEnabled {
		if ch == nil {
			return fail(errors.New("clickhouse sink enabled without a ClickHouse client"))
		}
		s, err := clickhousesink.Open(ctx, ch, cfg.ClickHouse, cfg.EVMChainID)
		if err != nil {
			return fail(fmt.Errorf("failed to open ClickHouse sink: %w", err))
		}
		sinks = append(sinks, sink.Instrumented(sinkClickHouse, s, m))
		sugar.Infow("writing records to clickhouse", "database", cfg.ClickHouse.Database)
	}

	if cfg.PostgresDSN != "" {
		s, err := postgressink.Open(ctx, cfg.PostgresDSN, cfg.PostgresTable)
		if err != nil {
			return fail(fmt.Errorf("failed to open PostgreSQL sink: %w", err))
		}
		sinks = append(sinks, sink.Instrumented(sinkPostgres, s, m))
		sugar.Infow("writing records to postgres", "table", cfg.PostgresTable)
	}

	combined, err := sink.Multi(sinks...)
	if err != nil {
		return fail(err)
	}
	out.sink = sink.Filter(combined, cfg.DroppedKinds()...)
	return &out, nil
}

func ensureTopics(ctx context.Context, cfg *Config, producerCfg kafka.ProducerConfig, sugar *zap.SugaredLogger) error {
	admin, err := confluentKafka.NewAdminClient(&confluentKafka.ConfigMap{
		"bootstrap.servers": producerCfg.BootstrapServers,
	})
	if err != nil {
		return fmt.Errorf("failed to create kafka admin client: %w", err)
	}
	defer admin.Close()

	if err := kafka.EnsureRecordTopics(ctx, admin, producerCfg, recordKinds(cfg),
		cfg.KafkaTopicNumPartitions, cfg.KafkaTopicReplicationFactor, sugar); err != nil {
		return fmt.Errorf("failed to ensure kafka topics exist: %w", err)
	}
	return nil
}
