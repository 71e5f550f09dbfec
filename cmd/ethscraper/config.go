package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/ethscraper/internal/scraper"
	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/checkpointer"
	"github.com/ava-labs/ethscraper/pkg/clickhouse"
	"github.com/ava-labs/ethscraper/pkg/kafka"
	"github.com/ava-labs/ethscraper/pkg/metrics"
)

var errNoOutput = errors.New("no output configured: set --output, --kafka-brokers, --clickhouse or --postgres-dsn")

// Config holds all configuration for the run command
type Config struct {
	Verbose bool

	// Node settings
	RPCURL     string
	RPCTimeout time.Duration
	EVMChainID uint64 // 0 means ask the node

	// Range; unset bounds are resolved at startup
	Start    uint64
	StartSet bool
	End      uint64
	EndSet   bool

	// Scraper settings
	ExportBlocks bool
	Scraper      scraper.Options

	// Sinks
	Output                      string
	KafkaBrokers                string
	KafkaTopicPrefix            string
	KafkaClientID               string
	KafkaEnableLogs             bool
	KafkaTopicNumPartitions     int
	KafkaTopicReplicationFactor int
	ClickHouseEnabled           bool
	PostgresDSN                 string
	PostgresTable               string

	// ClickHouse connection, shared by the sink and checkpoints
	ClickHouse clickhouse.Config

	// Checkpoint settings
	Checkpoint          bool
	CheckpointTableName string
	CheckpointInterval  time.Duration

	// Gap watchdog
	GapWatchdogInterval time.Duration
	GapWatchdogMaxGap   uint64

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// NeedsClickHouse reports whether a ClickHouse connection must be opened.
func (c *Config) NeedsClickHouse() bool {
	return c.ClickHouseEnabled || c.Checkpoint
}

// DroppedKinds lists the record kinds filtered out before reaching any sink.
// Transactions and transfers are not emitted at all when disabled, so only
// blocks need filtering.
func (c *Config) DroppedKinds() []types.RecordKind {
	if c.ExportBlocks {
		return nil
	}
	return []types.RecordKind{types.KindBlock}
}

// KafkaProducerConfig builds the producer configuration from the flags.
func (c *Config) KafkaProducerConfig() kafka.ProducerConfig {
	return kafka.ProducerConfig{
		BootstrapServers:  c.KafkaBrokers,
		ClientID:          c.KafkaClientID,
		TopicPrefix:       c.KafkaTopicPrefix,
		Acks:              "all",
		CompressionType:   "lz4",
		EnableIdempotence: true,
		LingerMs:          5,
		FlushTimeout:      kafka.DefaultFlushTimeout,
		EnableLogs:        c.KafkaEnableLogs,
	}
}

// CheckpointerConfig builds the checkpointer configuration.
func (c *Config) CheckpointerConfig() checkpointer.Config {
	cfg := checkpointer.DefaultConfig()
	if c.CheckpointInterval > 0 {
		cfg.Interval = c.CheckpointInterval
	}
	return cfg
}

// MetricsLabels returns the constant labels applied to every metric.
func (c *Config) MetricsLabels() metrics.Labels {
	return metrics.Labels{
		EVMChainID:    c.EVMChainID,
		Environment:   c.Environment,
		Region:        c.Region,
		CloudProvider: c.CloudProvider,
	}
}

func (c *Config) validate() error {
	if c.Output == "" && c.KafkaBrokers == "" && !c.ClickHouseEnabled && c.PostgresDSN == "" {
		return errNoOutput
	}
	if c.Scraper.BlockConcurrency <= 0 {
		return scraper.ErrInvalidBlockConcurrency
	}
	if c.Scraper.ReceiptConcurrency <= 0 {
		return scraper.ErrInvalidReceiptConcurrency
	}
	return nil
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	cfg := &Config{
		Verbose:      c.Bool("verbose"),
		RPCURL:       c.String("rpc-url"),
		RPCTimeout:   c.Duration("rpc-timeout"),
		EVMChainID:   c.Uint64("chain-id"),
		Start:        c.Uint64("start-block"),
		StartSet:     c.IsSet("start-block"),
		End:          c.Uint64("end-block"),
		EndSet:       c.IsSet("end-block"),
		ExportBlocks: c.Bool("export-blocks"),
		Scraper: scraper.Options{
			ExportTransactions:   c.Bool("export-transactions"),
			ExportERC20Transfers: c.Bool("export-erc20-transfers"),
			BlockConcurrency:     c.Int("block-concurrency"),
			ReceiptConcurrency:   c.Int("receipt-concurrency"),
		},
		Output:                      c.String("output"),
		KafkaBrokers:                c.String("kafka-brokers"),
		KafkaTopicPrefix:            c.String("kafka-topic-prefix"),
		KafkaClientID:               c.String("kafka-client-id"),
		KafkaEnableLogs:             c.Bool("kafka-enable-logs"),
		KafkaTopicNumPartitions:     c.Int("kafka-topic-num-partitions"),
		KafkaTopicReplicationFactor: c.Int("kafka-topic-replication-factor"),
		ClickHouseEnabled:           c.Bool("clickhouse"),
		PostgresDSN:                 c.String("postgres-dsn"),
		PostgresTable:               c.String("postgres-table"),
		Checkpoint:                  c.Bool("checkpoint"),
		CheckpointTableName:         c.String("checkpoint-table-name"),
		CheckpointInterval:          c.Duration("checkpoint-interval"),
		GapWatchdogInterval:         c.Duration("gap-watchdog-interval"),
		GapWatchdogMaxGap:           c.Uint64("gap-watchdog-max-gap"),
		MetricsHost:                 c.String("metrics-host"),
		MetricsPort:                 c.Int("metrics-port"),
		Environment:                 c.String("environment"),
		Region:                      c.String("region"),
		CloudProvider:               c.String("cloud-provider"),
	}

	if cfg.NeedsClickHouse() {
		chCfg, err := clickhouse.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to build ClickHouse config: %w", err)
		}
		cfg.ClickHouse = chCfg
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
