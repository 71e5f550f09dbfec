package main

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/ethscraper/internal/scraper"
	"github.com/ava-labs/ethscraper/pkg/checkpointer"
	"github.com/ava-labs/ethscraper/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/ethscraper/pkg/kafka"
	"github.com/ava-labs/ethscraper/pkg/sink/postgressink"
)

// runFlags returns all CLI flags for the run command
func runFlags() []cli.Flag {
	defaults := scraper.DefaultOptions()
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
		},
		&cli.StringFlag{
			Name:     "rpc-url",
			Aliases:  []string{"r"},
			Usage:    "The HTTP JSON-RPC URL of the Ethereum node",
			EnvVars:  []string{"ETH_JSON_RPC_URL"},
			Required: true,
		},
		&cli.DurationFlag{
			Name:    "rpc-timeout",
			Usage:   "Timeout of a single JSON-RPC request",
			EnvVars: []string{"RPC_TIMEOUT"},
			Value:   30 * time.Second,
		},
		&cli.Uint64Flag{
			Name:    "start-block",
			Aliases: []string{"s"},
			Usage:   "First block to scrape. If not specified, resumes from the checkpoint or starts at 0",
			EnvVars: []string{"START_BLOCK"},
		},
		&cli.Uint64Flag{
			Name:    "end-block",
			Aliases: []string{"e"},
			Usage:   "Last block to scrape (inclusive). If not specified, the latest block is used",
			EnvVars: []string{"END_BLOCK"},
		},
		&cli.BoolFlag{
			Name:    "export-blocks",
			Usage:   "Emit block records",
			EnvVars: []string{"EXPORT_BLOCKS"},
			Value:   true,
		},
		&cli.BoolFlag{
			Name:    "export-transactions",
			Usage:   "Emit transaction records",
			EnvVars: []string{"EXPORT_TRANSACTIONS"},
			Value:   defaults.ExportTransactions,
		},
		&cli.BoolFlag{
			Name:    "export-erc20-transfers",
			Usage:   "Emit ERC-20 transfer records",
			EnvVars: []string{"EXPORT_ERC20_TRANSFERS"},
			Value:   defaults.ExportERC20Transfers,
		},
		&cli.IntFlag{
			Name:    "block-concurrency",
			Aliases: []string{"c"},
			Usage:   "Number of blocks processed concurrently",
			EnvVars: []string{"BLOCK_CONCURRENCY"},
			Value:   defaults.BlockConcurrency,
		},
		&cli.IntFlag{
			Name:    "receipt-concurrency",
			Usage:   "Number of concurrent receipt requests per block",
			EnvVars: []string{"RECEIPT_CONCURRENCY"},
			Value:   defaults.ReceiptConcurrency,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write JSON lines to this file, '-' for stdout, empty to disable",
			EnvVars: []string{"OUTPUT"},
			Value:   "-",
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Kafka brokers to publish records to (comma-separated list). Empty disables Kafka",
			EnvVars: []string{"KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic-prefix",
			Usage:   "Records are published to <prefix>.<kind>",
			EnvVars: []string{"KAFKA_TOPIC_PREFIX"},
			Value:   kafka.DefaultTopicPrefix,
		},
		&cli.StringFlag{
			Name:    "kafka-client-id",
			Usage:   "The Kafka client ID",
			EnvVars: []string{"KAFKA_CLIENT_ID"},
			Value:   "ethscraper",
		},
		&cli.BoolFlag{
			Name:    "kafka-enable-logs",
			Usage:   "Forward librdkafka logs to the logger",
			EnvVars: []string{"KAFKA_ENABLE_LOGS"},
		},
		&cli.IntFlag{
			Name:    "kafka-topic-num-partitions",
			Usage:   "Partitions of the record topics when they are created",
			EnvVars: []string{"KAFKA_TOPIC_NUM_PARTITIONS"},
			Value:   1,
		},
		&cli.IntFlag{
			Name:    "kafka-topic-replication-factor",
			Usage:   "Replication factor of the record topics when they are created",
			EnvVars: []string{"KAFKA_TOPIC_REPLICATION_FACTOR"},
			Value:   1,
		},
		&cli.BoolFlag{
			Name:    "clickhouse",
			Usage:   "Write records to ClickHouse (connection settings from CLICKHOUSE_* variables)",
			EnvVars: []string{"CLICKHOUSE_ENABLED"},
		},
		&cli.StringFlag{
			Name:    "postgres-dsn",
			Usage:   "PostgreSQL connection string. Empty disables the PostgreSQL sink",
			EnvVars: []string{"POSTGRES_DSN"},
		},
		&cli.StringFlag{
			Name:    "postgres-table",
			Usage:   "PostgreSQL table records are written to",
			EnvVars: []string{"POSTGRES_TABLE"},
			Value:   postgressink.DefaultTable,
		},
		chainIDFlag(),
		&cli.BoolFlag{
			Name:    "checkpoint",
			Usage:   "Persist progress to ClickHouse and resume from it when --start-block is not set",
			EnvVars: []string{"CHECKPOINT_ENABLED"},
		},
		checkpointTableFlag(),
		&cli.DurationFlag{
			Name:    "checkpoint-interval",
			Usage:   "Interval between checkpoint writes",
			EnvVars: []string{"CHECKPOINT_INTERVAL"},
			Value:   checkpointer.DefaultConfig().Interval,
		},
		&cli.DurationFlag{
			Name:    "gap-watchdog-interval",
			Usage:   "Interval between checks of the unfinished block gap (0 disables)",
			EnvVars: []string{"GAP_WATCHDOG_INTERVAL"},
			Value:   15 * time.Second,
		},
		&cli.Uint64Flag{
			Name:    "gap-watchdog-max-gap",
			Usage:   "Warn when the highest finished block is this far above the lowest unfinished one",
			EnvVars: []string{"GAP_WATCHDOG_MAX_GAP"},
			Value:   10000,
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Usage:   "Deployment environment label for metrics (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
		},
		&cli.StringFlag{
			Name:    "region",
			Usage:   "Cloud region label for metrics (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Usage:   "Cloud provider label for metrics (e.g., 'aws', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
		},
	}
}

// removeFlags returns the flags of the remove command
func removeFlags() []cli.Flag {
	id := chainIDFlag()
	id.Required = true
	return []cli.Flag{id, checkpointTableFlag()}
}

func chainIDFlag() *cli.Uint64Flag {
	return &cli.Uint64Flag{
		Name:    "chain-id",
		Aliases: []string{"C"},
		Usage:   "EVM chain ID used to key checkpoints and metrics. If not specified, eth_chainId is used",
		EnvVars: []string{"EVM_CHAIN_ID"},
	}
}

func checkpointTableFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "checkpoint-table-name",
		Usage:   "ClickHouse table checkpoints are stored in",
		EnvVars: []string{"CHECKPOINT_TABLE_NAME"},
		Value:   checkpoint.DefaultTableName,
	}
}
