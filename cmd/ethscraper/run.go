package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/ethscraper/internal/chainclient"
	"github.com/ava-labs/ethscraper/internal/chainclient/jsonrpc"
	"github.com/ava-labs/ethscraper/internal/scraper"
	"github.com/ava-labs/ethscraper/pkg/checkpointer"
	"github.com/ava-labs/ethscraper/pkg/clickhouse"
	"github.com/ava-labs/ethscraper/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/ethscraper/pkg/metrics"
	"github.com/ava-labs/ethscraper/pkg/utils"
)

const (
	shutdownTimeout    = 15 * time.Second
	healthCheckTimeout = 5 * time.Second
)

func run(c *cli.Context) error {
	cfg, err := buildConfig(c)
	if err != nil {
		return fmt.Errorf("failed to build config: %w", err)
	}

	sugar, err := utils.NewSugaredLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	sugar.Infow("config",
		"verbose", cfg.Verbose,
		"rpcURL", cfg.RPCURL,
		"rpcTimeout", cfg.RPCTimeout,
		"evmChainID", cfg.EVMChainID,
		"start", cfg.Start,
		"startSet", cfg.StartSet,
		"end", cfg.End,
		"endSet", cfg.EndSet,
		"exportBlocks", cfg.ExportBlocks,
		"exportTransactions", cfg.Scraper.ExportTransactions,
		"exportERC20Transfers", cfg.Scraper.ExportERC20Transfers,
		"blockConcurrency", cfg.Scraper.BlockConcurrency,
		"receiptConcurrency", cfg.Scraper.ReceiptConcurrency,
		"output", cfg.Output,
		"kafkaBrokers", cfg.KafkaBrokers,
		"clickhouse", cfg.ClickHouseEnabled,
		"postgres", cfg.PostgresDSN != "",
		"checkpoint", cfg.Checkpoint,
		"checkpointInterval", cfg.CheckpointInterval,
		"metricsHost", cfg.MetricsHost,
		"metricsPort", cfg.MetricsPort,
		"environment", cfg.Environment,
		"region", cfg.Region,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = scrape(ctx, cfg, sugar)
	if errors.Is(err, context.Canceled) {
		sugar.Infow("exiting due to context cancellation")
		return nil
	}
	if err != nil {
		sugar.Errorw("run failed", "error", err)
	}
	return err
}

// scrape wires the run together. Its deferred cleanups flush the sinks and stop
// the metrics server once every goroutine has returned.
func scrape(ctx context.Context, cfg *Config, sugar *zap.SugaredLogger) error {
	if cfg.EVMChainID == 0 {
		id, err := resolveChainID(ctx, cfg)
		if err != nil {
			return err
		}
		cfg.EVMChainID = id
		sugar.Infof("evm chain id from node: %d", id)
	}

	// Initialize Prometheus metrics with labels for multi-instance filtering
	registry := prometheus.NewRegistry()
	m, err := metrics.NewWithLabels(registry, cfg.MetricsLabels())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}

	transport, err := jsonrpc.New(ctx, cfg.RPCURL,
		jsonrpc.WithTimeout(cfg.RPCTimeout),
		jsonrpc.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("failed to dial rpc: %w", err)
	}
	defer transport.Close()

	healthChecks := []metrics.ServerOption{
		metrics.WithHealthCheck("rpc", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			defer cancel()
			_, err := chainclient.LatestBlockNumber(ctx, transport)
			return err
		}),
	}

	var chClient clickhouse.Client
	if cfg.NeedsClickHouse() {
		chClient, err = clickhouse.New(cfg.ClickHouse, sugar)
		if err != nil {
			return fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		defer chClient.Close()
		sugar.Info("ClickHouse client created successfully")
		healthChecks = append(healthChecks, metrics.WithHealthCheck("clickhouse", chClient.Ping))
	}

	metricsServer := metrics.NewServer(cfg.MetricsAddr(), registry, healthChecks...)
	metricsErrCh := metricsServer.Start()
	if cfg.MetricsHost == "" {
		sugar.Infof("metrics server listening on http://0.0.0.0:%d/metrics", cfg.MetricsPort)
	} else {
		sugar.Infof("metrics server listening on http://%s/metrics", cfg.MetricsAddr())
	}
	defer func() {
		sugar.Info("shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("metrics server shutdown error", "error", err)
		}
	}()

	var chkpt checkpointer.Checkpointer
	if cfg.Checkpoint {
		chkpt, err = checkpoint.NewRepository(ctx, chClient, cfg.ClickHouse, cfg.CheckpointTableName)
		if err != nil {
			return fmt.Errorf("failed to create checkpoint repository: %w", err)
		}
	}

	start, end, err := resolveRange(ctx, cfg, transport, chkpt, sugar)
	if err != nil {
		return err
	}

	out, err := openOutputs(ctx, cfg, sugar, m, chClient)
	if err != nil {
		return err
	}
	defer func() {
		// Sinks are flushed even when the run was cancelled.
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := out.sink.Close(closeCtx); err != nil {
			sugar.Errorw("failed to close sinks", "error", err)
		}
	}()

	options := []scraper.Option{scraper.WithMetrics(m)}
	var progress *scraper.Progress
	if start <= end {
		progress, err = scraper.NewProgress(start, end, m)
		if err != nil {
			return fmt.Errorf("failed to create progress: %w", err)
		}
		options = append(options, scraper.WithProgress(progress))
	}

	s, err := scraper.New(sugar, transport, out.sink, cfg.Scraper, options...)
	if err != nil {
		return fmt.Errorf("failed to create scraper: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	// runCtx ends the helper goroutines once the range is scraped.
	runCtx, finished := context.WithCancel(gctx)
	defer finished()

	g.Go(func() error {
		defer finished()
		return s.Run(gctx, start, end)
	})
	g.Go(func() error {
		select {
		case <-runCtx.Done():
			return nil
		case err := <-metricsErrCh:
			if err != nil {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		}
	})
	g.Go(func() error {
		select {
		case <-runCtx.Done():
			return nil
		case err := <-out.producerErrors():
			return err
		}
	})
	if progress != nil && cfg.GapWatchdogInterval > 0 {
		g.Go(func() error {
			scraper.WatchGap(runCtx, sugar, progress, cfg.GapWatchdogInterval, cfg.GapWatchdogMaxGap)
			return nil
		})
	}
	if chkpt != nil && progress != nil {
		g.Go(func() error {
			return checkpointer.Start(runCtx, sugar, progress, chkpt, cfg.CheckpointerConfig(), cfg.EVMChainID, m)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if progress != nil {
		sugar.Infow("scrape complete",
			"start", start,
			"end", end,
			"lowestUnfinished", progress.Lowest(),
			"done", progress.Done(),
		)
	}
	return nil
}

// resolveChainID asks the node for its chain id before metrics exist.
func resolveChainID(ctx context.Context, cfg *Config) (uint64, error) {
	t, err := jsonrpc.New(ctx, cfg.RPCURL, jsonrpc.WithTimeout(cfg.RPCTimeout))
	if err != nil {
		return 0, fmt.Errorf("failed to dial rpc: %w", err)
	}
	defer t.Close()

	id, err := chainclient.ChainID(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	return id, nil
}

// resolveRange fills in unset bounds: the start from the checkpoint (or 0), the
// end from the node's latest block.
func resolveRange(
	ctx context.Context,
	cfg *Config,
	t chainclient.Transport,
	chkpt checkpointer.Checkpointer,
	sugar *zap.SugaredLogger,
) (uint64, uint64, error) {
	start := cfg.Start
	switch {
	case cfg.StartSet:
		sugar.Infof("start block: %d", start)
	case chkpt != nil:
		lowest, exists, err := chkpt.Read(ctx, cfg.EVMChainID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read checkpoint: %w", err)
		}
		if exists {
			start = lowest
			sugar.Infof("start block from checkpoint: %d", start)
		} else {
			sugar.Infof("checkpoint not found, will start from block 0")
		}
	default:
		sugar.Infof("start block: not specified, will start from block 0")
	}

	end := cfg.End
	if cfg.EndSet {
		sugar.Infof("end block: %d", end)
	} else {
		latest, err := chainclient.LatestBlockNumber(ctx, t)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get latest block number: %w", err)
		}
		end = latest
		sugar.Infof("end block: not specified, using latest block %d", end)
	}
	return start, end, nil
}
