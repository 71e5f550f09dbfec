package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ava-labs/ethscraper/pkg/clickhouse"
	"github.com/ava-labs/ethscraper/pkg/data/clickhouse/checkpoint"
	"github.com/ava-labs/ethscraper/pkg/utils"
)

func remove(c *cli.Context) error {
	ctx := context.Background()
	sugar, err := utils.NewSugaredLogger(true)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer sugar.Desugar().Sync() //nolint:errcheck // best-effort flush; ignore sync errors

	evmChainID := c.Uint64("chain-id")

	chCfg, err := clickhouse.Load()
	if err != nil {
		return fmt.Errorf("failed to build ClickHouse config: %w", err)
	}

	chClient, err := clickhouse.New(chCfg, sugar)
	if err != nil {
		return fmt.Errorf("failed to create ClickHouse client: %w", err)
	}
	defer chClient.Close()

	repo, err := checkpoint.NewRepository(ctx, chClient, chCfg, c.String("checkpoint-table-name"))
	if err != nil {
		return fmt.Errorf("failed to create checkpoint repository: %w", err)
	}

	if err := repo.DeleteCheckpoints(ctx, evmChainID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}

	sugar.Infof("checkpoints successfully removed for chain ID %d", evmChainID)
	return nil
}
