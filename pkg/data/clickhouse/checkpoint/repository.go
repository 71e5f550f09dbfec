package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/ethscraper/pkg/checkpointer"
	"github.com/ava-labs/ethscraper/pkg/clickhouse"
)

// DefaultTableName is the checkpoints table used when none is configured.
const DefaultTableName = "checkpoints"

// Repository reads and writes scrape checkpoints in ClickHouse. It implements
// checkpointer.Checkpointer and adds ClickHouse-specific operations.
type Repository interface {
	checkpointer.Checkpointer
	DeleteCheckpoints(ctx context.Context, chainID uint64) error
}

var _ Repository = (*repository)(nil)

type repository struct {
	client    clickhouse.Client
	onCluster string
	table     string
	now       func() time.Time
}

// NewRepository creates a checkpoint repository and ensures its table exists.
func NewRepository(ctx context.Context, client clickhouse.Client, cfg clickhouse.Config, tableName string) (Repository, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}
	repo := &repository{
		client:    client,
		onCluster: cfg.OnCluster(),
		table:     cfg.Table(tableName),
		now:       time.Now,
	}
	if err := repo.Initialize(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

// Initialize creates the checkpoints table.
// Schema:
//   - evm_chain_id: UInt64 (sorting key)
//   - lowest_unfinished_block: UInt64
//   - timestamp: Int64 (ReplacingMergeTree version)
func (r *repository) Initialize(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s %s (
		evm_chain_id UInt64,
		lowest_unfinished_block UInt64,
		timestamp Int64
	)
	ENGINE = ReplacingMergeTree(timestamp)
	ORDER BY evm_chain_id`, r.table, r.onCluster)
	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create checkpoints table: %w", err)
	}
	return nil
}

// Write persists a checkpoint stamped with the current Unix time in seconds.
func (r *repository) Write(ctx context.Context, evmChainID uint64, lowestUnfinished uint64) error {
	cp := Checkpoint{
		ChainID:   evmChainID,
		Lowest:    lowestUnfinished,
		Timestamp: r.now().Unix(),
	}
	query := `INSERT INTO ` + r.table + ` (evm_chain_id, lowest_unfinished_block, timestamp) VALUES (?, ?, ?)`
	if err := r.client.Conn().Exec(ctx, query, cp.ChainID, cp.Lowest, cp.Timestamp); err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// Read returns the newest checkpoint for evmChainID.
func (r *repository) Read(ctx context.Context, evmChainID uint64) (lowestUnfinished uint64, exists bool, err error) {
	var cp Checkpoint
	query := `SELECT evm_chain_id, lowest_unfinished_block, timestamp FROM ` + r.table +
		` WHERE evm_chain_id = ? ORDER BY timestamp DESC LIMIT 1`
	err = r.client.Conn().
		QueryRow(ctx, query, evmChainID).
		Scan(&cp.ChainID, &cp.Lowest, &cp.Timestamp)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return cp.Lowest, true, nil
}

// DeleteCheckpoints removes every checkpoint of chainID so the next run starts
// from the configured start block.
func (r *repository) DeleteCheckpoints(ctx context.Context, chainID uint64) error {
	query := fmt.Sprintf(`ALTER TABLE %s %s DELETE WHERE evm_chain_id = ?`, r.table, r.onCluster)
	if err := r.client.Conn().Exec(ctx, query, chainID); err != nil {
		return fmt.Errorf("failed to delete checkpoints: %w", err)
	}
	return nil
}
