// Package scraperepo persists scraped records to ClickHouse, one table per record kind.
package scraperepo

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/clickhouse"
)

// Blocks writes block headers.
type Blocks interface {
	CreateTableIfNotExists(ctx context.Context) error
	WriteBlock(ctx context.Context, b *types.Block) error
}

// Transactions writes transactions.
type Transactions interface {
	CreateTableIfNotExists(ctx context.Context) error
	WriteTransaction(ctx context.Context, tx *types.Transaction) error
}

// Transfers writes decoded ERC-20 transfers.
type Transfers interface {
	CreateTableIfNotExists(ctx context.Context) error
	WriteTransfer(ctx context.Context, t *types.ERC20Transfer) error
}

// RPCErrors writes JSON-RPC protocol errors reported by the node.
type RPCErrors interface {
	CreateTableIfNotExists(ctx context.Context) error
	WriteRPCError(ctx context.Context, e *types.RPCError) error
}

type table struct {
	client    clickhouse.Client
	name      string
	onCluster string
	chainID   uint64
}

func newTable(client clickhouse.Client, cfg clickhouse.Config, name string, chainID uint64) table {
	return table{
		client:    client,
		name:      cfg.Table(name),
		onCluster: cfg.OnCluster(),
		chainID:   chainID,
	}
}

func (t table) exec(ctx context.Context, what, query string, args ...any) error {
	if err := t.client.Conn().Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to %s: %w", what, err)
	}
	return nil
}

type blocks struct{ table }

// NewBlocks creates the blocks repository and initializes its table.
func NewBlocks(ctx context.Context, client clickhouse.Client, cfg clickhouse.Config, chainID uint64) (Blocks, error) {
	repo := &blocks{newTable(client, cfg, TableBlocks, chainID)}
	if err := repo.CreateTableIfNotExists(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *blocks) CreateTableIfNotExists(ctx context.Context) error {
	return r.exec(ctx, "create blocks table", createBlocksTableQuery(r.name, r.onCluster))
}

func (r *blocks) WriteBlock(ctx context.Context, b *types.Block) error {
	return r.exec(ctx, "insert block", insertBlockQuery(r.name),
		r.chainID,
		b.Number,
		b.Hash.Hex(),
		b.ParentHash.Hex(),
		blockTime(b.Timestamp),
		b.Miner.Hex(),
		b.GasLimit,
		b.GasUsed,
		nullableBig(b.BaseFee),
		b.Size,
		uint32(b.TransactionCount()), //nolint:gosec // bounded by block gas limit
	)
}

type transactions struct{ table }

// NewTransactions creates the transactions repository and initializes its table.
func NewTransactions(ctx context.Context, client clickhouse.Client, cfg clickhouse.Config, chainID uint64) (Transactions, error) {
	repo := &transactions{newTable(client, cfg, TableTransactions, chainID)}
	if err := repo.CreateTableIfNotExists(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *transactions) CreateTableIfNotExists(ctx context.Context) error {
	return r.exec(ctx, "create transactions table", createTransactionsTableQuery(r.name, r.onCluster))
}

func (r *transactions) WriteTransaction(ctx context.Context, tx *types.Transaction) error {
	var to any
	if tx.To != nil {
		to = tx.To.Hex()
	}
	return r.exec(ctx, "insert transaction", insertTransactionQuery(r.name),
		r.chainID,
		tx.BlockNumber,
		tx.BlockHash.Hex(),
		tx.Hash.Hex(),
		tx.TransactionIndex,
		tx.From.Hex(),
		to,
		bigString(tx.Value),
		tx.Gas,
		nullableBig(tx.GasPrice),
		tx.Nonce,
		tx.Input.String(),
	)
}

type transfers struct{ table }

// NewTransfers creates the ERC-20 transfers repository and initializes its table.
func NewTransfers(ctx context.Context, client clickhouse.Client, cfg clickhouse.Config, chainID uint64) (Transfers, error) {
	repo := &transfers{newTable(client, cfg, TableTransfers, chainID)}
	if err := repo.CreateTableIfNotExists(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *transfers) CreateTableIfNotExists(ctx context.Context) error {
	return r.exec(ctx, "create erc20 transfers table", createTransfersTableQuery(r.name, r.onCluster))
}

func (r *transfers) WriteTransfer(ctx context.Context, t *types.ERC20Transfer) error {
	amount := "0"
	if t.Amount != nil {
		amount = t.Amount.Dec()
	}
	return r.exec(ctx, "insert erc20 transfer", insertTransferQuery(r.name),
		r.chainID,
		t.BlockNumber,
		t.BlockHash.Hex(),
		t.TransactionHash.Hex(),
		t.LogIndex,
		t.TokenAddress.Hex(),
		t.From.Hex(),
		t.To.Hex(),
		amount,
	)
}

type rpcErrors struct{ table }

// NewRPCErrors creates the rpc errors repository and initializes its table.
func NewRPCErrors(ctx context.Context, client clickhouse.Client, cfg clickhouse.Config, chainID uint64) (RPCErrors, error) {
	repo := &rpcErrors{newTable(client, cfg, TableRPCErrors, chainID)}
	if err := repo.CreateTableIfNotExists(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *rpcErrors) CreateTableIfNotExists(ctx context.Context) error {
	return r.exec(ctx, "create rpc errors table", createRPCErrorsTableQuery(r.name, r.onCluster))
}

func (r *rpcErrors) WriteRPCError(ctx context.Context, e *types.RPCError) error {
	return r.exec(ctx, "insert rpc error", insertRPCErrorQuery(r.name),
		r.chainID,
		e.Method,
		e.Subject,
		e.URL,
		int64(e.Code),
		e.Message,
	)
}

// ClickHouse accepts UInt256 values as decimal strings in Exec arguments.
func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nullableBig(v *big.Int) any {
	if v == nil {
		return nil
	}
	return v.String()
}

func blockTime(ts uint64) time.Time {
	return time.Unix(int64(ts), 0).UTC() //nolint:gosec // block timestamps fit in int64
}
