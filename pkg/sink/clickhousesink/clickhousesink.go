// Package clickhousesink writes records into per-kind ClickHouse tables.
package clickhousesink

import (
	"context"
	"errors"
	"fmt"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/clickhouse"
	"github.com/ava-labs/ethscraper/pkg/data/clickhouse/scraperepo"
	"github.com/ava-labs/ethscraper/pkg/sink"
)

var ErrUnsupportedRecord = errors.New("unsupported record")

// Repositories are the tables the sink writes to.
type Repositories struct {
	Blocks       scraperepo.Blocks
	Transactions scraperepo.Transactions
	Transfers    scraperepo.Transfers
	RPCErrors    scraperepo.RPCErrors
}

// Sink dispatches records to the repository of their kind. It does not own
// the ClickHouse connection.
type Sink struct {
	repos Repositories
}

var _ sink.Sink = (*Sink)(nil)

func New(repos Repositories) *Sink {
	return &Sink{repos: repos}
}

// Open creates every table for chainID and returns a sink writing to them.
func Open(ctx context.Context, client clickhouse.Client, cfg clickhouse.Config, chainID uint64) (*Sink, error) {
	var (
		repos Repositories
		err   error
	)
	if repos.Blocks, err = scraperepo.NewBlocks(ctx, client, cfg, chainID); err != nil {
		return nil, err
	}
	if repos.Transactions, err = scraperepo.NewTransactions(ctx, client, cfg, chainID); err != nil {
		return nil, err
	}
	if repos.Transfers, err = scraperepo.NewTransfers(ctx, client, cfg, chainID); err != nil {
		return nil, err
	}
	if repos.RPCErrors, err = scraperepo.NewRPCErrors(ctx, client, cfg, chainID); err != nil {
		return nil, err
	}
	return New(repos), nil
}

func (s *Sink) Emit(ctx context.Context, r types.Record) error {
	switch rec := r.(type) {
	case *types.Block:
		return s.repos.Blocks.WriteBlock(ctx, rec)
	case *types.Transaction:
		return s.repos.Transactions.WriteTransaction(ctx, rec)
	case *types.ERC20Transfer:
		return s.repos.Transfers.WriteTransfer(ctx, rec)
	case *types.RPCError:
		return s.repos.RPCErrors.WriteRPCError(ctx, rec)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedRecord, r.Kind())
	}
}

func (*Sink) Close(context.Context) error { return nil }
