// Package scraper walks a block range over JSON-RPC and turns the responses
// into block, transaction, erc20_transfer and err records.
//
// Each block is fetched by its own task; each of its transactions gets a
// receipt task. Tasks share nothing but the sink, so output order across
// blocks and transactions is unspecified. A failed request abandons only the
// work that depends on it. Only sink failures and cancellation stop a run.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ava-labs/ethscraper/internal/chainclient"
	"github.com/ava-labs/ethscraper/internal/erc20"
	"github.com/ava-labs/ethscraper/internal/mapper"
	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/hexcodec"
	"github.com/ava-labs/ethscraper/pkg/metrics"
	"github.com/ava-labs/ethscraper/pkg/sink"
)

var (
	ErrInvalidLogger             = errors.New("invalid logger: must not be nil")
	ErrInvalidTransport          = errors.New("invalid transport: must not be nil")
	ErrInvalidSink               = errors.New("invalid sink: must not be nil")
	ErrInvalidBlockConcurrency   = errors.New("invalid block concurrency: must be greater than 0")
	ErrInvalidReceiptConcurrency = errors.New("invalid receipt concurrency: must be greater than 0")

	// ErrSink wraps every error returned by the sink. It aborts the run.
	ErrSink = errors.New("sink failure")
)

type Options struct {
	ExportTransactions   bool
	ExportERC20Transfers bool
	// BlockConcurrency bounds the number of blocks processed at once.
	BlockConcurrency int
	// ReceiptConcurrency bounds the in-flight receipt requests of a single block.
	ReceiptConcurrency int
}

func DefaultOptions() Options {
	return Options{
		ExportTransactions:   true,
		ExportERC20Transfers: true,
		BlockConcurrency:     8,
		ReceiptConcurrency:   16,
	}
}

type Scraper struct {
	sugar     *zap.SugaredLogger
	transport chainclient.Transport
	sink      sink.Sink
	opts      Options
	metrics   *metrics.Metrics // nil if metrics disabled
	progress  *Progress
}

// Option configures the Scraper.
type Option func(*Scraper)

// WithMetrics enables metrics collection for the scraper.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scraper) {
		s.metrics = m
	}
}

// WithProgress makes Run report finished heights to p instead of a private
// Progress, so that callers can checkpoint it while the run is going.
func WithProgress(p *Progress) Option {
	return func(s *Scraper) {
		s.progress = p
	}
}

func New(
	sugar *zap.SugaredLogger,
	t chainclient.Transport,
	out sink.Sink,
	opts Options,
	options ...Option,
) (*Scraper, error) {
	if sugar == nil {
		return nil, ErrInvalidLogger
	}
	if t == nil {
		return nil, ErrInvalidTransport
	}
	if out == nil {
		return nil, ErrInvalidSink
	}
	if opts.BlockConcurrency <= 0 {
		return nil, ErrInvalidBlockConcurrency
	}
	if opts.ReceiptConcurrency <= 0 {
		return nil, ErrInvalidReceiptConcurrency
	}

	s := &Scraper{
		sugar:     sugar,
		transport: t,
		sink:      out,
		opts:      opts,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Run scrapes the inclusive range [start, end] and returns once every block
// task has finished. A reversed range is logged and yields no output.
func (s *Scraper) Run(ctx context.Context, start, end uint64) error {
	if start > end {
		s.sugar.Warnw("start block is after end block, nothing to scrape",
			"start", start,
			"end", end,
		)
		return nil
	}

	progress := s.progress
	if progress == nil {
		var err error
		if progress, err = NewProgress(start, end, s.metrics); err != nil {
			return err
		}
	}

	s.sugar.Infow("scraping block range",
		"start", start,
		"end", end,
		"url", s.transport.URL(),
		"exportTransactions", s.opts.ExportTransactions,
		"exportERC20Transfers", s.opts.ExportERC20Transfers,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.BlockConcurrency)

	for n := start; gctx.Err() == nil; n++ {
		g.Go(func() error {
			finished, err := s.processBlock(gctx, n)
			if err != nil {
				return err
			}
			if finished {
				if err := progress.MarkFinished(n); err != nil {
					s.sugar.Warnw("failed to mark block finished", "block", n, "error", err)
				}
			}
			return nil
		})
		if n == end {
			break
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.sugar.Infow("finished block range",
		"start", start,
		"end", end,
		"lowestUnfinished", progress.Lowest(),
	)
	return nil
}

// processBlock reports whether the block and all of its receipts were handled.
// Heights left unfinished are scraped again when a run resumes from a checkpoint.
func (s *Scraper) processBlock(ctx context.Context, n uint64) (bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveBlockProcessingDuration(time.Since(start).Seconds())
	}()

	const method = chainclient.MethodGetBlockByNumber
	resp, err := s.transport.Call(ctx, method, chainclient.BlockByNumberParams(n)...)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.metrics.IncError(metrics.ErrTypeTransport)
		s.sugar.Warnw("failed to fetch block", "block", n, "error", err)
		return false, nil
	}
	if resp.Error != nil {
		return false, s.emitRPCError(ctx, resp, method, hexcodec.EncodeUint64(n))
	}
	if !resp.HasResult() {
		s.sugar.Debugw("block not available", "block", n)
		return false, nil
	}

	block, err := mapper.MapBlock(resp.Result)
	if err != nil {
		s.metrics.IncError(metrics.ErrTypeDecodeBlock)
		s.sugar.Warnw("failed to decode block", "block", n, "error", err)
		return false, nil
	}
	if err := s.emit(ctx, block); err != nil {
		return false, err
	}
	for _, txErr := range block.MalformedTransactions {
		s.metrics.IncError(metrics.ErrTypeDecodeTx)
		s.sugar.Warnw("skipping malformed transaction", "block", n, "error", txErr)
	}

	ok, err := s.processTransactions(ctx, block)
	return ok && len(block.MalformedTransactions) == 0, err
}

func (s *Scraper) processTransactions(ctx context.Context, block *types.Block) (bool, error) {
	if !s.opts.ExportTransactions && !s.opts.ExportERC20Transfers {
		return true, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.ReceiptConcurrency)

	results := make([]bool, len(block.Transactions))
	for i, tx := range block.Transactions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if s.opts.ExportTransactions {
				if err := s.emit(gctx, tx); err != nil {
					return err
				}
			}
			if !s.opts.ExportERC20Transfers {
				results[i] = true
				return nil
			}
			ok, err := s.processReceipt(gctx, tx)
			results[i] = ok
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	for _, ok := range results {
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Scraper) processReceipt(ctx context.Context, tx *types.Transaction) (bool, error) {
	s.metrics.IncReceiptFetchInFlight()
	defer s.metrics.DecReceiptFetchInFlight()

	const method = chainclient.MethodGetTransactionReceipt
	resp, err := s.transport.Call(ctx, method, chainclient.ReceiptParams(tx.Hash)...)
	s.metrics.RecordReceiptFetch(err)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		s.metrics.IncError(metrics.ErrTypeTransport)
		s.sugar.Warnw("failed to fetch receipt",
			"block", tx.BlockNumber,
			"tx", tx.Hash,
			"error", err,
		)
		return false, nil
	}
	if resp.Error != nil {
		return false, s.emitRPCError(ctx, resp, method, tx.Hash.Hex())
	}
	if !resp.HasResult() {
		s.sugar.Debugw("receipt not available", "block", tx.BlockNumber, "tx", tx.Hash)
		return false, nil
	}

	receipt, err := mapper.MapReceipt(resp.Result)
	if err != nil {
		s.metrics.IncError(metrics.ErrTypeDecodeReceipt)
		s.sugar.Warnw("failed to decode receipt",
			"block", tx.BlockNumber,
			"tx", tx.Hash,
			"error", err,
		)
		return false, nil
	}
	for _, lerr := range receipt.MalformedLogs {
		s.metrics.IncError(metrics.ErrTypeDecodeLog)
		s.sugar.Warnw("skipping malformed log", "tx", tx.Hash, "error", lerr)
	}

	for transfer, err := range erc20.FilterTransfers(receipt) {
		if err != nil {
			// Mostly ERC-721 transfers, which share the event signature.
			s.metrics.IncError(metrics.ErrTypeDecodeTransfer)
			s.sugar.Debugw("skipping undecodable transfer log", "tx", tx.Hash, "error", err)
			continue
		}
		if err := s.emit(ctx, transfer); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (s *Scraper) emitRPCError(ctx context.Context, resp *chainclient.Response, method, subject string) error {
	s.sugar.Warnw("node returned error",
		"method", method,
		"subject", subject,
		"code", resp.Error.Code,
		"message", resp.Error.Message,
		"url", resp.URL,
	)
	return s.emit(ctx, &types.RPCError{
		URL:     resp.URL,
		Code:    resp.Error.Code,
		Message: resp.Error.Message,
		Method:  method,
		Subject: subject,
	})
}

func (s *Scraper) emit(ctx context.Context, r types.Record) error {
	if err := s.sink.Emit(ctx, r); err != nil {
		return fmt.Errorf("%w: emit %s %s: %w", ErrSink, r.Kind(), r.Key(), err)
	}
	s.metrics.IncRecordEmitted(string(r.Kind()))
	return nil
}
