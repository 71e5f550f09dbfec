package checkpointer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ava-labs/ethscraper/pkg/metrics"
)

// Checkpointer abstracts checkpoint persistence across data stores. A checkpoint is
// the lowest block height of the scraped range that has not been fully scraped,
// so that a restarted run can resume without skipping blocks.
type Checkpointer interface {
	// Initialize ensures the underlying storage is ready. It must be idempotent.
	Initialize(ctx context.Context) error

	// Write persists a checkpoint for the EVM chain ID.
	Write(ctx context.Context, evmChainID uint64, lowestUnfinished uint64) error

	// Read returns the latest checkpoint for a chain and whether one exists.
	Read(ctx context.Context, evmChainID uint64) (lowestUnfinished uint64, exists bool, err error)
}

// Watermark reports the lowest block height that is not yet fully processed.
type Watermark interface {
	Lowest() uint64
}

// Start periodically persists the watermark until ctx is cancelled, then writes
// once more so that progress made since the last tick is not lost. Unchanged
// watermarks are not rewritten.
//
// Returns nil on context cancellation, or an error if a write fails after all retries.
func Start(
	ctx context.Context,
	log *zap.SugaredLogger,
	w Watermark,
	cp Checkpointer,
	cfg Config,
	evmChainID uint64,
	m *metrics.Metrics,
) error {
	t := time.NewTicker(cfg.Interval)
	defer t.Stop()

	written, hasWritten := uint64(0), false
	for {
		select {
		case <-ctx.Done():
			lowest := w.Lowest()
			if hasWritten && lowest == written {
				return nil
			}
			// The run context is gone; the final write gets its own deadline.
			finalCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.WriteTimeout)
			err := cp.Write(finalCtx, evmChainID, lowest)
			cancel()
			m.RecordCheckpointWrite(err)
			if err != nil {
				log.Errorw("failed to write final checkpoint", "lowest", lowest, "error", err)
				return nil
			}
			log.Infow("final checkpoint written", "evmChainID", evmChainID, "lowest", lowest)
			return nil

		case <-t.C:
			lowest := w.Lowest()
			if hasWritten && lowest == written {
				continue
			}
			if err := writeWithRetry(ctx, log, cp, cfg, evmChainID, lowest, m); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
			written, hasWritten = lowest, true
		}
	}
}

func writeWithRetry(
	ctx context.Context,
	log *zap.SugaredLogger,
	cp Checkpointer,
	cfg Config,
	evmChainID uint64,
	lowest uint64,
	m *metrics.Metrics,
) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
		lastErr = cp.Write(writeCtx, evmChainID, lowest)
		cancel()
		m.RecordCheckpointWrite(lastErr)

		if lastErr == nil {
			log.Debugw("checkpoint written", "evmChainID", evmChainID, "lowest", lowest)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warnw("checkpoint write failed",
			"attempt", attempt+1,
			"lowest", lowest,
			"error", lastErr,
		)

		// Don't sleep after the last attempt
		if attempt < cfg.MaxRetries {
			select {
			case <-time.After(cfg.RetryBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("failed to write checkpoint (lowest: %d) after %d attempts: %w",
		lowest, cfg.MaxRetries+1, lastErr)
}
