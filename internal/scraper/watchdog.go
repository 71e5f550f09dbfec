package scraper

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Highest returns the highest finished height, or start if nothing has
// finished yet.
func (p *Progress) Highest() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.highest
}

// Gap is the number of heights between the lowest unfinished height and the
// highest finished one. A large gap means some block is stuck below work that
// already completed, which pins the checkpoint.
func (p *Progress) Gap() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done || p.highest < p.lowest {
		return 0
	}
	return p.highest - p.lowest
}

// WatchGap logs a warning every interval while the gap exceeds maxGap.
// It returns when ctx is done.
func WatchGap(ctx context.Context, log *zap.SugaredLogger, p *Progress, interval time.Duration, maxGap uint64) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if gap := p.Gap(); gap > maxGap {
				log.Warnw("gap too large",
					"gap", gap,
					"lowestUnfinished", p.Lowest(),
					"highestFinished", p.Highest(),
				)
			}
		}
	}
}
