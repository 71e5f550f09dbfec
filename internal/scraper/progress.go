package scraper

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/ethscraper/pkg/metrics"
)

var ErrOutOfRange = errors.New("block height out of range")

// Progress is a thread-safe record of which heights of [start, end] have
// finished. Lowest is the lowest unfinished height, which is what gets
// checkpointed: every height below it has finished.
type Progress struct {
	mu       sync.Mutex
	start    uint64
	end      uint64
	lowest   uint64
	highest  uint64              // highest finished height, valid once any height finished
	done     bool                // every height in the range finished
	finished map[uint64]struct{} // finished heights above lowest

	metrics *metrics.Metrics // nil if metrics disabled
}

// NewProgress creates a Progress for the inclusive range [start, end].
func NewProgress(start, end uint64, m *metrics.Metrics) (*Progress, error) {
	if end < start {
		return nil, fmt.Errorf("invalid range: end < start: %d < %d", end, start)
	}
	p := &Progress{
		start:    start,
		end:      end,
		lowest:   start,
		highest:  start,
		finished: make(map[uint64]struct{}),
		metrics:  m,
	}
	m.UpdateProgressMetrics(start, start, 0)
	return p, nil
}

// Lowest returns the lowest unfinished height. Once the whole range has
// finished it returns end+1 (saturating at the max uint64).
func (p *Progress) Lowest() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done && p.end < ^uint64(0) {
		return p.end + 1
	}
	return p.lowest
}

// Done reports whether every height in the range has finished.
func (p *Progress) Done() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// MarkFinished records h as finished and slides the lowest unfinished height
// forward over any contiguous run of finished heights. Idempotent.
func (p *Progress) MarkFinished(h uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if h < p.start || h > p.end {
		p.metrics.IncError(metrics.ErrTypeOutOfRange)
		return fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, h, p.start, p.end)
	}
	if p.done || h < p.lowest {
		return nil
	}
	p.finished[h] = struct{}{}
	if h > p.highest {
		p.highest = h
	}

	var advanced uint64
	for {
		if _, ok := p.finished[p.lowest]; !ok {
			break
		}
		delete(p.finished, p.lowest)
		advanced++
		if p.lowest == p.end {
			p.done = true
			break
		}
		p.lowest++
	}

	if advanced > 0 {
		p.metrics.CommitBlocks(advanced, p.lowest, p.highest, len(p.finished))
	} else {
		p.metrics.UpdateProgressMetrics(p.lowest, p.highest, len(p.finished))
	}
	return nil
}
