// Package sink defines where scraped records go.
package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/metrics"
)

// Sink receives scraper records. Implementations must be safe for concurrent use.
type Sink interface {
	Emit(ctx context.Context, r types.Record) error
	Close(ctx context.Context) error
}

var ErrNoSinks = errors.New("no sinks configured")

type multi struct {
	sinks []Sink
}

// Multi fans every record out to all sinks in order and stops at the first failure.
func Multi(sinks ...Sink) (Sink, error) {
	if len(sinks) == 0 {
		return nil, ErrNoSinks
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return &multi{sinks: sinks}, nil
}

func (m *multi) Emit(ctx context.Context, r types.Record) error {
	for _, s := range m.sinks {
		if err := s.Emit(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink and joins their errors.
func (m *multi) Close(ctx context.Context) error {
	errs := make([]error, 0, len(m.sinks))
	for _, s := range m.sinks {
		errs = append(errs, s.Close(ctx))
	}
	return errors.Join(errs...)
}

type filter struct {
	Sink
	drop map[types.RecordKind]struct{}
}

// Filter drops records of the given kinds before they reach s.
func Filter(s Sink, drop ...types.RecordKind) Sink {
	if len(drop) == 0 {
		return s
	}
	f := &filter{Sink: s, drop: make(map[types.RecordKind]struct{}, len(drop))}
	for _, k := range drop {
		f.drop[k] = struct{}{}
	}
	return f
}

func (f *filter) Emit(ctx context.Context, r types.Record) error {
	if _, ok := f.drop[r.Kind()]; ok {
		return nil
	}
	return f.Sink.Emit(ctx, r)
}

type instrumented struct {
	Sink
	name    string
	metrics *metrics.Metrics
}

// Instrumented records write outcomes and latency of s under name.
func Instrumented(name string, s Sink, m *metrics.Metrics) Sink {
	if m == nil {
		return s
	}
	return &instrumented{Sink: s, name: name, metrics: m}
}

func (i *instrumented) Emit(ctx context.Context, r types.Record) error {
	start := time.Now()
	err := i.Sink.Emit(ctx, r)
	i.metrics.RecordSinkWrite(i.name, err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("%s sink: %w", i.name, err)
	}
	return nil
}
