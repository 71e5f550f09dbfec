// Package jsonl writes records as newline-delimited JSON.
package jsonl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/sink"
)

var ErrClosed = errors.New("jsonl sink closed")

// Sink serializes records with types.MarshalRecord, one per line.
type Sink struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closer io.Closer // nil when the writer is not owned
	closed bool
}

var _ sink.Sink = (*Sink)(nil)

// New writes to w. The caller keeps ownership of w.
func New(w io.Writer) *Sink {
	return &Sink{w: bufio.NewWriter(w)}
}

// Open writes to path, or to stdout when path is "-" or empty.
// Existing files are truncated.
func Open(path string) (*Sink, error) {
	if path == "" || path == "-" {
		return New(os.Stdout), nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	s := New(f)
	s.closer = f
	return s, nil
}

func (s *Sink) Emit(_ context.Context, r types.Record) error {
	line, err := types.MarshalRecord(r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := s.w.Write(line); err != nil {
		return fmt.Errorf("write %s record: %w", r.Kind(), err)
	}
	return s.w.WriteByte('\n')
}

// Flush writes buffered records to the underlying writer.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Flush()
}

// Close flushes and, for sinks created by Open with a path, closes the file.
func (s *Sink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	err := s.w.Flush()
	if s.closer != nil {
		err = errors.Join(err, s.closer.Close())
	}
	return err
}
