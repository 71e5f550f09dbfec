package checkpointer

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ava-labs/ethscraper/pkg/metrics"
)

const testChainID = uint64(1)

type mockCheckpointer struct {
	mock.Mock
}

func (m *mockCheckpointer) Initialize(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockCheckpointer) Write(ctx context.Context, evmChainID uint64, lowestUnfinished uint64) error {
	args := m.Called(ctx, evmChainID, lowestUnfinished)
	return args.Error(0)
}

func (m *mockCheckpointer) Read(ctx context.Context, evmChainID uint64) (uint64, bool, error) {
	args := m.Called(ctx, evmChainID)
	return args.Get(0).(uint64), args.Bool(1), args.Error(2)
}

type fixedWatermark struct {
	lowest atomic.Uint64
}

func newWatermark(v uint64) *fixedWatermark {
	w := &fixedWatermark{}
	w.lowest.Store(v)
	return w
}

func (w *fixedWatermark) Lowest() uint64 { return w.lowest.Load() }

func TestStart_WritesAndFinalWriteOnCancel(t *testing.T) {
	t.Parallel()
	w := newWatermark(5)
	cp := &mockCheckpointer{}

	called := make(chan struct{}, 1)
	cp.On("Write", mock.Anything, testChainID, uint64(5)).
		Run(func(_ mock.Arguments) {
			select {
			case called <- struct{}{}:
			default:
			}
		}).
		Return(nil).
		Once()
	// Progress made after the periodic write is flushed on shutdown.
	cp.On("Write", mock.Anything, testChainID, uint64(9)).Return(nil).Once()

	cfg := Config{
		Interval:     10 * time.Millisecond,
		WriteTimeout: time.Second,
		MaxRetries:   3,
		RetryBackoff: 300 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, zap.NewNop().Sugar(), w, cp, cfg, testChainID, nil)
	}()

	select {
	case <-called:
		w.lowest.Store(9)
		cancel()
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for checkpoint write")
	}

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "timeout waiting for checkpointer to exit")
	}
	cp.AssertExpectations(t)
}

func TestStart_SkipsUnchangedWatermark(t *testing.T) {
	t.Parallel()
	w := newWatermark(7)
	cp := &mockCheckpointer{}

	var writes atomic.Int32
	cp.On("Write", mock.Anything, testChainID, uint64(7)).
		Run(func(_ mock.Arguments) { writes.Add(1) }).
		Return(nil)

	cfg := Config{Interval: 5 * time.Millisecond, WriteTimeout: time.Second, RetryBackoff: time.Millisecond}
	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	require.NoError(t, Start(ctx, zap.NewNop().Sugar(), w, cp, cfg, testChainID, nil))
	assert.Equal(t, int32(1), writes.Load())
}

func TestStart_ErrorPropagatesAfterRetries(t *testing.T) {
	t.Parallel()
	w := newWatermark(1)
	cp := &mockCheckpointer{}
	writeErr := errors.New("write failed")
	cp.On("Write", mock.Anything, testChainID, uint64(1)).
		Return(writeErr).
		Times(4) // initial try + 3 retries

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	cfg := Config{
		Interval:     5 * time.Millisecond,
		WriteTimeout: time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()
	gotErr := Start(ctx, zap.NewNop().Sugar(), w, cp, cfg, testChainID, m)
	require.ErrorIs(t, gotErr, writeErr)
	assert.Contains(t, gotErr.Error(), "after 4 attempts")
	cp.AssertExpectations(t)

	count, err := testutil.GatherAndCount(reg, "ethscraper_checkpoint_writes_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStart_ImmediateCancelWritesOnce(t *testing.T) {
	t.Parallel()
	w := newWatermark(0)
	cp := &mockCheckpointer{}
	cp.On("Write", mock.Anything, testChainID, uint64(0)).Return(nil).Once()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, Start(ctx, zap.NewNop().Sugar(), w, cp, DefaultConfig(), testChainID, nil))
	cp.AssertExpectations(t)
}

func TestStart_FinalWriteFailureIsLogged(t *testing.T) {
	t.Parallel()
	w := newWatermark(3)
	cp := &mockCheckpointer{}
	cp.On("Write", mock.Anything, testChainID, uint64(3)).Return(errors.New("gone")).Once()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, Start(ctx, zap.NewNop().Sugar(), w, cp, DefaultConfig(), testChainID, nil))
	cp.AssertExpectations(t)
}

func TestDefaultConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.Interval)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 300*time.Millisecond, cfg.RetryBackoff)
}
