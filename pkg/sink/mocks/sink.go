package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ava-labs/ethscraper/internal/types"
)

// MockSink is a mock implementation of sink.Sink for testing
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Emit(ctx context.Context, r types.Record) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockSink) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
