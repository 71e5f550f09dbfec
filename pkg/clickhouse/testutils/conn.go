package testutils

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/stretchr/testify/mock"
)

// MockConn is a mock implementation of driver.Conn for testing.
// Variadic query arguments are flattened into the recorded call, so
// expectations list them after ctx and the query.
type MockConn struct {
	mock.Mock
}

var _ driver.Conn = (*MockConn)(nil)

func (m *MockConn) Contributors() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

func (m *MockConn) ServerVersion() (*driver.ServerVersion, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*driver.ServerVersion), args.Error(1)
}

func (m *MockConn) Select(ctx context.Context, dest any, query string, args ...any) error {
	callArgs := append([]any{ctx, dest, query}, args...)
	return m.Called(callArgs...).Error(0)
}

func (m *MockConn) Query(ctx context.Context, query string, args ...any) (driver.Rows, error) {
	callArgs := append([]any{ctx, query}, args...)
	result := m.Called(callArgs...)
	if result.Get(0) == nil {
		return nil, result.Error(1)
	}
	return result.Get(0).(driver.Rows), result.Error(1)
}

func (m *MockConn) QueryRow(ctx context.Context, query string, args ...any) driver.Row {
	callArgs := append([]any{ctx, query}, args...)
	result := m.Called(callArgs...)
	if result.Get(0) == nil {
		return nil
	}
	return result.Get(0).(driver.Row)
}

func (m *MockConn) Exec(ctx context.Context, query string, args ...any) error {
	callArgs := append([]any{ctx, query}, args...)
	return m.Called(callArgs...).Error(0)
}

func (m *MockConn) AsyncInsert(ctx context.Context, query string, wait bool, args ...any) error {
	callArgs := append([]any{ctx, query, wait}, args...)
	return m.Called(callArgs...).Error(0)
}

func (m *MockConn) PrepareBatch(ctx context.Context, query string, opts ...driver.PrepareBatchOption) (driver.Batch, error) {
	callArgs := []any{ctx, query}
	for _, opt := range opts {
		callArgs = append(callArgs, opt)
	}
	result := m.Called(callArgs...)
	if result.Get(0) == nil {
		return nil, result.Error(1)
	}
	return result.Get(0).(driver.Batch), result.Error(1)
}

func (m *MockConn) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockConn) Stats() driver.Stats {
	args := m.Called()
	if args.Get(0) == nil {
		return driver.Stats{}
	}
	return args.Get(0).(driver.Stats)
}

func (m *MockConn) Close() error {
	return m.Called().Error(0)
}

// rowFunc adapts a scan function to driver.Row.
type rowFunc struct {
	scan func(dest ...any) error
	err  error
}

// NewRow returns a driver.Row whose Scan calls scan, or fails with err when scan is nil.
func NewRow(scan func(dest ...any) error, err error) driver.Row {
	return rowFunc{scan: scan, err: err}
}

func (r rowFunc) Err() error { return r.err }

func (r rowFunc) Scan(dest ...any) error {
	if r.scan == nil {
		return r.err
	}
	return r.scan(dest...)
}

func (r rowFunc) ScanStruct(dest any) error { return r.Scan(dest) }
