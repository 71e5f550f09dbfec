package chainclient

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTransport struct {
	resp *Response
	err  error
}

func (s staticTransport) Call(context.Context, string, ...any) (*Response, error) {
	return s.resp, s.err
}

func (staticTransport) URL() string { return "http://node" }

func TestResponse_HasResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp Response
		want bool
	}{
		{name: "object", resp: Response{Result: json.RawMessage(`{"number":"0x1"}`)}, want: true},
		{name: "string", resp: Response{Result: json.RawMessage(`"0x1"`)}, want: true},
		{name: "nil", resp: Response{}, want: false},
		{name: "null", resp: Response{Result: json.RawMessage(`null`)}, want: false},
		{name: "padded null", resp: Response{Result: json.RawMessage(" null\n")}, want: false},
		{name: "error", resp: Response{Result: json.RawMessage(`{}`), Error: &ProtocolError{Code: -32000}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.resp.HasResult())
		})
	}
}

func TestParams(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []any{"0x10d4f", true}, BlockByNumberParams(68943))
	assert.Equal(t, []any{"0x0", true}, BlockByNumberParams(0))

	h := common.HexToHash("0x2f1c5c2b44f771e942a8506148e256f94f1a464babc938ae0690c6e34cd79190")
	assert.Equal(t, []any{"0x2f1c5c2b44f771e942a8506148e256f94f1a464babc938ae0690c6e34cd79190"}, ReceiptParams(h))
}

func TestProtocolError(t *testing.T) {
	t.Parallel()
	err := &ProtocolError{Code: -32000, Message: "header not found"}
	assert.Equal(t, "rpc error -32000: header not found", err.Error())
}

func TestLatestBlockNumber(t *testing.T) {
	t.Parallel()

	n, err := LatestBlockNumber(t.Context(), staticTransport{resp: &Response{Result: json.RawMessage(`"0x1312d00"`)}})
	require.NoError(t, err)
	assert.Equal(t, uint64(20_000_000), n)

	_, err = LatestBlockNumber(t.Context(), staticTransport{resp: &Response{Error: &ProtocolError{Code: -32601, Message: "method not found"}}})
	require.ErrorContains(t, err, "method not found")

	_, err = LatestBlockNumber(t.Context(), staticTransport{resp: &Response{Result: json.RawMessage(`null`)}})
	require.Error(t, err)

	_, err = LatestBlockNumber(t.Context(), staticTransport{err: ErrTransportFailure})
	require.ErrorIs(t, err, ErrTransportFailure)
}

func TestChainID(t *testing.T) {
	t.Parallel()

	id, err := ChainID(t.Context(), staticTransport{resp: &Response{Result: json.RawMessage(`"0xa86a"`)}})
	require.NoError(t, err)
	assert.Equal(t, uint64(43114), id)

	_, err = ChainID(t.Context(), staticTransport{resp: &Response{Result: json.RawMessage(`"banana"`)}})
	require.ErrorContains(t, err, MethodChainID)
}
