// Package chainclient defines the request/response capability the scraper
// uses to talk to an Ethereum JSON-RPC node.
package chainclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ava-labs/ethscraper/pkg/hexcodec"
)

const (
	MethodBlockNumber           = "eth_blockNumber"
	MethodChainID               = "eth_chainId"
	MethodGetBlockByNumber      = "eth_getBlockByNumber"
	MethodGetTransactionReceipt = "eth_getTransactionReceipt"
)

// ErrTransportFailure marks calls that produced no JSON-RPC response at all:
// connection errors, timeouts, non-JSON bodies.
var ErrTransportFailure = errors.New("rpc transport failure")

// ProtocolError is the error envelope of a JSON-RPC response.
type ProtocolError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// Response is a single JSON-RPC response. Exactly one of Result and Error is
// meaningful; Result may be nil or the literal null when the node has no data.
type Response struct {
	URL    string
	Result json.RawMessage
	Error  *ProtocolError
}

var null = []byte("null")

// HasResult reports whether the response carries a usable, non-null result.
func (r *Response) HasResult() bool {
	return r.Error == nil && len(r.Result) > 0 && !bytes.Equal(bytes.TrimSpace(r.Result), null)
}

// Transport sends one JSON-RPC request and waits for its response.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Call returns an error wrapping ErrTransportFailure when no response was
	// received. A node-side error is a successful call with Response.Error set.
	Call(ctx context.Context, method string, params ...any) (*Response, error)
	URL() string
}

// BlockByNumberParams requests the block at height n with full transaction objects.
func BlockByNumberParams(n uint64) []any {
	return []any{hexcodec.EncodeUint64(n), true}
}

func ReceiptParams(txHash common.Hash) []any {
	return []any{txHash.Hex()}
}

// LatestBlockNumber asks the node for the current head height.
func LatestBlockNumber(ctx context.Context, t Transport) (uint64, error) {
	return callQuantity(ctx, t, MethodBlockNumber)
}

// ChainID asks the node for its EIP-155 chain id.
func ChainID(ctx context.Context, t Transport) (uint64, error) {
	return callQuantity(ctx, t, MethodChainID)
}

func callQuantity(ctx context.Context, t Transport, method string) (uint64, error) {
	resp, err := t.Call(ctx, method)
	if err != nil {
		return 0, err
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("%s: %w", method, resp.Error)
	}
	if !resp.HasResult() {
		return 0, fmt.Errorf("%s: empty result", method)
	}
	var s string
	if err := json.Unmarshal(resp.Result, &s); err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	n, err := hexcodec.DecodeUint64(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", method, err)
	}
	return n, nil
}
