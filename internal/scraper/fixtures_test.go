package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ava-labs/ethscraper/internal/chainclient"
	"github.com/ava-labs/ethscraper/internal/erc20"
	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/hexcodec"
)

const nodeURL = "http://127.0.0.1:8545"

type rpcCall struct {
	method string
	params []any
}

type reply struct {
	result       string
	protocolErr  *chainclient.ProtocolError
	transportErr error
}

// fakeTransport serves canned replies keyed by block height and tx hash.
// Unknown keys answer with a null result.
type fakeTransport struct {
	mu       sync.Mutex
	calls    []rpcCall
	blocks   map[uint64]reply
	receipts map[string]reply
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		blocks:   make(map[uint64]reply),
		receipts: make(map[string]reply),
	}
}

func (f *fakeTransport) URL() string { return nodeURL }

func (f *fakeTransport) Call(ctx context.Context, method string, params ...any) (*chainclient.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", chainclient.ErrTransportFailure, err)
	}

	f.mu.Lock()
	f.calls = append(f.calls, rpcCall{method: method, params: params})
	var r reply
	switch method {
	case chainclient.MethodGetBlockByNumber:
		n, err := hexcodec.DecodeUint64(params[0].(string))
		if err != nil {
			f.mu.Unlock()
			return nil, err
		}
		r = f.blocks[n]
	case chainclient.MethodGetTransactionReceipt:
		r = f.receipts[params[0].(string)]
	default:
		f.mu.Unlock()
		return nil, errors.New("unexpected method " + method)
	}
	f.mu.Unlock()

	if r.transportErr != nil {
		return nil, fmt.Errorf("%w: %w", chainclient.ErrTransportFailure, r.transportErr)
	}
	resp := &chainclient.Response{URL: nodeURL, Error: r.protocolErr}
	if r.protocolErr == nil {
		resp.Result = json.RawMessage(r.result)
		if r.result == "" {
			resp.Result = json.RawMessage("null")
		}
	}
	return resp, nil
}

func (f *fakeTransport) callsTo(method string) []rpcCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rpcCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}
	return out
}

// recordingSink keeps every record. Emit fails with failWith once failAfter
// records have been accepted, when failWith is set.
type recordingSink struct {
	mu        sync.Mutex
	records   []types.Record
	failWith  error
	failAfter int
}

func (s *recordingSink) Emit(_ context.Context, r types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil && len(s.records) >= s.failAfter {
		return s.failWith
	}
	s.records = append(s.records, r)
	return nil
}

func (*recordingSink) Close(context.Context) error { return nil }

func (s *recordingSink) byKind(kind types.RecordKind) []types.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Record
	for _, r := range s.records {
		if r.Kind() == kind {
			out = append(out, r)
		}
	}
	return out
}

func (s *recordingSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

var (
	token = common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	alice = common.HexToAddress("0x5a52e96bacdabb82fd05763e25335261b270efcb")
	bob   = common.HexToAddress("0x28c6c06298d514db089934071355e5743bf21d60")
	miner = common.HexToAddress("0x95222290dd7278aa3ddd389cc1e1d165cc4bafe5")
)

func blockHash(n uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(0xb10c0000 + n))
}

// txHash derives a unique transaction hash from a block height and index.
func txHash(n uint64, i int) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(n<<16 | uint64(i) | 1<<60))
}

func blockJSON(n uint64, txs ...common.Hash) string {
	entries := make([]string, len(txs))
	for i, h := range txs {
		entries[i] = fmt.Sprintf(`{
			"hash": %q,
			"blockHash": %q,
			"blockNumber": %q,
			"transactionIndex": %q,
			"from": %q,
			"to": %q,
			"value": "0x0",
			"gas": "0x186a0",
			"gasPrice": "0x4a817c800",
			"nonce": %q,
			"input": "0xa9059cbb"
		}`, h.Hex(), blockHash(n).Hex(), hexcodec.EncodeUint64(n), hexcodec.EncodeUint64(uint64(i)),
			alice.Hex(), token.Hex(), hexcodec.EncodeUint64(uint64(i)))
	}
	return fmt.Sprintf(`{
		"number": %q,
		"hash": %q,
		"parentHash": %q,
		"timestamp": "0x6553f100",
		"miner": %q,
		"gasLimit": "0x1c9c380",
		"gasUsed": "0x5208",
		"baseFeePerGas": "0x7",
		"size": "0x220",
		"transactions": [%s]
	}`, hexcodec.EncodeUint64(n), blockHash(n).Hex(), blockHash(n-1).Hex(), miner.Hex(), strings.Join(entries, ","))
}

func transferLogJSON(index uint64, from, to common.Address, amount uint64) string {
	return fmt.Sprintf(`{
		"address": %q,
		"topics": [%q, %q, %q],
		"data": %q,
		"logIndex": %q
	}`, token.Hex(), erc20.TransferEventSignature.Hex(),
		common.BytesToHash(from.Bytes()).Hex(), common.BytesToHash(to.Bytes()).Hex(),
		common.BigToHash(new(big.Int).SetUint64(amount)).Hex(), hexcodec.EncodeUint64(index))
}

func receiptJSON(n uint64, h common.Hash, logs ...string) string {
	return fmt.Sprintf(`{
		"transactionHash": %q,
		"transactionIndex": "0x0",
		"blockHash": %q,
		"blockNumber": %q,
		"status": "0x1",
		"gasUsed": "0xfde8",
		"contractAddress": null,
		"logs": [%s]
	}`, h.Hex(), blockHash(n).Hex(), hexcodec.EncodeUint64(n), strings.Join(logs, ","))
}
