package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ava-labs/ethscraper/internal/chainclient/jsonrpc"
)

const (
	testTxHash = "0x2f1c5c2b44f771e942a8506148e256f94f1a464babc938ae0690c6e34cd79190"
	testToken  = "0xdac17f958d2ee523a2206206994597c13d831ec7"
	testFrom   = "0x0000000000000000000000000000000000000a11"
	testTo     = "0x0000000000000000000000000000000000000b0b"
)

// fakeNode answers the JSON-RPC methods a run uses from canned results.
type fakeNode struct {
	mu      sync.Mutex
	methods map[string]int
	results map[string]string
}

func newFakeNode() *fakeNode {
	block0Hash := common.BigToHash(common.Big1).Hex()
	block1Hash := common.BigToHash(common.Big2).Hex()
	return &fakeNode{
		methods: map[string]int{},
		results: map[string]string{
			"eth_chainId":     `"0x1"`,
			"eth_blockNumber": `"0x1"`,
			"eth_getBlockByNumber:0x0": fmt.Sprintf(`{
				"number": "0x0", "hash": %q, "parentHash": %q, "timestamp": "0x6553f100",
				"miner": %q, "gasLimit": "0x1c9c380", "gasUsed": "0x5208", "size": "0x220",
				"transactions": [{
					"hash": %q, "blockHash": %q, "blockNumber": "0x0", "transactionIndex": "0x0",
					"from": %q, "to": %q, "value": "0x0", "gas": "0x186a0", "gasPrice": "0x1",
					"nonce": "0x0", "input": "0xa9059cbb"
				}]
			}`, block0Hash, common.Hash{}.Hex(), testFrom, testTxHash, block0Hash, testFrom, testToken),
			"eth_getBlockByNumber:0x1": fmt.Sprintf(`{
				"number": "0x1", "hash": %q, "parentHash": %q, "timestamp": "0x6553f10c",
				"miner": %q, "gasLimit": "0x1c9c380", "gasUsed": "0x0", "size": "0x220",
				"transactions": []
			}`, block1Hash, block0Hash, testFrom),
			"eth_getTransactionReceipt:" + testTxHash: fmt.Sprintf(`{
				"transactionHash": %q, "transactionIndex": "0x0", "blockHash": %q, "blockNumber": "0x0",
				"status": "0x1", "gasUsed": "0x5208", "contractAddress": null,
				"logs": [{
					"address": %q,
					"topics": [
						"0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
						%q, %q
					],
					"data": "0x00000000000000000000000000000000000000000000000000000000000000fa",
					"logIndex": "0x0"
				}]
			}`, testTxHash, block0Hash, testToken,
				common.BytesToHash(common.HexToAddress(testFrom).Bytes()).Hex(),
				common.BytesToHash(common.HexToAddress(testTo).Bytes()).Hex()),
		},
	}
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
		Params []any           `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := req.Method
	if len(req.Params) > 0 {
		key = fmt.Sprintf("%s:%v", req.Method, req.Params[0])
	}
	n.mu.Lock()
	n.methods[req.Method]++
	result, ok := n.results[key]
	n.mu.Unlock()
	if !ok {
		result = "null"
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)
}

func (n *fakeNode) calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.methods[method]
}

func readRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec), scanner.Text())
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())
	return records
}

func countKinds(records []map[string]any) map[string]int {
	kinds := map[string]int{}
	for _, r := range records {
		kinds[r["type"].(string)]++
	}
	return kinds
}

func TestRun_ScrapesRangeToJSONLines(t *testing.T) {
	node := newFakeNode()
	srv := httptest.NewServer(node)
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "records.jsonl")
	err := newApp().Run([]string{
		"ethscraper", "run",
		"--rpc-url", srv.URL,
		"--output", output,
		"--metrics-host", "127.0.0.1",
		"--metrics-port", "0",
	})
	require.NoError(t, err)

	records := readRecords(t, output)
	assert.Equal(t, map[string]int{"block": 2, "transaction": 1, "erc20_transfer": 1}, countKinds(records))
	for _, r := range records {
		if r["type"] == "erc20_transfer" {
			assert.Equal(t, "250", r["value"])
			assert.Equal(t, strings.ToLower(testToken), strings.ToLower(r["token_address"].(string)))
		}
	}

	// Chain id and end block come from the node when not given.
	assert.Equal(t, 1, node.calls("eth_chainId"))
	assert.GreaterOrEqual(t, node.calls("eth_blockNumber"), 1)
	assert.Equal(t, 2, node.calls("eth_getBlockByNumber"))
	assert.Equal(t, 1, node.calls("eth_getTransactionReceipt"))
}

func TestRun_ExportToggles(t *testing.T) {
	node := newFakeNode()
	srv := httptest.NewServer(node)
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "records.jsonl")
	err := newApp().Run([]string{
		"ethscraper", "run",
		"--rpc-url", srv.URL,
		"--chain-id", "1",
		"--start-block", "0",
		"--end-block", "0",
		"--export-blocks=false",
		"--export-transactions=false",
		"--output", output,
		"--metrics-host", "127.0.0.1",
		"--metrics-port", "0",
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"erc20_transfer": 1}, countKinds(readRecords(t, output)))
	assert.Equal(t, 0, node.calls("eth_chainId"))
	assert.Equal(t, 0, node.calls("eth_blockNumber"))
}

func TestRun_ReversedRangeWritesNothing(t *testing.T) {
	node := newFakeNode()
	srv := httptest.NewServer(node)
	defer srv.Close()

	output := filepath.Join(t.TempDir(), "records.jsonl")
	err := newApp().Run([]string{
		"ethscraper", "run",
		"--rpc-url", srv.URL,
		"--chain-id", "1",
		"--start-block", "5",
		"--end-block", "1",
		"--output", output,
		"--metrics-host", "127.0.0.1",
		"--metrics-port", "0",
	})
	require.NoError(t, err)
	assert.Empty(t, readRecords(t, output))
	assert.Equal(t, 0, node.calls("eth_getBlockByNumber"))
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ETHSCRAPER_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("ETHSCRAPER_TEST_VALUE", "")
	require.NoError(t, os.Unsetenv("ETHSCRAPER_TEST_VALUE"))

	app := newApp()
	app.Commands = nil
	app.Action = func(*cli.Context) error { return nil }
	require.NoError(t, app.Run([]string{"ethscraper", "--env-file", path}))
	assert.Equal(t, "from-file", os.Getenv("ETHSCRAPER_TEST_VALUE"))

	err := app.Run([]string{"ethscraper", "--env-file", filepath.Join(t.TempDir(), "missing")})
	require.ErrorContains(t, err, "failed to load env file")
}

type mockCheckpointer struct {
	mock.Mock
}

func (m *mockCheckpointer) Initialize(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockCheckpointer) Write(ctx context.Context, evmChainID uint64, lowest uint64) error {
	return m.Called(ctx, evmChainID, lowest).Error(0)
}

func (m *mockCheckpointer) Read(ctx context.Context, evmChainID uint64) (uint64, bool, error) {
	args := m.Called(ctx, evmChainID)
	return args.Get(0).(uint64), args.Bool(1), args.Error(2)
}

func TestResolveRange(t *testing.T) {
	node := newFakeNode()
	srv := httptest.NewServer(node)
	defer srv.Close()

	transport, err := jsonrpc.New(t.Context(), srv.URL)
	require.NoError(t, err)
	defer transport.Close()

	sugar := zap.NewNop().Sugar()

	t.Run("explicit bounds", func(t *testing.T) {
		start, end, err := resolveRange(t.Context(), &Config{Start: 3, StartSet: true, End: 9, EndSet: true}, transport, nil, sugar)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), start)
		assert.Equal(t, uint64(9), end)
	})

	t.Run("resume from checkpoint", func(t *testing.T) {
		cp := &mockCheckpointer{}
		cp.On("Read", mock.Anything, uint64(1)).Return(uint64(42), true, nil).Once()
		start, end, err := resolveRange(t.Context(), &Config{EVMChainID: 1, End: 50, EndSet: true}, transport, cp, sugar)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), start)
		assert.Equal(t, uint64(50), end)
		cp.AssertExpectations(t)
	})

	t.Run("missing checkpoint starts at zero", func(t *testing.T) {
		cp := &mockCheckpointer{}
		cp.On("Read", mock.Anything, uint64(1)).Return(uint64(0), false, nil).Once()
		start, end, err := resolveRange(t.Context(), &Config{EVMChainID: 1}, transport, cp, sugar)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), start)
		assert.Equal(t, uint64(1), end)
	})

	t.Run("checkpoint read failure", func(t *testing.T) {
		cp := &mockCheckpointer{}
		cp.On("Read", mock.Anything, uint64(1)).Return(uint64(0), false, assert.AnError).Once()
		_, _, err := resolveRange(t.Context(), &Config{EVMChainID: 1}, transport, cp, sugar)
		require.ErrorIs(t, err, assert.AnError)
	})
}
