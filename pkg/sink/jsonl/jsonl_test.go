package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/ethscraper/internal/types"
)

func TestSink_Emit(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := New(&buf)

	require.NoError(t, s.Emit(t.Context(), &types.Block{Number: 17, Hash: common.HexToHash("0xaa")}))
	require.NoError(t, s.Emit(t.Context(), &types.ERC20Transfer{
		TokenAddress:    common.HexToAddress("0x01"),
		Amount:          uint256.NewInt(1000),
		TransactionHash: common.HexToHash("0xbb"),
		LogIndex:        3,
	}))
	require.NoError(t, s.Emit(t.Context(), &types.RPCError{URL: "http://node", Code: -32000, Message: "not found"}))

	// Buffered until flushed.
	assert.Zero(t, buf.Len())
	require.NoError(t, s.Close(t.Context()))

	var kinds []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		kinds = append(kinds, rec["type"].(string))
		if rec["type"] == "erc20_transfer" {
			assert.Equal(t, "1000", rec["value"])
			assert.EqualValues(t, 3, rec["log_index"])
		}
		if rec["type"] == "err" {
			assert.EqualValues(t, -32000, rec["code"])
			assert.Equal(t, "http://node", rec["url"])
		}
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, []string{"block", "erc20_transfer", "err"}, kinds)
}

func TestSink_EmitAfterClose(t *testing.T) {
	t.Parallel()

	s := New(&bytes.Buffer{})
	require.NoError(t, s.Close(t.Context()))
	require.NoError(t, s.Close(t.Context()))
	require.ErrorIs(t, s.Emit(t.Context(), &types.Block{}), ErrClosed)
}

func TestSink_ConcurrentLinesStayWhole(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	s := New(&buf)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Emit(t.Context(), &types.Block{Number: uint64(i)}))
		}()
	}
	wg.Wait()
	require.NoError(t, s.Flush())

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 50)
	for _, l := range lines {
		assert.True(t, json.Valid(l), string(l))
	}
}

func TestOpen_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.jsonl")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Emit(t.Context(), &types.Block{Number: 1}))
	require.NoError(t, s.Close(t.Context()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"block"`)
	assert.Contains(t, string(data), `"number":1`)
}
