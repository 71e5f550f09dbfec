// Package mapper converts raw JSON-RPC results into the typed entities of
// internal/types. All functions are pure: they perform no I/O and keep no state.
//
// Required fields that are absent fail with ErrMissingField. Unknown fields are
// ignored so newer node versions keep working.
package mapper

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ava-labs/ethscraper/internal/types"
)

type rawBlock struct {
	Number       *string            `json:"number"`
	Hash         *string            `json:"hash"`
	ParentHash   *string            `json:"parentHash"`
	Timestamp    *string            `json:"timestamp"`
	Miner        *string            `json:"miner"`
	GasLimit     *string            `json:"gasLimit"`
	GasUsed      *string            `json:"gasUsed"`
	BaseFee      *string            `json:"baseFeePerGas"`
	Size         *string            `json:"size"`
	Transactions *[]json.RawMessage `json:"transactions"`
}

type rawTransaction struct {
	Hash             *string `json:"hash"`
	BlockHash        *string `json:"blockHash"`
	BlockNumber      *string `json:"blockNumber"`
	TransactionIndex *string `json:"transactionIndex"`
	From             *string `json:"from"`
	To               *string `json:"to"`
	Value            *string `json:"value"`
	Gas              *string `json:"gas"`
	GasPrice         *string `json:"gasPrice"`
	Nonce            *string `json:"nonce"`
	Input            *string `json:"input"`
}

type rawReceipt struct {
	TransactionHash  *string            `json:"transactionHash"`
	TransactionIndex *string            `json:"transactionIndex"`
	BlockHash        *string            `json:"blockHash"`
	BlockNumber      *string            `json:"blockNumber"`
	Status           *string            `json:"status"`
	ContractAddress  *string            `json:"contractAddress"`
	GasUsed          *string            `json:"gasUsed"`
	Logs             *[]json.RawMessage `json:"logs"`
}

type rawLog struct {
	Address          *string   `json:"address"`
	Topics           *[]string `json:"topics"`
	Data             *string   `json:"data"`
	LogIndex         *string   `json:"logIndex"`
	TransactionHash  *string   `json:"transactionHash"`
	TransactionIndex *string   `json:"transactionIndex"`
	BlockHash        *string   `json:"blockHash"`
	BlockNumber      *string   `json:"blockNumber"`
	Removed          bool      `json:"removed"`
}

func unmarshal(entity string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return &DecodeError{Entity: entity, Err: fmt.Errorf("%w: %w", ErrMalformedJSON, err)}
	}
	return nil
}

// MapBlock maps an eth_getBlockByNumber result requested with full transaction objects.
// Transaction entries that fail to map are recorded in MalformedTransactions and
// left out of Transactions; they do not fail the block.
func MapBlock(raw json.RawMessage) (*types.Block, error) {
	var rb rawBlock
	if err := unmarshal("block", raw, &rb); err != nil {
		return nil, err
	}

	f := fields{entity: "block"}
	b := &types.Block{
		Number:     f.uint64("number", rb.Number, true),
		Hash:       f.hash("hash", rb.Hash, true),
		ParentHash: f.hash("parentHash", rb.ParentHash, false),
		Timestamp:  f.uint64("timestamp", rb.Timestamp, false),
		Miner:      f.address("miner", rb.Miner, false),
		GasLimit:   f.uint64("gasLimit", rb.GasLimit, false),
		GasUsed:    f.uint64("gasUsed", rb.GasUsed, false),
		BaseFee:    f.quantity("baseFeePerGas", rb.BaseFee, false),
		Size:       f.uint64("size", rb.Size, false),
	}
	if rb.Transactions == nil {
		f.fail("transactions", ErrMissingField)
	}
	if f.err != nil {
		return nil, f.err
	}

	b.Transactions = make([]*types.Transaction, 0, len(*rb.Transactions))
	for i, rawTx := range *rb.Transactions {
		tx, err := mapTransaction(rawTx, b, uint64(i))
		if err != nil {
			b.MalformedTransactions = append(b.MalformedTransactions,
				&DecodeError{Entity: "block", Field: fmt.Sprintf("transactions[%d]", i), Err: err})
			continue
		}
		b.Transactions = append(b.Transactions, tx)
	}
	return b, nil
}

// MapTransaction maps a transaction object. A null or absent "to" denotes a
// contract creation and maps to a nil recipient.
func MapTransaction(raw json.RawMessage) (*types.Transaction, error) {
	return mapTransaction(raw, nil, 0)
}

// mapTransaction fills block coordinates the object leaves out from parent.
func mapTransaction(raw json.RawMessage, parent *types.Block, position uint64) (*types.Transaction, error) {
	var rt rawTransaction
	if err := unmarshal("transaction", raw, &rt); err != nil {
		return nil, err
	}

	f := fields{entity: "transaction"}
	tx := &types.Transaction{
		Hash:             f.hash("hash", rt.Hash, true),
		BlockHash:        f.hash("blockHash", rt.BlockHash, false),
		BlockNumber:      f.uint64("blockNumber", rt.BlockNumber, false),
		TransactionIndex: f.uint64("transactionIndex", rt.TransactionIndex, false),
		From:             f.address("from", rt.From, true),
		To:               f.optionalAddress("to", rt.To),
		Value:            f.quantity("value", rt.Value, false),
		Gas:              f.uint64("gas", rt.Gas, false),
		GasPrice:         f.quantity("gasPrice", rt.GasPrice, false),
		Nonce:            f.uint64("nonce", rt.Nonce, false),
		Input:            f.bytes("input", rt.Input, false),
	}
	if f.err != nil {
		return nil, f.err
	}
	if tx.Value == nil {
		tx.Value = new(big.Int)
	}
	if parent != nil {
		if rt.BlockHash == nil || *rt.BlockHash == "" {
			tx.BlockHash = parent.Hash
		}
		if rt.BlockNumber == nil || *rt.BlockNumber == "" {
			tx.BlockNumber = parent.Number
		}
		if rt.TransactionIndex == nil || *rt.TransactionIndex == "" {
			tx.TransactionIndex = position
		}
	}
	return tx, nil
}

// MapReceipt maps an eth_getTransactionReceipt result. Log entries that fail to
// map are recorded in MalformedLogs and left out of Logs; they do not fail the receipt.
func MapReceipt(raw json.RawMessage) (*types.Receipt, error) {
	var rr rawReceipt
	if err := unmarshal("receipt", raw, &rr); err != nil {
		return nil, err
	}

	f := fields{entity: "receipt"}
	r := &types.Receipt{
		TransactionHash:  f.hash("transactionHash", rr.TransactionHash, true),
		TransactionIndex: f.uint64("transactionIndex", rr.TransactionIndex, false),
		BlockHash:        f.hash("blockHash", rr.BlockHash, false),
		BlockNumber:      f.uint64("blockNumber", rr.BlockNumber, false),
		Status:           f.uint64("status", rr.Status, false),
		HasStatus:        rr.Status != nil && *rr.Status != "",
		ContractAddress:  f.optionalAddress("contractAddress", rr.ContractAddress),
		GasUsed:          f.uint64("gasUsed", rr.GasUsed, false),
	}
	if rr.Logs == nil {
		f.fail("logs", ErrMissingField)
	}
	if f.err != nil {
		return nil, f.err
	}

	r.Logs = make([]*types.Log, 0, len(*rr.Logs))
	for i, rawEntry := range *rr.Logs {
		l, err := mapLog(rawEntry, r, uint64(i))
		if err != nil {
			r.MalformedLogs = append(r.MalformedLogs,
				&DecodeError{Entity: "receipt", Field: fmt.Sprintf("logs[%d]", i), Err: err})
			continue
		}
		r.Logs = append(r.Logs, l)
	}
	return r, nil
}

// MapLog maps a log object, preserving topic order. An absent or malformed data
// field does not fail the log; it is reported in MalformedData.
func MapLog(raw json.RawMessage) (*types.Log, error) {
	return mapLog(raw, nil, 0)
}

// mapLog fills transaction coordinates the object leaves out from parent. Without
// a logIndex the entry's position in the receipt is used.
func mapLog(raw json.RawMessage, parent *types.Receipt, position uint64) (*types.Log, error) {
	var rl rawLog
	if err := unmarshal("log", raw, &rl); err != nil {
		return nil, err
	}

	f := fields{entity: "log"}
	l := &types.Log{
		Address:          f.address("address", rl.Address, true),
		Data:             []byte{},
		LogIndex:         f.uint64("logIndex", rl.LogIndex, false),
		TransactionHash:  f.hash("transactionHash", rl.TransactionHash, false),
		TransactionIndex: f.uint64("transactionIndex", rl.TransactionIndex, false),
		BlockHash:        f.hash("blockHash", rl.BlockHash, false),
		BlockNumber:      f.uint64("blockNumber", rl.BlockNumber, false),
		Removed:          rl.Removed,
	}
	if rl.Topics == nil {
		f.fail("topics", ErrMissingField)
	} else {
		l.Topics = make([]common.Hash, len(*rl.Topics))
		for i := range *rl.Topics {
			l.Topics[i] = f.hash(fmt.Sprintf("topics[%d]", i), &(*rl.Topics)[i], true)
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	// Data is left for the event decoder to judge.
	df := fields{entity: "log"}
	if data := df.bytes("data", rl.Data, true); df.err == nil {
		l.Data = data
	} else {
		l.MalformedData = df.err
	}

	if parent != nil {
		if rl.TransactionHash == nil || *rl.TransactionHash == "" {
			l.TransactionHash = parent.TransactionHash
		}
		if rl.TransactionIndex == nil || *rl.TransactionIndex == "" {
			l.TransactionIndex = parent.TransactionIndex
		}
		if rl.BlockHash == nil || *rl.BlockHash == "" {
			l.BlockHash = parent.BlockHash
		}
		if rl.BlockNumber == nil || *rl.BlockNumber == "" {
			l.BlockNumber = parent.BlockNumber
		}
		if rl.LogIndex == nil || *rl.LogIndex == "" {
			l.LogIndex = position
		}
	}
	return l, nil
}
