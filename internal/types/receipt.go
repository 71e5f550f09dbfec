package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Receipt is a mapped eth_getTransactionReceipt result. It lives only for the
// duration of one receipt-processing step and is never emitted.
type Receipt struct {
	TransactionHash  common.Hash
	TransactionIndex uint64
	BlockHash        common.Hash
	BlockNumber      uint64
	// Status is 1 for success and 0 for failure. Pre-Byzantium receipts carry
	// a state root instead, in which case HasStatus is false.
	Status          uint64
	HasStatus       bool
	ContractAddress *common.Address
	GasUsed         uint64
	Logs            []*Log
	// MalformedLogs holds the decode errors of log entries that could not be
	// mapped. They are kept out of Logs so the remaining entries stay usable.
	MalformedLogs []error
}

type Log struct {
	Address common.Address
	Topics  []common.Hash
	Data    hexutil.Bytes
	// MalformedData is set when the data field was absent or not valid hex.
	// Data is then empty. Whether that matters depends on the event.
	MalformedData    error
	LogIndex         uint64
	TransactionHash  common.Hash
	TransactionIndex uint64
	BlockHash        common.Hash
	BlockNumber      uint64
	Removed          bool
}
