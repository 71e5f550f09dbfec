package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type Transaction struct {
	Hash             common.Hash     `json:"hash"`
	BlockHash        common.Hash     `json:"block_hash"`
	BlockNumber      uint64          `json:"block_number"`
	TransactionIndex uint64          `json:"transaction_index"`
	From             common.Address  `json:"from_address"`
	To               *common.Address `json:"to_address"` // nil for contract creation
	Value            *big.Int        `json:"value"`
	Gas              uint64          `json:"gas"`
	GasPrice         *big.Int        `json:"gas_price,omitempty"`
	Nonce            uint64          `json:"nonce"`
	Input            hexutil.Bytes   `json:"input"`
}

func (*Transaction) Kind() RecordKind { return KindTransaction }

func (t *Transaction) Key() string { return t.Hash.Hex() }

// IsContractCreation reports whether the transaction has no recipient.
func (t *Transaction) IsContractCreation() bool { return t.To == nil }
