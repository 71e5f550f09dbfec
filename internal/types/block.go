package types

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Block is a mapped eth_getBlockByNumber result with its transactions embedded.
type Block struct {
	Number       uint64         `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parent_hash"`
	Timestamp    uint64         `json:"timestamp"`
	Miner        common.Address `json:"miner"`
	GasLimit     uint64         `json:"gas_limit"`
	GasUsed      uint64         `json:"gas_used"`
	BaseFee      *big.Int       `json:"base_fee_per_gas,omitempty"`
	Size         uint64         `json:"size"`
	Transactions []*Transaction `json:"-"`
	// MalformedTransactions holds the decode errors of transaction entries that
	// could not be mapped. They are kept out of Transactions.
	MalformedTransactions []error `json:"-"`
}

func (*Block) Kind() RecordKind { return KindBlock }

func (b *Block) Key() string { return strconv.FormatUint(b.Number, 10) }

// TransactionCount is the number of transactions the node reported for the
// block, malformed entries included.
func (b *Block) TransactionCount() int {
	return len(b.Transactions) + len(b.MalformedTransactions)
}

// MarshalJSON renders the block record with a transaction count and the
// hashes of the mapped transactions in place of the embedded transactions,
// which are emitted as records of their own.
func (b *Block) MarshalJSON() ([]byte, error) {
	type alias Block
	hashes := make([]common.Hash, len(b.Transactions))
	for i, tx := range b.Transactions {
		hashes[i] = tx.Hash
	}
	return json.Marshal(struct {
		*alias
		TransactionCount  int           `json:"transaction_count"`
		TransactionHashes []common.Hash `json:"transaction_hashes"`
	}{
		alias:             (*alias)(b),
		TransactionCount:  b.TransactionCount(),
		TransactionHashes: hashes,
	})
}
