package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ERC20Transfer is a decoded Transfer(address,address,uint256) event.
// The source transaction hash and log index form its natural key.
type ERC20Transfer struct {
	TokenAddress    common.Address `json:"token_address"`
	From            common.Address `json:"from_address"`
	To              common.Address `json:"to_address"`
	Amount          *uint256.Int   `json:"value"`
	TransactionHash common.Hash    `json:"transaction_hash"`
	LogIndex        uint64         `json:"log_index"`
	BlockNumber     uint64         `json:"block_number"`
	BlockHash       common.Hash    `json:"block_hash"`
}

func (*ERC20Transfer) Kind() RecordKind { return KindERC20Transfer }

func (t *ERC20Transfer) Key() string {
	return fmt.Sprintf("%s:%d", t.TransactionHash.Hex(), t.LogIndex)
}
