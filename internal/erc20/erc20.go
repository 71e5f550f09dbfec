// Package erc20 extracts ERC-20 Transfer events from transaction receipts.
//
// Events are recognized by their first topic alone. Tokens that emit a
// differently shaped Transfer event are skipped rather than rejected.
package erc20

import (
	"errors"
	"fmt"
	"iter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/ava-labs/ethscraper/internal/types"
	"github.com/ava-labs/ethscraper/pkg/hexcodec"
)

// TransferEventSignature is keccak256("Transfer(address,address,uint256)").
var TransferEventSignature = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

// transferTopics is the signature plus the indexed from and to addresses.
const transferTopics = 3

var (
	ErrNotTransfer           = errors.New("log is not an erc20 transfer")
	ErrMalformedTransferData = errors.New("malformed transfer data")
	// ErrInvalidAddressLength is returned when an indexed topic does not hold a left-padded address.
	ErrInvalidAddressLength = hexcodec.ErrInvalidAddressLength
)

// IsTransfer reports whether the log carries the Transfer signature and enough topics.
func IsTransfer(l *types.Log) bool {
	return len(l.Topics) >= transferTopics && l.Topics[0] == TransferEventSignature
}

// DecodeTransfer decodes a single log emitted during the transaction of r.
func DecodeTransfer(r *types.Receipt, l *types.Log) (*types.ERC20Transfer, error) {
	if !IsTransfer(l) {
		return nil, ErrNotTransfer
	}

	from, err := hexcodec.AddressFromWord(l.Topics[1])
	if err != nil {
		return nil, fmt.Errorf("log %d from topic: %w", l.LogIndex, err)
	}
	to, err := hexcodec.AddressFromWord(l.Topics[2])
	if err != nil {
		return nil, fmt.Errorf("log %d to topic: %w", l.LogIndex, err)
	}
	if l.MalformedData != nil {
		return nil, fmt.Errorf("%w: log %d: %w", ErrMalformedTransferData, l.LogIndex, l.MalformedData)
	}
	if len(l.Data) != common.HashLength {
		return nil, fmt.Errorf("%w: log %d carries %d data bytes, want %d",
			ErrMalformedTransferData, l.LogIndex, len(l.Data), common.HashLength)
	}

	return &types.ERC20Transfer{
		TokenAddress:    l.Address,
		From:            from,
		To:              to,
		Amount:          new(uint256.Int).SetBytes32(l.Data),
		TransactionHash: r.TransactionHash,
		LogIndex:        l.LogIndex,
		BlockNumber:     r.BlockNumber,
		BlockHash:       r.BlockHash,
	}, nil
}

// FilterTransfers lazily yields the transfers of a receipt in log order.
// Logs that are not transfers are skipped. A transfer log that fails to decode
// yields a nil transfer with its error and iteration continues with the next log.
// The sequence may be iterated any number of times.
func FilterTransfers(r *types.Receipt) iter.Seq2[*types.ERC20Transfer, error] {
	return func(yield func(*types.ERC20Transfer, error) bool) {
		for _, l := range r.Logs {
			if !IsTransfer(l) {
				continue
			}
			if !yield(DecodeTransfer(r, l)) {
				return
			}
		}
	}
}

// Collect drains FilterTransfers into slices.
func Collect(r *types.Receipt) ([]*types.ERC20Transfer, []error) {
	var (
		transfers []*types.ERC20Transfer
		errs      []error
	)
	for t, err := range FilterTransfers(r) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		transfers = append(transfers, t)
	}
	return transfers, errs
}
