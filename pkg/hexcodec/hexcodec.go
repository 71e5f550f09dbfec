// Package hexcodec decodes and encodes the 0x-prefixed hex strings used by the
// Ethereum JSON-RPC API.
//
// Quantities are unsigned integers of arbitrary width. Leading zeros are
// accepted on decode since log payloads carry zero-padded 32-byte words, while
// encoding always produces the minimal form expected by nodes.
package hexcodec

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrMalformedHex         = errors.New("malformed hex")
	ErrInvalidAddressLength = errors.New("invalid address length")
	ErrInvalidHashLength    = errors.New("invalid hash length")
)

// addressPadding is the number of leading zero bytes of an address packed into a 32-byte word.
const addressPadding = common.HashLength - common.AddressLength

func digits(s string) (string, error) {
	if len(s) < 2 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return "", fmt.Errorf("%w: missing 0x prefix: %q", ErrMalformedHex, s)
	}
	d := s[2:]
	if d == "" {
		return "", fmt.Errorf("%w: no digits after prefix", ErrMalformedHex)
	}
	for i := 0; i < len(d); i++ {
		if !isHexDigit(d[i]) {
			return "", fmt.Errorf("%w: invalid character %q at position %d", ErrMalformedHex, d[i], i+2)
		}
	}
	return d, nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// DecodeQuantity parses a 0x-prefixed hex string into a non-negative integer.
func DecodeQuantity(s string) (*big.Int, error) {
	d, err := digits(s)
	if err != nil {
		return nil, err
	}
	v, ok := new(big.Int).SetString(d, 16)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMalformedHex, s)
	}
	return v, nil
}

// DecodeUint64 parses a 0x-prefixed hex quantity that must fit into 64 bits.
func DecodeUint64(s string) (uint64, error) {
	d, err := digits(s)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(d, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q exceeds 64 bits", ErrMalformedHex, s)
	}
	return v, nil
}

// EncodeQuantity renders v as a minimal 0x-prefixed hex string. A nil value encodes as 0x0.
func EncodeQuantity(v *big.Int) string {
	if v == nil {
		return "0x0"
	}
	return hexutil.EncodeBig(v)
}

// EncodeUint64 renders v as a minimal 0x-prefixed hex string.
func EncodeUint64(v uint64) string {
	return hexutil.EncodeUint64(v)
}

// DecodeBytes decodes an even-length 0x-prefixed byte string. "0x" decodes to an empty slice.
func DecodeBytes(s string) ([]byte, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHex, err)
	}
	return b, nil
}

// DecodeAddress decodes a hex string that must hold exactly 20 bytes.
func DecodeAddress(s string) (common.Address, error) {
	b, err := DecodeBytes(s)
	if err != nil {
		return common.Address{}, err
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAddressLength, len(b), common.AddressLength)
	}
	return common.BytesToAddress(b), nil
}

// DecodeHash decodes a hex string that must hold exactly 32 bytes.
func DecodeHash(s string) (common.Hash, error) {
	b, err := DecodeBytes(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHashLength, len(b), common.HashLength)
	}
	return common.BytesToHash(b), nil
}

// AddressFromWord extracts an address from a 32-byte word such as an indexed log topic.
// The 12 leading bytes must be zero padding.
func AddressFromWord(w common.Hash) (common.Address, error) {
	for i := 0; i < addressPadding; i++ {
		if w[i] != 0 {
			return common.Address{}, fmt.Errorf(
				"%w: word %s has %d significant bytes",
				ErrInvalidAddressLength, w.Hex(), common.HashLength-i,
			)
		}
	}
	return common.BytesToAddress(w[addressPadding:]), nil
}
