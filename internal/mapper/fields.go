package mapper

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ava-labs/ethscraper/pkg/hexcodec"
)

// fields decodes the string fields of one raw entity and keeps the first
// failure, so mapping code can read as a flat list of assignments.
type fields struct {
	entity string
	err    error
}

func (f *fields) fail(field string, err error) {
	if f.err == nil {
		f.err = &DecodeError{Entity: f.entity, Field: field, Err: err}
	}
}

func (f *fields) present(field string, s *string) bool {
	if s == nil {
		f.fail(field, ErrMissingField)
		return false
	}
	return true
}

func (f *fields) uint64(field string, s *string, required bool) uint64 {
	if s == nil || *s == "" {
		if required {
			f.fail(field, ErrMissingField)
		}
		return 0
	}
	v, err := hexcodec.DecodeUint64(*s)
	if err != nil {
		f.fail(field, err)
	}
	return v
}

func (f *fields) quantity(field string, s *string, required bool) *big.Int {
	if s == nil || *s == "" {
		if required {
			f.fail(field, ErrMissingField)
		}
		return nil
	}
	v, err := hexcodec.DecodeQuantity(*s)
	if err != nil {
		f.fail(field, err)
	}
	return v
}

func (f *fields) hash(field string, s *string, required bool) common.Hash {
	if s == nil || *s == "" {
		if required {
			f.fail(field, ErrMissingField)
		}
		return common.Hash{}
	}
	v, err := hexcodec.DecodeHash(*s)
	if err != nil {
		f.fail(field, err)
	}
	return v
}

func (f *fields) address(field string, s *string, required bool) common.Address {
	if s == nil || *s == "" {
		if required {
			f.fail(field, ErrMissingField)
		}
		return common.Address{}
	}
	v, err := hexcodec.DecodeAddress(*s)
	if err != nil {
		f.fail(field, err)
	}
	return v
}

// optionalAddress returns nil for an absent or null address.
func (f *fields) optionalAddress(field string, s *string) *common.Address {
	if s == nil || *s == "" {
		return nil
	}
	v, err := hexcodec.DecodeAddress(*s)
	if err != nil {
		f.fail(field, err)
		return nil
	}
	return &v
}

func (f *fields) bytes(field string, s *string, required bool) []byte {
	if s == nil {
		if required {
			f.fail(field, ErrMissingField)
		}
		return []byte{}
	}
	v, err := hexcodec.DecodeBytes(*s)
	if err != nil {
		f.fail(field, err)
	}
	return v
}
