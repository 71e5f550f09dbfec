package mapper

import (
	"errors"
	"fmt"
)

var (
	ErrMissingField  = errors.New("missing field")
	ErrMalformedJSON = errors.New("malformed json")
)

// DecodeError reports which field of which entity failed to map. It wraps
// ErrMissingField, ErrMalformedJSON or one of the hexcodec sentinel errors.
type DecodeError struct {
	Entity string
	Field  string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("decode %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
