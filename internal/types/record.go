package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type RecordKind string

const (
	KindBlock         RecordKind = "block"
	KindTransaction   RecordKind = "transaction"
	KindERC20Transfer RecordKind = "erc20_transfer"
	KindRPCError      RecordKind = "err"
)

// Record is a unit of scraper output.
type Record interface {
	Kind() RecordKind
	// Key identifies the record within its kind. Sinks use it for partitioning
	// and deduplication.
	Key() string
}

// RPCError is emitted in place of domain data when the node answers a request
// with a JSON-RPC error envelope.
type RPCError struct {
	URL     string `json:"url"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Method  string `json:"method"`
	// Subject is the block number or transaction hash the request was about.
	Subject string `json:"subject"`
}

func (*RPCError) Kind() RecordKind { return KindRPCError }

func (e *RPCError) Key() string { return e.Method + ":" + e.Subject }

// MarshalRecord encodes a record as a JSON object tagged with its kind under "type".
func MarshalRecord(r Record) ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal %s record: %w", r.Kind(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("marshal %s record: not a JSON object", r.Kind())
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(r.Kind()) + 12)
	buf.WriteString(`{"type":`)
	kind, _ := json.Marshal(r.Kind())
	buf.Write(kind)
	if len(body) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(body[1:])
	return buf.Bytes(), nil
}
