// Package codec implements the self-describing wire encoding diffs and
// arguments use to cross the network as opaque byte strings: the
// encoding underneath must preserve signed/unsigned ints, 32/64-bit
// floats, length-prefixed strings, arrays, and maps keyed by string or
// integer.
//
// Jubatus's real wire protocol is MessagePack-RPC; this package wraps
// vmihailenco/msgpack so the Go implementation stays faithful to the
// original transport instead of inventing a bespoke format.
package codec

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dreamware/jubatus/internal/jerrors"
)

// Marshal encodes v into the wire format used for diffs, arguments, and
// pack() payloads.
func Marshal(v any) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, jerrors.Wrap(jerrors.Serialization, "codec.Marshal", err, "encode failed")
	}
	return b, nil
}

// Unmarshal decodes b into v, returning a jerrors.Serialization error on
// malformed input, the same contract unpack() must honor.
func Unmarshal(b []byte, v any) error {
	if err := msgpack.Unmarshal(b, v); err != nil {
		return jerrors.Wrap(jerrors.Serialization, "codec.Unmarshal", err, "decode failed")
	}
	return nil
}

// Envelope is the 2-element pack() shape used for persisted LSH models:
// [raw_row_store, hash_index]. Column-table models (model.Anomaly) do not
// use it; they pack the table's rows directly.
type Envelope struct {
	_msgpack struct{} `msgpack:",as_array"` // encode fields positionally
	First    []byte
	Second   []byte
}

// MarshalEnvelope encodes a two-part pack() payload.
func MarshalEnvelope(first, second []byte) ([]byte, error) {
	return Marshal(&Envelope{First: first, Second: second})
}

// UnmarshalEnvelope decodes a two-part pack() payload, rejecting anything
// that isn't exactly a 2-element sequence: unpack() requires the same
// 2-element shape and rejects otherwise.
func UnmarshalEnvelope(b []byte) (first, second []byte, err error) {
	var parts []msgpack.RawMessage
	if uerr := Unmarshal(b, &parts); uerr != nil {
		return nil, nil, uerr
	}
	if len(parts) != 2 {
		return nil, nil, jerrors.New(jerrors.Serialization, "codec.UnmarshalEnvelope",
			"expected a 2-element sequence, got %d elements", len(parts))
	}
	if uerr := Unmarshal(parts[0], &first); uerr != nil {
		return nil, nil, uerr
	}
	if uerr := Unmarshal(parts[1], &second); uerr != nil {
		return nil, nil, uerr
	}
	return first, second, nil
}
