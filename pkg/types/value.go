package types

import "github.com/vmihailenco/msgpack/v5"

// Value is an opaque, typed payload addressable by (Owner, ID). The codec
// only sizes and reassembles it — it never interprets Data.
type Value struct {
	Owner Fingerprint `msgpack:"owner,omitempty"`
	ID    uint64      `msgpack:"id,omitempty"`
	Data  Blob        `msgpack:"data"`
}

// Size returns the length of the opaque Data payload.
func (v Value) Size() int { return len(v.Data) }

// Decode parses a single msgpack-encoded Value atom, the shape a reassembled
// fragment buffer or an inline "values" array entry is expected to carry.
func (Value) Decode(o msgpack.RawMessage) (Value, error) {
	var v Value
	if err := msgpack.Unmarshal(o, &v); err != nil {
		return Value{}, ErrInvalidValue
	}
	return v, nil
}
