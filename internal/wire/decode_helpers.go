package wire

import (
	"github.com/dep2p/go-dht/pkg/types"
	"github.com/vmihailenco/msgpack/v5"
)

func decodeRawMap(raw msgpack.RawMessage) (map[string]msgpack.RawMessage, error) {
	var m map[string]msgpack.RawMessage
	if err := msgpack.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeInterfaceValue(raw msgpack.RawMessage) (interface{}, error) {
	var v interface{}
	if err := msgpack.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeString(raw msgpack.RawMessage) (string, error) {
	var s string
	if err := msgpack.Unmarshal(raw, &s); err != nil {
		return "", err
	}
	return s, nil
}

func decodeBool(raw msgpack.RawMessage) (bool, error) {
	var b bool
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return false, err
	}
	return b, nil
}

func decodeUint64(raw msgpack.RawMessage) (uint64, error) {
	var n uint64
	if err := msgpack.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func decodeInt64(raw msgpack.RawMessage) (int64, error) {
	var n int64
	if err := msgpack.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	return n, nil
}

func decodeUint64Array(raw msgpack.RawMessage) ([]uint64, error) {
	var arr []uint64
	if err := msgpack.Unmarshal(raw, &arr); err != nil {
		return nil, err
	}
	return arr, nil
}

func decodeBlob(raw msgpack.RawMessage) (types.Blob, error) {
	var b []byte
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return nil, err
	}
	return types.Blob(b), nil
}

func decodeFingerprintRaw(raw msgpack.RawMessage) (types.Fingerprint, error) {
	return types.FingerprintFromObject(raw)
}

// decodeTID accepts either a non-negative integer or an exactly-4-byte
// binary blob decoded as network-byte-order u32. Any other shape is a
// parse failure.
func decodeTID(raw msgpack.RawMessage) (uint32, error) {
	v, err := decodeInterfaceValue(raw)
	if err != nil {
		return 0, err
	}
	switch x := v.(type) {
	case int8, int16, int32, int64:
		n, err := decodeInt64(raw)
		if err != nil || n < 0 {
			return 0, ErrMalformedMessage
		}
		return uint32(n), nil
	case uint8, uint16, uint32, uint64:
		n, err := decodeUint64(raw)
		if err != nil {
			return 0, ErrMalformedMessage
		}
		return uint32(n), nil
	case []byte:
		if len(x) != 4 {
			return 0, ErrMalformedMessage
		}
		return uint32(x[0])<<24 | uint32(x[1])<<16 | uint32(x[2])<<8 | uint32(x[3]), nil
	default:
		return 0, ErrMalformedMessage
	}
}
