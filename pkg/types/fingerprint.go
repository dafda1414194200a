package types

import (
	"bytes"

	"github.com/mr-tron/base58"
	"github.com/vmihailenco/msgpack/v5"
)

// FingerprintSize is the length in bytes of a Fingerprint (160 bits).
const FingerprintSize = 20

// Fingerprint is an opaque 160-bit identifier used for node ids, info-hashes
// and lookup targets.
type Fingerprint [FingerprintSize]byte

// EmptyFingerprint is the zero Fingerprint.
var EmptyFingerprint Fingerprint

// FingerprintFromBytes builds a Fingerprint from a raw 20-byte buffer.
func FingerprintFromBytes(b []byte) (Fingerprint, error) {
	var f Fingerprint
	if len(b) != FingerprintSize {
		return f, ErrInvalidFingerprint
	}
	copy(f[:], b)
	return f, nil
}

// FingerprintFromObject decodes a single msgpack bin or str atom into a
// Fingerprint. Both wire shapes are accepted since encoders disagree on
// which one to use for a raw 20-byte identifier.
func FingerprintFromObject(o msgpack.RawMessage) (Fingerprint, error) {
	var v interface{}
	if err := msgpack.Unmarshal(o, &v); err != nil {
		return EmptyFingerprint, err
	}
	switch b := v.(type) {
	case []byte:
		return FingerprintFromBytes(b)
	case string:
		return FingerprintFromBytes([]byte(b))
	default:
		return EmptyFingerprint, ErrInvalidFingerprint
	}
}

// Bytes returns the Fingerprint's byte slice.
func (f Fingerprint) Bytes() []byte {
	return f[:]
}

// Equal reports whether two Fingerprints are identical.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f == other
}

// IsEmpty reports whether f is the zero Fingerprint.
func (f Fingerprint) IsEmpty() bool {
	return f == EmptyFingerprint
}

// Xor returns the bytewise XOR distance between f and other.
func (f Fingerprint) Xor(other Fingerprint) Fingerprint {
	var d Fingerprint
	for i := range d {
		d[i] = f[i] ^ other[i]
	}
	return d
}

// Less reports whether f is closer to target than other is, under the XOR
// metric — used to order candidate nodes during a lookup.
func (f Fingerprint) Less(other, target Fingerprint) bool {
	da := f.Xor(target)
	db := other.Xor(target)
	return bytes.Compare(da[:], db[:]) < 0
}

// String renders the Fingerprint as base58 for debug output.
func (f Fingerprint) String() string {
	if f.IsEmpty() {
		return ""
	}
	return base58.Encode(f[:])
}

// EncodeMsgpack writes f as a raw 20-byte binary, not an array of integers.
func (f Fingerprint) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeBytes(f[:])
}

// DecodeMsgpack reads f back from a raw binary of exactly FingerprintSize
// bytes.
func (f *Fingerprint) DecodeMsgpack(dec *msgpack.Decoder) error {
	b, err := dec.DecodeBytes()
	if err != nil {
		return err
	}
	if len(b) != FingerprintSize {
		return ErrInvalidFingerprint
	}
	copy(f[:], b)
	return nil
}
