package types

import "errors"

var (
	// ErrInvalidFingerprint is returned when a buffer is not exactly 20 bytes.
	ErrInvalidFingerprint = errors.New("types: fingerprint must be 20 bytes")

	// ErrInvalidValue is returned when a Value fails to decode.
	ErrInvalidValue = errors.New("types: invalid value payload")
)
