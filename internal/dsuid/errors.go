package dsuid

import "errors"

// Sentinel errors for dSUID parsing and derivation.
var (
	// ErrInvalidLength indicates the input is not 16 or 17 bytes (32 or 34 hex characters).
	ErrInvalidLength = errors.New("dsuid: invalid length")

	// ErrInvalidHex indicates the string contains non-hex characters.
	ErrInvalidHex = errors.New("dsuid: invalid hex")

	// ErrIndexOutOfRange indicates a sub-device index outside 0..255.
	ErrIndexOutOfRange = errors.New("dsuid: sub-device index out of range")

	// ErrInvalidMAC indicates a MAC address that is not six bytes.
	ErrInvalidMAC = errors.New("dsuid: invalid MAC address")

	// ErrInvalidEPC indicates SGTIN-96 or GID-96 components out of range.
	ErrInvalidEPC = errors.New("dsuid: invalid EPC96 component")

	// ErrEmptyAddress indicates an independent identifier was requested without an address.
	ErrEmptyAddress = errors.New("dsuid: empty module address")
)
