package dsuid

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Size constants of the binary representation.
const (
	// Size is the length of a dSUID in bytes.
	Size = 17

	// baseSize is the length of the shared base (UUID or EPC96 layout).
	baseSize = 16

	// MaxSubdeviceIndex is the largest sub-device index byte.
	MaxSubdeviceIndex = 255
)

// EPC96 headers detected in byte 0 when bytes 6..9 are zero.
const (
	sgtin96Header = 0x30
	gid96Header   = 0x35
)

// Well-known UUIDv5 namespaces.
var (
	NamespaceGS1128  = uuid.MustParse("8ca838d5-4c40-47cc-bafa-37ac89658962")
	NamespaceEnOcean = uuid.MustParse("0ba94a7b-7c92-4dab-b8e3-5fe09e83d0f3")
	NamespaceVDC     = uuid.MustParse("9888dd3d-b345-4109-b088-2673306d0c65")
	NamespaceVDSM    = uuid.MustParse("195de5c0-902f-4b71-a706-b43b80765e3d")

	// NamespaceModule seeds independent identifiers of detachable modules.
	// It is itself a UUIDv5 inside NamespaceVDC so it can be recomputed anywhere.
	NamespaceModule = uuid.NewSHA1(NamespaceVDC, []byte("detachable-module"))
)

// Kind classifies the layout of the 16-byte base.
type Kind int

// Base layouts.
const (
	KindUndefined Kind = iota
	KindUUID
	KindSGTIN
	KindGID
	KindOther
)

// String returns the layout name.
func (k Kind) String() string {
	switch k {
	case KindUUID:
		return "uuid"
	case KindSGTIN:
		return "sgtin96"
	case KindGID:
		return "gid96"
	case KindOther:
		return "epc96"
	default:
		return "undefined"
	}
}

// DSUID is a 17-byte digitalSTROM unique identifier.
//
// The zero value is the empty identifier. DSUID is comparable and can be
// used as a map key.
type DSUID [Size]byte

// Empty is the all-zero identifier.
var Empty DSUID

// Parse decodes a dSUID from its hex representation.
//
// It accepts 34 hex characters (full dSUID) or a 32-character UUID with or
// without dashes, in which case the sub-device index is 0.
//
// Parameters:
//   - s: Hex string, case-insensitive
//
// Returns:
//   - DSUID: Parsed identifier
//   - error: ErrInvalidLength or ErrInvalidHex
func Parse(s string) (DSUID, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), "-", "")
	if len(cleaned) != 2*Size && len(cleaned) != 2*baseSize {
		return Empty, fmt.Errorf("%w: %d hex characters in %q", ErrInvalidLength, len(cleaned), s)
	}

	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return Empty, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	var d DSUID
	copy(d[:], raw)
	return d, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) DSUID {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// FromBytes builds a dSUID from its 17-byte binary form.
func FromBytes(b []byte) (DSUID, error) {
	if len(b) != Size {
		return Empty, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(b))
	}
	var d DSUID
	copy(d[:], b)
	return d, nil
}

// FromUUID places a UUID in the base and sets the sub-device index.
func FromUUID(u uuid.UUID, index int) (DSUID, error) {
	if err := checkIndex(index); err != nil {
		return Empty, err
	}
	var d DSUID
	copy(d[:baseSize], u[:])
	d[baseSize] = byte(index)
	return d, nil
}

// FromName hashes name into namespace with UUIDv5 and returns it with index 0.
//
// This is how the vDC derives identifiers for its own entities, e.g. a vDC
// from its implementation ID or a modelUID from a model name.
func FromName(name string, namespace uuid.UUID) DSUID {
	d, _ := FromUUID(uuid.NewSHA1(namespace, []byte(name)), 0) //nolint:errcheck // index 0 is always valid
	return d
}

// FromGTINSerial derives a dSUID from a GTIN and a serial number.
//
// The two are combined into the GS1-128 string "(01)<gtin>(21)<serial>"
// and hashed in the GS1-128 namespace.
func FromGTINSerial(gtin, serial string) DSUID {
	return FromName("(01)"+gtin+"(21)"+serial, NamespaceGS1128)
}

// FromEnOcean derives a dSUID from a 32-bit EnOcean address.
func FromEnOcean(address uint32) DSUID {
	return FromName(fmt.Sprintf("%08X", address), NamespaceEnOcean)
}

// FromMAC derives a vDC host dSUID from a hardware MAC address.
//
// The MAC is normalised to upper-case colon-separated form before hashing
// in the vDC namespace, so "aa-bb-cc-dd-ee-ff" and "AA:BB:CC:DD:EE:FF"
// yield the same identifier.
func FromMAC(mac string) (DSUID, error) {
	normalised, err := NormaliseMAC(mac)
	if err != nil {
		return Empty, err
	}
	return FromName(normalised, NamespaceVDC), nil
}

// Independent derives the identifier of a detachable module.
//
// The result is seeded only by the module's own physical address and shares
// no prefix with the unit the module is attached to.
func Independent(address string) (DSUID, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Empty, ErrEmptyAddress
	}
	return FromName(strings.ToUpper(address), NamespaceModule), nil
}

// Random returns a UUIDv4-based dSUID. The caller must persist it.
func Random() (DSUID, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return Empty, fmt.Errorf("generating random dSUID: %w", err)
	}
	return FromUUID(u, 0)
}

// Derive returns the sub-device identifier for index under base.
//
// The base bytes are kept unchanged, so every derived identifier is linked
// to the others. Indices need not be contiguous.
//
// Parameters:
//   - base: Identifier of the physical unit (its own index is ignored)
//   - index: Sub-device index, 0..255
//
// Returns:
//   - DSUID: Linked identifier
//   - error: ErrIndexOutOfRange if index does not fit a byte
func Derive(base DSUID, index int) (DSUID, error) {
	if err := checkIndex(index); err != nil {
		return Empty, err
	}
	d := base
	d[baseSize] = byte(index)
	return d, nil
}

// Linked reports whether a and b share the same base.
func Linked(a, b DSUID) bool {
	return bytes.Equal(a[:baseSize], b[:baseSize])
}

// Base returns the identifier with sub-device index 0.
func (d DSUID) Base() DSUID {
	d[baseSize] = 0
	return d
}

// SubdeviceIndex returns byte 16.
func (d DSUID) SubdeviceIndex() int {
	return int(d[baseSize])
}

// IsEmpty reports whether all bytes are zero.
func (d DSUID) IsEmpty() bool {
	return d == Empty
}

// Kind detects the layout of the base.
func (d DSUID) Kind() Kind {
	if d.IsEmpty() {
		return KindUndefined
	}
	if d[6] != 0 || d[7] != 0 || d[8] != 0 || d[9] != 0 {
		return KindUUID
	}
	switch d[0] {
	case sgtin96Header:
		return KindSGTIN
	case gid96Header:
		return KindGID
	default:
		return KindOther
	}
}

// UUID returns the base as a UUID.
func (d DSUID) UUID() uuid.UUID {
	var u uuid.UUID
	copy(u[:], d[:baseSize])
	return u
}

// Bytes returns a copy of the 17-byte binary form.
func (d DSUID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, d[:])
	return out
}

// String renders 34 upper-case hex characters.
func (d DSUID) String() string {
	return strings.ToUpper(hex.EncodeToString(d[:]))
}

// MarshalText implements encoding.TextMarshaler.
func (d DSUID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DSUID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// NormaliseMAC returns the upper-case colon-separated form of mac.
//
// Accepted inputs: "AA:BB:CC:DD:EE:FF", "AA-BB-CC-DD-EE-FF", "AABBCCDDEEFF".
func NormaliseMAC(mac string) (string, error) {
	b, err := parseMAC(mac)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = fmt.Sprintf("%02X", x)
	}
	return strings.Join(parts, ":"), nil
}

func parseMAC(mac string) ([]byte, error) {
	cleaned := strings.NewReplacer(":", "", "-", "").Replace(strings.TrimSpace(mac))
	if len(cleaned) != 12 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	b, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}
	return b, nil
}

func checkIndex(index int) error {
	if index < 0 || index > MaxSubdeviceIndex {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	return nil
}
