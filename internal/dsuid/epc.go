package dsuid

import "fmt"

// gcpBits maps the SGTIN-96 partition value to the company prefix width.
// Company prefix and item reference always add up to 44 bits.
var gcpBits = [7]uint{40, 37, 34, 30, 27, 24, 20}

const (
	sgtinFilter     = 0x01
	sgtinSerialBits = 38
	gidSerialBits   = 36
	gidManagerBits  = 28
	gidClassBits    = 24

	// ManagerDigitalSTROM is the EPCglobal manager number used for
	// MAC-derived legacy identifiers.
	ManagerDigitalSTROM = 0x04175FE
)

// FromSGTIN96 encodes SGTIN-96 components into a dSUID.
//
// The 96-bit EPC occupies bytes 0..5 and 10..15. Bytes 6..9 stay zero,
// which is how EPC96 identifiers are told apart from UUIDs.
//
// Parameters:
//   - gcp: GS1 company prefix
//   - itemRef: Item reference
//   - partition: 0..6, selects the company prefix width
//   - serial: Serial number, at most 38 bits
//
// Returns:
//   - DSUID: Identifier with sub-device index 0
//   - error: ErrInvalidEPC when a component does not fit
func FromSGTIN96(gcp, itemRef uint64, partition int, serial uint64) (DSUID, error) {
	if partition < 0 || partition >= len(gcpBits) {
		return Empty, fmt.Errorf("%w: partition %d", ErrInvalidEPC, partition)
	}
	if serial>>sgtinSerialBits != 0 {
		return Empty, fmt.Errorf("%w: serial exceeds %d bits", ErrInvalidEPC, sgtinSerialBits)
	}
	width := gcpBits[partition]
	if gcp>>width != 0 || itemRef>>(44-width) != 0 {
		return Empty, fmt.Errorf("%w: company prefix or item reference too wide for partition %d", ErrInvalidEPC, partition)
	}

	gtin := gcp<<(44-width) | itemRef

	var d DSUID
	d[0] = sgtin96Header
	d[1] = byte(sgtinFilter<<5) | byte(partition&0x07)<<2 | byte(gtin>>42&0x03)
	d[2] = byte(gtin >> 34)
	d[3] = byte(gtin >> 26)
	d[4] = byte(gtin >> 18)
	d[5] = byte(gtin >> 10)
	d[10] = byte(gtin >> 2)
	d[11] = byte(gtin&0x03)<<6 | byte(serial>>32&0x3F)
	d[12] = byte(serial >> 24)
	d[13] = byte(serial >> 16)
	d[14] = byte(serial >> 8)
	d[15] = byte(serial)
	return d, nil
}

// FromGID96 encodes a legacy GID-96 identifier into a dSUID.
func FromGID96(manager, objectClass uint32, serial uint64) (DSUID, error) {
	if manager>>gidManagerBits != 0 || objectClass>>gidClassBits != 0 || serial>>gidSerialBits != 0 {
		return Empty, fmt.Errorf("%w: gid96 component too wide", ErrInvalidEPC)
	}

	var epc [12]byte
	epc[0] = gid96Header
	epc[1] = byte(manager >> 20)
	epc[2] = byte(manager >> 12)
	epc[3] = byte(manager >> 4)
	epc[4] = byte(manager&0x0F)<<4 | byte(objectClass>>20&0x0F)
	epc[5] = byte(objectClass >> 12)
	epc[6] = byte(objectClass >> 4)
	epc[7] = byte(objectClass&0x0F)<<4 | byte(serial>>32&0x0F)
	epc[8] = byte(serial >> 24)
	epc[9] = byte(serial >> 16)
	epc[10] = byte(serial >> 8)
	epc[11] = byte(serial)

	var d DSUID
	copy(d[0:6], epc[0:6])
	copy(d[10:16], epc[6:12])
	return d, nil
}

// FromMACGID96 builds a legacy GID-96 identifier from a MAC address.
//
// The first two MAC bytes go into an object class in 0xFF0000..0xFFFFFF,
// the remaining four into the serial.
func FromMACGID96(mac string) (DSUID, error) {
	b, err := parseMAC(mac)
	if err != nil {
		return Empty, err
	}
	objectClass := uint32(0xFF0000) | uint32(b[0])<<8 | uint32(b[1])
	serial := uint64(b[2])<<24 | uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
	return FromGID96(ManagerDigitalSTROM, objectClass, serial)
}
