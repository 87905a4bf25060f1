// Package dsuid implements the digitalSTROM unique identifier (dSUID).
//
// A dSUID is 17 bytes: a 16-byte base (a UUID or an EPC96 encoding)
// followed by a one-byte sub-device index. Identifiers that share the
// base are linked: they name devices that live in the same physical
// unit. Identifiers with different bases are independent.
//
// # Derivation
//
//   - Derive(base, index) keeps the base and writes the index. The same
//     pair always yields the same dSUID and indices may be sparse.
//   - Independent(address) hashes a detachable module's own physical
//     address into a fresh base, so the module shares nothing with the
//     unit it was plugged into.
//   - FromGTINSerial, FromEnOcean, FromMAC and FromName cover the
//     name-based (UUIDv5) generation methods; FromSGTIN96 and FromGID96
//     cover the EPC96 encodings.
//
// All derivation is local and pure. Nothing here talks to the network.
//
// # Usage
//
//	base := dsuid.FromGTINSerial("07640156791013", "1234")
//	left, _ := dsuid.Derive(base, 0)
//	right, _ := dsuid.Derive(base, 1)
//	dsuid.Linked(left, right) // true
package dsuid
