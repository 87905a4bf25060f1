// Package vdcapi defines the vDC API message envelope and its wire codec.
//
// Every message is an Envelope: a message ID plus exactly one Payload. The
// message type is not stored separately; it is derived from the payload's
// Go type, so an envelope whose type and payload disagree cannot be built.
//
// # Wire format
//
// Envelopes are encoded as protobuf "Message" records (genericVDC.proto):
// field 1 carries the type, field 2 the message ID, and one submessage field
// per payload variant. Encode and Decode use protowire directly; no
// generated code is involved.
//
// Decode rejects:
//
//   - an unknown type (ErrMessageUnknown)
//   - a known type whose submessage is absent (ErrMissingSubmessage)
//   - a known type next to a different submessage (ErrPayloadMismatch)
//
// A *DecodeError keeps the message ID so the receiver can still answer.
//
// # Results
//
// ResultCode mirrors the protocol's result taxonomy. ResultFromError maps
// the sentinel errors of this and the property package onto codes, so
// handlers return plain Go errors and the session builds the
// GenericResponse.
package vdcapi
