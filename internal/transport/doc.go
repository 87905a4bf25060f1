// Package transport carries vDC API messages over TCP.
//
// Each message travels as a frame: a 2-byte big-endian length followed by
// that many bytes of encoded envelope. Frames are at most MaxFrameSize
// bytes; a zero length is a protocol error.
//
// Conn wraps one net.Conn with serialized writes and context-aware reads.
// Server accepts vdSM connections and keeps at most one session alive: a new
// connection replaces the previous one.
package transport
