// File: api/buffer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Data units moved between streams and user threads, and the decoders that
// cut them out of raw stream bytes.

package api

// Packet is one discrete data unit produced by a Decoder.
type Packet interface {
	// Bytes returns the packet payload. The slice is valid until Release.
	Bytes() []byte

	// Len returns the payload length.
	Len() int

	// Clone returns an independent copy owned by the caller.
	Clone() Packet

	// Release returns the packet to its pool. After Release, the packet must
	// not be used. Releasing twice is a no-op.
	Release()
}

// Decoder turns raw stream bytes into packets and packets back into wire
// bytes. A decoder belongs to exactly one stream.
type Decoder interface {
	// Decode extracts at most one packet from buf. It returns the packet and
	// the number of bytes consumed, or (nil, 0, nil) when buf holds no
	// complete packet yet.
	Decode(buf []byte) (Packet, int, error)

	// Encode returns the wire representation of p. It does not take
	// ownership of p.
	Encode(p Packet) ([]byte, error)

	// Release frees decoder resources. Streams release their decoder when
	// they finish; callers release a decoder they never handed over.
	Release()
}

// PoolStats aggregates packet allocation/release counters.
type PoolStats struct {
	Alloc int64
	Free  int64
	InUse int64
}
