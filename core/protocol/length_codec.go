// File: core/protocol/length_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Length-prefixed packet codec: every packet travels as a 4-byte big-endian
// payload length followed by the payload.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/pool"
)

// Ensure compile-time interface compliance.
var _ api.Decoder = (*LengthPrefixed)(nil)

// LengthPrefixed decodes and encodes length-prefixed packets.
type LengthPrefixed struct {
	pool      *pool.PacketPool
	maxPacket int
	released  bool
}

// NewLengthPrefixed creates a decoder. A nil pool selects pool.Default(), a
// non-positive maxPacket selects MaxPacketSize.
func NewLengthPrefixed(pp *pool.PacketPool, maxPacket int) *LengthPrefixed {
	if pp == nil {
		pp = pool.Default()
	}
	if maxPacket <= 0 {
		maxPacket = MaxPacketSize
	}
	return &LengthPrefixed{pool: pp, maxPacket: maxPacket}
}

// Decode extracts one packet from buf.
func (d *LengthPrefixed) Decode(buf []byte) (api.Packet, int, error) {
	if len(buf) < LengthHeaderLen {
		return nil, 0, nil
	}
	length := binary.BigEndian.Uint32(buf)
	if int64(length) > int64(d.maxPacket) {
		return nil, 0, fmt.Errorf("length-prefixed packet of %d bytes: %w", length, api.ErrPacketTooLarge)
	}
	total := LengthHeaderLen + int(length)
	if len(buf) < total {
		return nil, 0, nil
	}
	return d.pool.FromBytes(buf[LengthHeaderLen:total]), total, nil
}

// Encode prepends the length header to the payload of p.
func (d *LengthPrefixed) Encode(p api.Packet) ([]byte, error) {
	if p.Len() > d.maxPacket {
		return nil, fmt.Errorf("length-prefixed packet of %d bytes: %w", p.Len(), api.ErrPacketTooLarge)
	}
	out := make([]byte, LengthHeaderLen+p.Len())
	binary.BigEndian.PutUint32(out, uint32(p.Len()))
	copy(out[LengthHeaderLen:], p.Bytes())
	return out, nil
}

// Release marks the decoder as no longer in use.
func (d *LengthPrefixed) Release() { d.released = true }

// Released reports whether Release was called.
func (d *LengthPrefixed) Released() bool { return d.released }
