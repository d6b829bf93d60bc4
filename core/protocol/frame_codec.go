// File: core/protocol/frame_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// WebSocket-style frame codec. Frames use the RFC 6455 header layout; masked
// input is unmasked into the packet, output is always sent unmasked with FIN
// set. Continuation frames are delivered as separate packets.

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/pool"
)

var _ api.Decoder = (*Frame)(nil)

// Frame decodes and encodes WebSocket-style binary frames.
type Frame struct {
	pool      *pool.PacketPool
	maxPacket int
	opcode    byte
	released  bool
}

// NewFrame creates a frame decoder that encodes outgoing packets with
// OpcodeBinary. A nil pool selects pool.Default(), a non-positive maxPacket
// selects MaxPacketSize.
func NewFrame(pp *pool.PacketPool, maxPacket int) *Frame {
	if pp == nil {
		pp = pool.Default()
	}
	if maxPacket <= 0 {
		maxPacket = MaxPacketSize
	}
	return &Frame{pool: pp, maxPacket: maxPacket, opcode: OpcodeBinary}
}

// WithOpcode sets the opcode used by Encode.
func (d *Frame) WithOpcode(op byte) *Frame {
	d.opcode = op & 0x0F
	return d
}

// Decode parses one frame header and payload from buf.
func (d *Frame) Decode(buf []byte) (api.Packet, int, error) {
	if len(buf) < 2 {
		return nil, 0, nil
	}
	masked := buf[1]&MaskBit != 0
	length := uint64(buf[1] & 0x7F)
	offset := 2

	switch length {
	case 126:
		if len(buf) < offset+2 {
			return nil, 0, nil
		}
		length = uint64(binary.BigEndian.Uint16(buf[offset:]))
		offset += 2
	case 127:
		if len(buf) < offset+8 {
			return nil, 0, nil
		}
		length = binary.BigEndian.Uint64(buf[offset:])
		offset += 8
	}
	if length > uint64(d.maxPacket) {
		return nil, 0, fmt.Errorf("frame payload of %d bytes: %w", length, api.ErrPacketTooLarge)
	}

	var maskKey [4]byte
	if masked {
		if len(buf) < offset+4 {
			return nil, 0, nil
		}
		copy(maskKey[:], buf[offset:offset+4])
		offset += 4
	}

	n := int(length)
	if len(buf)-offset < n {
		return nil, 0, nil
	}
	p := d.pool.FromBytes(buf[offset : offset+n])
	if masked {
		payload := p.Bytes()
		for i := range payload {
			payload[i] ^= maskKey[i%4]
		}
	}
	return p, offset + n, nil
}

// Encode serializes p as a single final frame.
func (d *Frame) Encode(p api.Packet) ([]byte, error) {
	plen := p.Len()
	if plen > d.maxPacket {
		return nil, fmt.Errorf("frame payload of %d bytes: %w", plen, api.ErrPacketTooLarge)
	}
	b0 := byte(FinBit) | d.opcode
	var hdr [10]byte
	hdr[0] = b0
	hlen := 2
	switch {
	case plen <= 125:
		hdr[1] = byte(plen)
	case plen <= 0xFFFF:
		hdr[1] = 126
		binary.BigEndian.PutUint16(hdr[2:], uint16(plen))
		hlen = 4
	default:
		hdr[1] = 127
		binary.BigEndian.PutUint64(hdr[2:], uint64(plen))
		hlen = 10
	}
	out := make([]byte, hlen+plen)
	copy(out, hdr[:hlen])
	copy(out[hlen:], p.Bytes())
	return out, nil
}

// Release marks the decoder as no longer in use.
func (d *Frame) Release() { d.released = true }

// Released reports whether Release was called.
func (d *Frame) Released() bool { return d.released }
