// File: core/protocol/raw_codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package protocol

import (
	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/pool"
)

var _ api.Decoder = (*Raw)(nil)

// Raw passes bytes through unchanged: whatever is buffered becomes one packet,
// capped at the configured maximum.
type Raw struct {
	pool      *pool.PacketPool
	maxPacket int
	released  bool
}

// NewRaw creates a passthrough decoder.
func NewRaw(pp *pool.PacketPool, maxPacket int) *Raw {
	if pp == nil {
		pp = pool.Default()
	}
	if maxPacket <= 0 {
		maxPacket = MaxPacketSize
	}
	return &Raw{pool: pp, maxPacket: maxPacket}
}

// Decode returns up to maxPacket bytes of buf as one packet.
func (d *Raw) Decode(buf []byte) (api.Packet, int, error) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	n := len(buf)
	if n > d.maxPacket {
		n = d.maxPacket
	}
	return d.pool.FromBytes(buf[:n]), n, nil
}

// Encode copies the payload of p.
func (d *Raw) Encode(p api.Packet) ([]byte, error) {
	out := make([]byte, p.Len())
	copy(out, p.Bytes())
	return out, nil
}

// Release marks the decoder as no longer in use.
func (d *Raw) Release() { d.released = true }

// Released reports whether Release was called.
func (d *Raw) Released() bool { return d.released }
