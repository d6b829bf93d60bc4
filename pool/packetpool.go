// File: pool/packetpool.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// PacketPool hands out api.Packet values backed by recycled byte buffers and
// keeps allocation/release counters for leak accounting.

package pool

import (
	"sync/atomic"

	"github.com/momentics/hioload-ut/api"
)

const (
	defaultBufferCap = 512
	maxPooledCap     = 64 * 1024
)

// Ensure compile-time interface compliance.
var _ api.Packet = (*Packet)(nil)

// PacketPool allocates packets. It is safe for concurrent use.
type PacketPool struct {
	bufs  *SyncPool[*[]byte]
	alloc atomic.Int64
	free  atomic.Int64
}

// NewPacketPool creates an empty pool.
func NewPacketPool() *PacketPool {
	return &PacketPool{
		bufs: NewSyncPool(func() *[]byte {
			b := make([]byte, 0, defaultBufferCap)
			return &b
		}),
	}
}

// Get returns a packet with an n-byte payload. The payload content is undefined.
func (pp *PacketPool) Get(n int) *Packet {
	bp := pp.bufs.Get()
	if cap(*bp) < n {
		b := make([]byte, n)
		bp = &b
	}
	pp.alloc.Add(1)
	return &Packet{buf: (*bp)[:n], holder: bp, pool: pp}
}

// FromBytes returns a packet holding a copy of b.
func (pp *PacketPool) FromBytes(b []byte) *Packet {
	p := pp.Get(len(b))
	copy(p.buf, b)
	return p
}

// FromString returns a packet holding a copy of s.
func (pp *PacketPool) FromString(s string) *Packet {
	p := pp.Get(len(s))
	copy(p.buf, s)
	return p
}

// Stats reports allocation counters.
func (pp *PacketPool) Stats() api.PoolStats {
	a, f := pp.alloc.Load(), pp.free.Load()
	return api.PoolStats{Alloc: a, Free: f, InUse: a - f}
}

func (pp *PacketPool) recycle(p *Packet) {
	pp.free.Add(1)
	if cap(*p.holder) > maxPooledCap {
		return
	}
	*p.holder = (*p.holder)[:0]
	pp.bufs.Put(p.holder)
}

// Packet is the pool-backed api.Packet implementation.
type Packet struct {
	buf      []byte
	holder   *[]byte
	pool     *PacketPool
	released bool
}

func (p *Packet) Bytes() []byte { return p.buf }

func (p *Packet) Len() int { return len(p.buf) }

// Clone copies the payload into a new packet from the same pool.
func (p *Packet) Clone() api.Packet {
	return p.pool.FromBytes(p.buf)
}

// Release returns the backing buffer to the pool. Releasing twice is a no-op.
func (p *Packet) Release() {
	if p.released {
		return
	}
	p.released = true
	p.pool.recycle(p)
	p.buf = nil
}

// Released reports whether Release has been called.
func (p *Packet) Released() bool { return p.released }
