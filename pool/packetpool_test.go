package pool_test

import (
	"bytes"
	"testing"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/pool"
)

func TestPacketPoolReuse(t *testing.T) {
	pp := pool.NewPacketPool()
	p1 := pp.Get(128)
	p1.Release()
	p2 := pp.Get(64)
	if p2.Len() != 64 {
		t.Errorf("Expected len 64, got %d", p2.Len())
	}
	p2.Release()
}

func TestPacketPoolStats(t *testing.T) {
	pp := pool.NewPacketPool()
	p := pp.FromString("hello")
	c := p.Clone()
	if got := pp.Stats(); got != (api.PoolStats{Alloc: 2, Free: 0, InUse: 2}) {
		t.Fatalf("unexpected stats after alloc: %+v", got)
	}
	if !bytes.Equal(c.Bytes(), []byte("hello")) {
		t.Errorf("clone payload mismatch: %q", c.Bytes())
	}
	p.Release()
	p.Release() // second release must not be counted
	c.Release()
	if got := pp.Stats(); got.InUse != 0 || got.Free != 2 {
		t.Fatalf("expected pool back at baseline, got %+v", got)
	}
	if !p.Released() {
		t.Error("Released() should report true")
	}
}

func TestPacketCloneIsIndependent(t *testing.T) {
	pp := pool.NewPacketPool()
	p := pp.FromBytes([]byte{1, 2, 3})
	c := p.Clone()
	p.Bytes()[0] = 9
	if c.Bytes()[0] != 1 {
		t.Error("clone shares storage with the original")
	}
	p.Release()
	c.Release()
}

func TestPacketPoolLargePacket(t *testing.T) {
	pp := pool.NewPacketPool()
	p := pp.Get(200 * 1024)
	if p.Len() != 200*1024 {
		t.Fatalf("unexpected len %d", p.Len())
	}
	p.Release()
	if pp.Stats().InUse != 0 {
		t.Error("large packet not accounted as freed")
	}
}
