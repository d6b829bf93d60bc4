package facade_test

import (
	"context"
	"testing"
	"time"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/facade"
	"github.com/momentics/hioload-ut/fake"
	"github.com/momentics/hioload-ut/pool"
)

var memAddr = api.Address{Network: "mem", Address: "svc:1"}

type harness struct {
	t  *testing.T
	e  *facade.Engine
	r  *fake.Reactor
	pp *pool.PacketPool
}

func newHarness(t *testing.T, cfg *facade.Config) *harness {
	t.Helper()
	r := fake.NewReactor()
	pp := pool.NewPacketPool()
	if cfg == nil {
		cfg = &facade.Config{}
	}
	cfg.Pool = pp
	e, err := facade.New(r, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	return &harness{t: t, e: e, r: r, pp: pp}
}

// drive runs engine steps until cond holds.
func (h *harness) drive(cond func() bool) {
	h.t.Helper()
	for i := 0; i < 1000; i++ {
		if cond() {
			return
		}
		if err := h.e.RunOnce(); err != nil {
			h.t.Fatalf("RunOnce: %v", err)
		}
	}
	h.t.Fatal("condition not reached after 1000 steps")
}

// waitFor is drive for conditions that depend on other goroutines, such as a
// context deadline firing. It gives up after two seconds.
func (h *harness) waitFor(cond func() bool) {
	h.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			h.t.Fatal("condition not reached within 2s")
		}
		if err := h.e.RunOnce(); err != nil {
			h.t.Fatalf("RunOnce: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

// settle runs engine steps until neither threads nor reactor have work.
func (h *harness) settle() {
	h.t.Helper()
	h.drive(func() bool { return h.e.Scheduler().Runnable() == 0 && !h.r.Pending() })
}

func (h *harness) listen() facade.Handle {
	h.t.Helper()
	ln, err := h.e.Listen(memAddr)
	if err != nil {
		h.t.Fatal(err)
	}
	return ln
}

func (h *harness) decoder() *protocol.LengthPrefixed {
	return protocol.NewLengthPrefixed(h.pp, 0)
}

// write sends length-prefixed payloads from a raw test peer.
func (h *harness) write(fd int, payloads ...string) {
	h.t.Helper()
	dec := h.decoder()
	for _, s := range payloads {
		p := h.pp.FromString(s)
		b, err := dec.Encode(p)
		p.Release()
		if err != nil {
			h.t.Fatal(err)
		}
		if err := h.r.Write(fd, b); err != nil {
			h.t.Fatal(err)
		}
	}
}

// acceptOne dials ln from a raw peer and returns the peer descriptor and
// the accepted connection handle.
func (h *harness) acceptOne(ln facade.Handle) (int, facade.Handle) {
	h.t.Helper()
	conn := facade.EmptyHandle
	var acceptErr error
	h.e.Spawn(func(ctx context.Context) {
		conn, acceptErr = h.e.Accept(ctx, ln, 0, nil)
	})
	raw, err := h.r.Dial(memAddr)
	if err != nil {
		h.t.Fatal(err)
	}
	h.drive(func() bool { return !conn.IsEmpty() || acceptErr != nil })
	if acceptErr != nil {
		h.t.Fatal(acceptErr)
	}
	return raw, conn
}

func (h *harness) assertNoLeaks() {
	h.t.Helper()
	if st := h.pp.Stats(); st.InUse != 0 {
		h.t.Errorf("Expected all packets released, %d in use", st.InUse)
	}
}
