package kv_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/facade"
	"github.com/momentics/hioload-ut/fake"
	"github.com/momentics/hioload-ut/kv"
	"github.com/momentics/hioload-ut/pool"
)

var addr = api.Address{Network: "mem", Address: "kv"}

func newEngine(t *testing.T) (*facade.Engine, *pool.PacketPool) {
	t.Helper()
	pp := pool.NewPacketPool()
	e, err := facade.New(fake.NewReactor(), nil, &facade.Config{Pool: pp})
	if err != nil {
		t.Fatal(err)
	}
	return e, pp
}

func TestClientServerRoundTrip(t *testing.T) {
	e, pp := newEngine(t)
	ln, err := e.Listen(addr)
	if err != nil {
		t.Fatal(err)
	}
	srv := kv.NewServer(e, nil, pp, nil)
	var serveErr error
	e.Spawn(func(ctx context.Context) { serveErr = srv.Serve(ctx, ln) })

	type result struct {
		Value   string
		Missing bool
		Deleted bool
		Pong    string
	}
	var got result
	e.Spawn(func(ctx context.Context) {
		defer func() { _ = e.Close(ln) }()
		c, err := kv.Dial(ctx, e, addr, pp)
		if err != nil {
			t.Errorf("Dial: %v", err)
			return
		}
		defer c.Close()
		if err := c.Set(ctx, "alpha", []byte("1")); err != nil {
			t.Errorf("Set: %v", err)
			return
		}
		v, err := c.Get(ctx, "alpha")
		if err != nil {
			t.Errorf("Get: %v", err)
			return
		}
		got.Value = string(v)
		_, err = c.Get(ctx, "beta")
		got.Missing = errors.Is(err, kv.ErrNotFound)
		got.Deleted, _ = c.Del(ctx, "alpha")
		pong, _ := c.Ping(ctx, []byte("hi"))
		got.Pong = string(pong)
	})

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := result{Value: "1", Missing: true, Deleted: true, Pong: "hi"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if serveErr != nil {
		t.Errorf("Serve: %v", serveErr)
	}
	if srv.Store().Len() != 0 {
		t.Errorf("Expected empty store, got %v", srv.Store().Keys())
	}
	if st := pp.Stats(); st.InUse != 0 {
		t.Errorf("Expected no packets in use, got %d", st.InUse)
	}
}

func TestManyClientsShareStore(t *testing.T) {
	e, pp := newEngine(t)
	ln, err := e.Listen(addr)
	if err != nil {
		t.Fatal(err)
	}
	srv := kv.NewServer(e, nil, pp, nil)
	e.Spawn(func(ctx context.Context) { _ = srv.Serve(ctx, ln) })

	const clients = 5
	finished := 0
	for i := 0; i < clients; i++ {
		key := string(rune('a' + i))
		e.Spawn(func(ctx context.Context) {
			defer func() {
				finished++
				if finished == clients {
					_ = e.Close(ln)
				}
			}()
			c, err := kv.Dial(ctx, e, addr, pp)
			if err != nil {
				t.Errorf("Dial: %v", err)
				return
			}
			defer c.Close()
			if err := c.Set(ctx, key, []byte(key)); err != nil {
				t.Errorf("Set %s: %v", key, err)
			}
		})
	}
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, srv.Store().Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestStore(t *testing.T) {
	s := kv.NewStore()
	v := []byte("x")
	s.Set("k", v)
	v[0] = 'y'
	got, ok := s.Get("k")
	if !ok || string(got) != "x" {
		t.Errorf("Set must copy the value, got %q", got)
	}
	if !s.Del("k") || s.Del("k") {
		t.Error("Del should report presence once")
	}
	if kv.OpSet.String() != "SET" || kv.Op(99).String() != "OP(99)" {
		t.Error("unexpected Op names")
	}
}
