//go:build linux

package facade_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/facade"
	"github.com/momentics/hioload-ut/pool"
	"github.com/momentics/hioload-ut/reactor"
)

func TestEchoOverLoopback(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	pp := pool.NewPacketPool()
	e, err := facade.New(r, nil, &facade.Config{Pool: pp})
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()

	ln, err := e.Listen(api.TCP("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}
	addr, err := e.Addr(ln)
	if err != nil {
		t.Fatal(err)
	}

	var echoed string
	var afterClose error
	e.Spawn(func(ctx context.Context) {
		conn, err := e.Accept(ctx, ln, 0, protocol.NewLengthPrefixed(pp, 0))
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		for {
			p, err := e.Receive(ctx, conn)
			if err != nil {
				_ = e.Close(conn)
				return
			}
			if err := e.Send(conn, p); err != nil {
				t.Errorf("echo Send: %v", err)
			}
		}
	})
	e.Spawn(func(ctx context.Context) {
		conn, err := e.Connect(ctx, addr, 0, protocol.NewLengthPrefixed(pp, 0))
		if err != nil {
			t.Errorf("Connect: %v", err)
			return
		}
		if err := e.Send(conn, pp.FromString("over the wire")); err != nil {
			t.Errorf("Send: %v", err)
			return
		}
		p, err := e.Receive(ctx, conn)
		if err != nil {
			t.Errorf("Receive: %v", err)
			return
		}
		echoed = string(p.Bytes())
		p.Release()
		if err := e.Close(conn); err != nil {
			t.Errorf("Close: %v", err)
		}
		_, afterClose = e.Receive(ctx, conn)
		_ = e.Close(ln)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if echoed != "over the wire" {
		t.Errorf("Expected echo, got %q", echoed)
	}
	var de *api.DisconnectError
	if !errors.As(afterClose, &de) {
		t.Errorf("Expected disconnect error after close, got %v", afterClose)
	}
	if st := pp.Stats(); st.InUse != 0 {
		t.Errorf("Expected no packets in use, got %d", st.InUse)
	}
}

func TestRunInterruptedByContext(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := facade.New(r, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	ln, err := e.Listen(api.TCP("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}
	e.Spawn(func(ctx context.Context) { _, _ = e.Accept(ctx, ln, 0, nil) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded, got %v", err)
	}
}

func TestAcceptDeadlineWakesBlockingPoll(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	e, err := facade.New(r, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Shutdown()
	ln, err := e.Listen(api.TCP("127.0.0.1:0"))
	if err != nil {
		t.Fatal(err)
	}
	var acceptErr error
	e.Spawn(func(ctx context.Context) {
		tctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, acceptErr = e.Accept(tctx, ln, 0, nil)
	})

	// Nothing ever connects; only the deadline can end the blocking poll and
	// let Run return once the acceptor finished.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !errors.Is(acceptErr, context.DeadlineExceeded) {
		t.Errorf("Expected DeadlineExceeded from Accept, got %v", acceptErr)
	}
}
