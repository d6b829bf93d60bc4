//go:build linux

package reactor_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/pool"
	"github.com/momentics/hioload-ut/reactor"
)

// pump runs poll steps until cond holds or the deadline passes.
func pump(t *testing.T, r *reactor.Reactor, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reactor condition")
		}
		if err := r.RunOnce(false); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
}

func listen(t *testing.T, r *reactor.Reactor, accepted *[]int) api.Address {
	t.Helper()
	addr := api.TCP("127.0.0.1:0")
	fd, err := r.Socket(addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Listen(fd, addr, func(nfd int) { *accepted = append(*accepted, nfd) }); err != nil {
		t.Fatal(err)
	}
	bound, err := r.LocalAddr(fd)
	if err != nil {
		t.Fatal(err)
	}
	return bound
}

func TestClaimOnce(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	if err := r.Claim(); err != nil {
		t.Fatal(err)
	}
	if err := r.Claim(); !errors.Is(err, api.ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestLoopbackExchange(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	pp := pool.NewPacketPool()

	var accepted []int
	addr := listen(t, r, &accepted)

	clientFd := -1
	var connErr error
	pending, err := r.Connect(addr, func(fd int, err error) { clientFd, connErr = fd, err })
	if err != nil {
		t.Fatal(err)
	}
	if pending {
		pump(t, r, func() bool { return clientFd >= 0 || connErr != nil })
	}
	if connErr != nil {
		t.Fatal(connErr)
	}
	pump(t, r, func() bool { return len(accepted) == 1 })

	client, err := r.NewStream(clientFd, 16, protocol.NewLengthPrefixed(pp, 0))
	if err != nil {
		t.Fatal(err)
	}
	server, err := r.NewStream(accepted[0], 16, protocol.NewLengthPrefixed(pp, 0))
	if err != nil {
		t.Fatal(err)
	}

	var got []string
	var serverGone error
	if err := server.Associate(
		func(s api.Stream, p api.Packet) { got = append(got, string(p.Bytes())) },
		func(s api.Stream, err error) { serverGone = err },
	); err != nil {
		t.Fatal(err)
	}
	var clientGone error
	if err := client.Associate(nil, func(s api.Stream, err error) { clientGone = err }); err != nil {
		t.Fatal(err)
	}

	// Larger than the initial read buffer to force growth.
	long := "0123456789abcdefghijklmnopqrstuvwxyz"
	for _, msg := range []string{"ping", long} {
		if err := client.Send(pp.FromString(msg)); err != nil {
			t.Fatal(err)
		}
	}
	pump(t, r, func() bool { return len(got) == 2 })
	if got[0] != "ping" || got[1] != long {
		t.Errorf("unexpected payloads %q", got)
	}

	if err := client.Close(); err != nil {
		t.Fatal(err)
	}
	if err := client.Close(); !errors.Is(err, api.ErrStreamClosed) {
		t.Errorf("Expected ErrStreamClosed on second close, got %v", err)
	}
	pump(t, r, func() bool { return clientGone != nil && serverGone != nil })
	if !errors.Is(clientGone, api.ErrLocalClose) {
		t.Errorf("Expected local close on client, got %v", clientGone)
	}
	if !errors.Is(serverGone, io.EOF) {
		t.Errorf("Expected EOF on server, got %v", serverGone)
	}
	if client.Fd() != -1 || server.Fd() != -1 {
		t.Error("finished streams should report fd -1")
	}
	if st := pp.Stats(); st.InUse != 0 {
		t.Errorf("Expected no packets in use, got %d", st.InUse)
	}
}

func TestConnectRefused(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Grab a free port, then close the listener so nothing answers.
	var accepted []int
	probe, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	addr := listen(t, probe, &accepted)
	probe.Close()

	done := false
	var connErr error
	pending, err := r.Connect(addr, func(fd int, err error) { done, connErr = true, err })
	if err != nil {
		return // refused synchronously
	}
	if pending {
		pump(t, r, func() bool { return done })
	}
	if connErr == nil {
		t.Error("Expected connect to fail")
	}
}

func TestWakeupInterruptsBlockingPoll(t *testing.T) {
	r, err := reactor.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = r.Wakeup()
	}()
	done := make(chan error, 1)
	go func() { done <- r.RunOnce(true) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wakeup did not interrupt RunOnce")
	}
}
