package fake_test

import (
	"errors"
	"io"
	"testing"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/fake"
)

func TestPipeDeliversAndHangsUp(t *testing.T) {
	r := fake.NewReactor()
	addr := api.Address{Network: "mem", Address: "x"}
	lfd, _ := r.Socket(addr)
	var accepted []int
	if err := r.Listen(lfd, addr, func(fd int) { accepted = append(accepted, fd) }); err != nil {
		t.Fatal(err)
	}
	raw, err := r.Dial(addr)
	if err != nil {
		t.Fatal(err)
	}
	_ = r.RunOnce(false)
	if len(accepted) != 1 {
		t.Fatalf("Expected one accepted descriptor, got %d", len(accepted))
	}
	dec := protocol.NewRaw(nil, 0)
	st, err := r.NewStream(accepted[0], 0, dec)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	var gone error
	_ = st.Associate(
		func(s api.Stream, p api.Packet) { got = append(got, string(p.Bytes())) },
		func(s api.Stream, err error) { gone = err },
	)
	_ = r.Write(raw, []byte("abc"))
	_ = r.HangUp(raw)
	_ = r.RunOnce(false)
	if len(got) != 1 || got[0] != "abc" {
		t.Errorf("unexpected packets %q", got)
	}
	if !errors.Is(gone, io.EOF) {
		t.Errorf("Expected EOF, got %v", gone)
	}
	if !dec.Released() || st.Fd() != -1 {
		t.Error("finished stream should release its decoder and descriptor")
	}
}

func TestConnectWithoutListenerIsRefused(t *testing.T) {
	r := fake.NewReactor()
	var err error
	pending, cerr := r.Connect(api.Address{Network: "mem", Address: "nobody"}, func(fd int, e error) { err = e })
	if cerr != nil || !pending {
		t.Fatalf("Expected pending connect, got %v %v", pending, cerr)
	}
	_ = r.RunOnce(false)
	if !errors.Is(err, fake.ErrRefused) {
		t.Errorf("Expected ErrRefused, got %v", err)
	}
	if err := r.Claim(); err != nil {
		t.Fatal(err)
	}
	if err := r.Claim(); !errors.Is(err, api.ErrAlreadyInitialized) {
		t.Errorf("Expected ErrAlreadyInitialized, got %v", err)
	}
}
