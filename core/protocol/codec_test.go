package protocol_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/pool"
)

// decodeAll feeds buf to dec and collects every complete packet payload.
func decodeAll(t *testing.T, dec api.Decoder, buf []byte) ([]string, int) {
	t.Helper()
	var out []string
	consumed := 0
	for {
		p, n, err := dec.Decode(buf[consumed:])
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if p == nil {
			return out, consumed
		}
		out = append(out, string(p.Bytes()))
		p.Release()
		consumed += n
	}
}

func TestLengthPrefixedRoundTrip(t *testing.T) {
	pp := pool.NewPacketPool()
	dec := protocol.NewLengthPrefixed(pp, 0)
	var wire []byte
	for _, s := range []string{"hello", "", "world"} {
		p := pp.FromString(s)
		b, err := dec.Encode(p)
		if err != nil {
			t.Fatal(err)
		}
		p.Release()
		wire = append(wire, b...)
	}
	got, n := decodeAll(t, dec, wire)
	if diff := cmp.Diff([]string{"hello", "", "world"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
	if n != len(wire) {
		t.Errorf("Expected %d bytes consumed, got %d", len(wire), n)
	}
	if st := pp.Stats(); st.InUse != 0 {
		t.Errorf("Expected no packets in use, got %d", st.InUse)
	}
}

func TestLengthPrefixedPartialInput(t *testing.T) {
	dec := protocol.NewLengthPrefixed(nil, 0)
	wire := []byte{0, 0, 0, 3, 'a', 'b'}
	for i := 0; i <= len(wire); i++ {
		p, n, err := dec.Decode(wire[:i])
		if p != nil || n != 0 || err != nil {
			t.Fatalf("prefix %d: expected need-more, got %v %d %v", i, p, n, err)
		}
	}
}

func TestLengthPrefixedTooLarge(t *testing.T) {
	dec := protocol.NewLengthPrefixed(nil, 8)
	_, _, err := dec.Decode([]byte{0, 0, 0, 9})
	if !errors.Is(err, api.ErrPacketTooLarge) {
		t.Errorf("Expected ErrPacketTooLarge, got %v", err)
	}
	p := pool.NewPacketPool().FromString("0123456789")
	defer p.Release()
	if _, err := dec.Encode(p); !errors.Is(err, api.ErrPacketTooLarge) {
		t.Errorf("Expected ErrPacketTooLarge on encode, got %v", err)
	}
}

func TestFrameRoundTripSizes(t *testing.T) {
	pp := pool.NewPacketPool()
	dec := protocol.NewFrame(pp, 0)
	for _, size := range []int{0, 125, 126, 0xFFFF, 0x10000} {
		payload := bytes.Repeat([]byte{'x'}, size)
		p := pp.FromBytes(payload)
		wire, err := dec.Encode(p)
		p.Release()
		if err != nil {
			t.Fatalf("size %d: %v", size, err)
		}
		if wire[0] != protocol.FinBit|protocol.OpcodeBinary {
			t.Errorf("size %d: unexpected first byte %#x", size, wire[0])
		}
		got, n, err := dec.Decode(wire)
		if err != nil || got == nil {
			t.Fatalf("size %d: decode failed: %v", size, err)
		}
		if n != len(wire) || !bytes.Equal(got.Bytes(), payload) {
			t.Errorf("size %d: payload mismatch", size)
		}
		got.Release()
	}
}

func TestFrameUnmasksInput(t *testing.T) {
	key := [4]byte{1, 2, 3, 4}
	plain := []byte("ping")
	wire := []byte{protocol.FinBit | protocol.OpcodeText, protocol.MaskBit | byte(len(plain))}
	wire = append(wire, key[:]...)
	for i, b := range plain {
		wire = append(wire, b^key[i%4])
	}
	dec := protocol.NewFrame(nil, 0)
	if p, _, _ := dec.Decode(wire[:len(wire)-1]); p != nil {
		t.Fatal("truncated frame must not decode")
	}
	p, n, err := dec.Decode(wire)
	if err != nil {
		t.Fatal(err)
	}
	defer p.Release()
	if n != len(wire) || string(p.Bytes()) != "ping" {
		t.Errorf("Expected ping/%d, got %q/%d", len(wire), p.Bytes(), n)
	}
}

func TestFrameTooLarge(t *testing.T) {
	dec := protocol.NewFrame(nil, 100)
	_, _, err := dec.Decode([]byte{protocol.FinBit | protocol.OpcodeBinary, 126, 0x01, 0x00})
	if !errors.Is(err, api.ErrPacketTooLarge) {
		t.Errorf("Expected ErrPacketTooLarge, got %v", err)
	}
}

func TestRawChunks(t *testing.T) {
	dec := protocol.NewRaw(nil, 4)
	got, n := decodeAll(t, dec, []byte("abcdefghij"))
	if diff := cmp.Diff([]string{"abcd", "efgh", "ij"}, got); diff != "" {
		t.Errorf("chunk mismatch (-want +got):\n%s", diff)
	}
	if n != 10 {
		t.Errorf("Expected 10 bytes consumed, got %d", n)
	}
	dec.Release()
	if !dec.Released() {
		t.Error("Released should report true after Release")
	}
}
