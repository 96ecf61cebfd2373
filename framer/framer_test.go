package framer

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tunnelcore/pppcore/wire"
)

func TestInnerRoundTrip(t *testing.T) {
	protos := []wire.Proto{wire.ProtoLCP, wire.ProtoIPCP, wire.ProtoIP6CP, wire.ProtoIP, wire.ProtoIPv6}
	payload := []byte{0xde, 0xad, 0xbe, 0xef}

	for _, proto := range protos {
		for _, opts := range []Options{0, ACCOMP, PFCOMP, ACCOMP | PFCOMP} {
			encoded := EncodeInner(proto, payload, opts)
			decoded, err := DecodeInner(encoded, opts)
			if err != nil {
				t.Fatalf("proto=%v opts=%v: DecodeInner: %v", proto, opts, err)
			}
			if decoded.Proto != proto {
				t.Errorf("proto=%v opts=%v: got proto %v", proto, opts, decoded.Proto)
			}
			if diff := cmp.Diff(payload, decoded.Payload); diff != "" {
				t.Errorf("proto=%v opts=%v: payload mismatch (-want +got):\n%s", proto, opts, diff)
			}
		}
	}
}

func TestLCPExemptFromCompression(t *testing.T) {
	encoded := EncodeInner(wire.ProtoLCP, []byte{1}, ACCOMP|PFCOMP)
	if encoded[0] != addressByte || encoded[1] != controlByte {
		t.Errorf("LCP frame must always carry Address/Control, got %x", encoded)
	}
	if len(encoded) < 4 || encoded[2] != 0xc0 || encoded[3] != 0x21 {
		t.Errorf("LCP frame must always carry full 2-byte protocol, got %x", encoded)
	}
}

func TestDecodeInnerMalformedWithoutACCOMP(t *testing.T) {
	// No Address/Control prefix, and ACCOMP not negotiated: fatal.
	frame := []byte{0x00, 0x21, 1, 2, 3}
	if _, err := DecodeInner(frame, 0); err != ErrMalformedPPP {
		t.Errorf("got err %v, want ErrMalformedPPP", err)
	}
}

func TestOuterRoundTrip(t *testing.T) {
	ppp := []byte{0xc0, 0x21, 1, 1, 0, 4}
	wrapped := WrapOuter(ppp)
	got, err := UnwrapOuter(wrapped)
	if err != nil {
		t.Fatalf("UnwrapOuter: %v", err)
	}
	if diff := cmp.Diff(ppp, got); diff != "" {
		t.Errorf("UnwrapOuter(WrapOuter(ppp)) mismatch (-want +got):\n%s", diff)
	}
}

func TestOuterMismatch(t *testing.T) {
	tests := [][]byte{
		{0xf5, 0x00, 0x00, 0x03, 1, 2}, // declared len 3, actual 2
		{0xaa, 0x00, 0x00, 0x02, 1, 2}, // wrong magic
		{0xf5},                        // too short
	}
	for _, b := range tests {
		if _, err := UnwrapOuter(b); err != ErrOuterHeaderMismatch {
			t.Errorf("UnwrapOuter(%x): got err %v, want ErrOuterHeaderMismatch", b, err)
		}
	}
}

func TestHDLCEscapingScenario(t *testing.T) {
	// Scenario 6 of spec.md §8: a Configure-Request body containing
	// byte 0x01 must come out with that byte escaped.
	body := []byte{0x01, 0x02}
	escaped := HDLCEncode(body, 0xffffffff)
	want := []byte{0x7d, 0x21, 0x7d, 0x22}
	if diff := cmp.Diff(want, escaped); diff != "" {
		t.Errorf("HDLCEncode mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(body, HDLCDecode(escaped)); diff != "" {
		t.Errorf("HDLCDecode(HDLCEncode(body)) != body (-want +got):\n%s", diff)
	}
}

func TestHeaderSizeTracker(t *testing.T) {
	h := NewHeaderSizeTracker()
	if h.Hint() != 4 {
		t.Fatalf("initial hint = %d, want 4", h.Hint())
	}
	if changed := h.Observe(4); changed {
		t.Error("Observe(4) after initial hint 4 should report unchanged")
	}
	if changed := h.Observe(2); !changed {
		t.Error("Observe(2) should report changed from hint 4")
	}
	if h.Hint() != 2 {
		t.Errorf("hint after Observe(2) = %d, want 2", h.Hint())
	}
}
