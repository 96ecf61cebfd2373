package hdlc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		desc string
		in   []byte
		m    uint32
	}{
		{"empty", nil, AllControlEscaped},
		{"no escapes needed", []byte{0x20, 0x21, 0xaa, 0xff}, 0},
		{"flag and escape bytes", []byte{0x7e, 0x7d, 0x7e}, 0},
		{"all control chars", []byte{0, 1, 2, 0x1f}, AllControlEscaped},
		{"selective asyncmap", []byte{0x11, 0x13}, 1 << 0x11},
		{"mixed run", []byte{0x01, 0x41, 0x42, 0x7e, 0x43}, AllControlEscaped},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			got := Unescape(Escape(tc.in, tc.m))
			if diff := cmp.Diff(tc.in, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEscapeCoverage(t *testing.T) {
	for _, asyncmap := range []uint32{0, AllControlEscaped, 0x000000ff} {
		for c := 0; c < 256; c++ {
			b := byte(c)
			escaped := Escape([]byte{b}, asyncmap)
			appearsUnescaped := len(escaped) == 1 && escaped[0] == b

			wantUnescaped := b != flagByte && b != escapeByte &&
				(b >= 0x20 || asyncmap&(1<<uint(b)) == 0)

			if appearsUnescaped != wantUnescaped {
				t.Errorf("byte %#x under asyncmap %#x: appearsUnescaped=%v want=%v", b, asyncmap, appearsUnescaped, wantUnescaped)
			}
		}
	}
}

func TestEscapeEmitsLiteralRun(t *testing.T) {
	// A correct encoder must emit the unescaped bytes preceding an
	// escape, not just the escape pairs.
	in := []byte{0x41, 0x42, 0x01, 0x43}
	got := Escape(in, AllControlEscaped)
	want := []byte{0x41, 0x42, escapeByte, 0x01 ^ escapeXOR, 0x43}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Escape() mismatch (-want +got):\n%s", diff)
	}
}
