package wire

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPacketRoundTrip(t *testing.T) {
	tests := []struct {
		desc string
		pkt  *Packet
	}{
		{"configure-request with options", &Packet{
			Code:    CodeConfigureRequest,
			ID:      1,
			Options: []byte{1, 4, 0x05, 0xdc},
		}},
		{"terminate-request with reason", &Packet{
			Code: CodeTerminateRequest,
			ID:   7,
			Data: []byte("bye"),
		}},
		{"echo-request with magic", &Packet{
			Code: CodeEchoRequest,
			ID:   3,
			Data: []byte{0x11, 0x22, 0x33, 0x44},
		}},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			raw := tc.pkt.Bytes()
			got, err := Parse(raw)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			// Parse never splits the body between Options and Data; it
			// always lands everything in Options, so build the expected
			// Packet the same way before comparing.
			want := &Packet{
				Code:    tc.pkt.Code,
				ID:      tc.pkt.ID,
				Options: append(append([]byte{}, tc.pkt.Options...), tc.pkt.Data...),
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parse mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseTolerantOfTrailingPadding(t *testing.T) {
	raw := append((&Packet{Code: CodeConfigureAck, ID: 1, Options: []byte{7, 2}}).Bytes(), 0, 0, 0)
	got, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Code != CodeConfigureAck || got.ID != 1 {
		t.Errorf("got %+v", got)
	}
}

func TestParseShort(t *testing.T) {
	if _, err := Parse([]byte{1, 2}); err != ErrShortPacket {
		t.Errorf("got err %v, want ErrShortPacket", err)
	}
}

func TestParseOverflowLength(t *testing.T) {
	raw := []byte{1, 1, 0, 10}
	if _, err := Parse(raw); err == nil {
		t.Errorf("Parse succeeded, want error for overflowing length")
	}
}
