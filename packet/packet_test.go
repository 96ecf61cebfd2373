package packet

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPrependNoCopyOfPayload(t *testing.T) {
	p := NewFromPayload(8, []byte{0xaa, 0xbb, 0xcc})
	if p.HeaderRoom() != 8 {
		t.Fatalf("HeaderRoom() = %d, want 8", p.HeaderRoom())
	}

	full := p.Prepend([]byte{1, 2, 3})
	want := []byte{1, 2, 3, 0xaa, 0xbb, 0xcc}
	if diff := cmp.Diff(want, full); diff != "" {
		t.Errorf("Prepend mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{0xaa, 0xbb, 0xcc}, p.Payload()); diff != "" {
		t.Errorf("Prepend must not disturb the payload (-want +got):\n%s", diff)
	}
	if p.HeaderRoom() != 5 {
		t.Errorf("HeaderRoom() after prepend = %d, want 5", p.HeaderRoom())
	}
}

func TestPrependOverflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic when prepend exceeds reserved header room")
		}
	}()
	p := NewFromPayload(2, []byte{1})
	p.Prepend([]byte{1, 2, 3})
}

func TestPoolGetIsFresh(t *testing.T) {
	pool := &Pool{HeaderLen: 8, PayloadCap: 64}
	a := pool.Get()
	a.SetPayload([]byte{1, 2, 3})
	a.Prepend([]byte{0xff})
	pool.Put(a)

	b := pool.Get()
	if b.HeaderRoom() != 8 {
		t.Errorf("reused Packet HeaderRoom() = %d, want 8", b.HeaderRoom())
	}
	if len(b.Payload()) != 0 {
		t.Errorf("reused Packet has non-empty payload: %x", b.Payload())
	}
}
