package fdpipe

import (
	"bytes"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/tunnelcore/pppcore/transport"
)

func TestRoundTrip(t *testing.T) {
	a, b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	defer b.Close()

	msg := []byte("hello ppp")
	if _, err := a.Write(msg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := b.Read(65536)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("got %q, want %q", got, msg)
	}
}

func TestReadWouldBlock(t *testing.T) {
	a, b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	defer b.Close()

	_, err = b.Read(65536)
	if !errors.Is(err, transport.ErrWouldBlock) {
		t.Errorf("got err %v, want ErrWouldBlock", err)
	}
}

// TestWriteWouldBlock shrinks the socketpair's send buffer so a write
// large enough to exceed it reports ErrWouldBlock instead of
// completing, then verifies the identical payload succeeds once the
// peer drains its end, matching the byte-identical-retry contract of
// spec.md §5 (session.retryPendingWrite is the caller that relies on
// this at a higher layer; this test exercises the raw transport).
func TestWriteWouldBlock(t *testing.T) {
	a, b, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()
	defer b.Close()

	if err := unix.SetsockoptInt(a.fd, unix.SOL_SOCKET, unix.SO_SNDBUF, 1024); err != nil {
		t.Fatalf("SetsockoptInt SNDBUF: %v", err)
	}

	// Small relative to SNDBUF so the kernel queues several whole
	// datagrams before blocking, rather than rejecting a single write
	// outright as oversized.
	msg := bytes.Repeat([]byte{0x42}, 256)
	var blocked bool
	for i := 0; i < 256; i++ {
		if _, err := a.Write(msg); err != nil {
			if errors.Is(err, transport.ErrWouldBlock) {
				blocked = true
				break
			}
			t.Fatalf("Write: %v", err)
		}
	}
	if !blocked {
		t.Fatal("never observed ErrWouldBlock after filling the send buffer")
	}

	// Drain the peer so the retry has room to complete, then resend
	// the exact same bytes.
	for {
		if _, err := b.Read(65536); errors.Is(err, transport.ErrWouldBlock) {
			break
		} else if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if _, err := a.Write(msg); err != nil {
		t.Fatalf("retry Write: %v", err)
	}
	got, err := b.Read(65536)
	if err != nil {
		t.Fatalf("Read after retry: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Error("retried write delivered bytes that differ from the original payload")
	}
}
