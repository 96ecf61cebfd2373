// Package transport defines the external collaborator interfaces this
// core consumes per spec.md §6: a non-blocking byte transport, the
// control/data packet queues, and the keepalive/DPD engine. None of
// these are implemented here in production form — the TLS/DTLS
// transport, tun/tap queues and DPD policy all live outside this
// core's scope (spec.md §1) — except the test-only reference
// transport in the fdpipe subpackage.
package transport

import (
	"errors"

	"github.com/tunnelcore/pppcore/packet"
)

// ErrWouldBlock is returned by Read/Write when no data is currently
// available or the transport's send buffer is full. The caller must
// retry later; for Write, spec.md §5 requires the retry use the exact
// same byte range.
var ErrWouldBlock = errors.New("transport: would block")

// Transport is a non-blocking, bidirectional byte pipe. The core never
// blocks on it: Read and Write both return immediately, signaling
// ErrWouldBlock when there is nothing to do yet.
type Transport interface {
	// Read returns one transport-delimited block of bytes, of at most
	// maxLen, or ErrWouldBlock if the transport is not currently
	// readable. Callers size maxLen per spec.md §4.7's
	// max(16384, negotiated MTU) bound.
	Read(maxLen int) ([]byte, error)
	// Write attempts to send b. It may return fewer bytes than
	// len(b) plus ErrWouldBlock, in which case the caller must retry
	// with the exact same slice (same address and length) on a later
	// tick — the underlying secure transport may require
	// byte-identical retries.
	Write(b []byte) (n int, err error)
	// Reconnect tears down and re-establishes the underlying
	// transport, e.g. after a TransportFailure or a keepalive/DPD
	// engine verdict of DpdDead or Rekey.
	Reconnect() error
}

// KeepaliveVerdict is one tick's decision from the keepalive/DPD
// engine, per spec.md §4.7 step 5.
type KeepaliveVerdict int

// Keepalive/DPD verdicts.
const (
	// KeepaliveNone means no keepalive action is due this tick.
	KeepaliveNone KeepaliveVerdict = iota
	// Keepalive means a Discard-Request should be sent if no other
	// control or (when applicable) data traffic is pending.
	Keepalive
	// Dpd means an LCP Echo-Request should be sent carrying our
	// magic number.
	Dpd
	// Rekey means the transport should be reconnected to rotate keys.
	Rekey
	// DpdDead means the peer has failed to respond to DPD; the
	// transport should be reconnected.
	DpdDead
)

// KeepaliveEngine is consumed once per mainloop tick; its policy
// (interval, retry counts, etc.) lives entirely outside this core.
type KeepaliveEngine interface {
	Tick(now int64) KeepaliveVerdict
}

// Queue is a FIFO of Packets with a non-destructive head-peek, used
// for both the control queue and the egress/ingress data queues of
// spec.md §6. Implementations are responsible for their own
// cross-agent synchronization discipline (spec.md §5); this core only
// ever calls these methods from its single owning mainloop.
type Queue interface {
	// Enqueue appends p to the tail of the queue.
	Enqueue(p *packet.Packet)
	// Peek returns the head of the queue without removing it, or nil
	// if the queue is empty.
	Peek() *packet.Packet
	// Dequeue removes and returns the head of the queue, or nil if
	// the queue is empty.
	Dequeue() *packet.Packet
	// Empty reports whether the queue currently has no packets.
	Empty() bool
}

// IPConfig carries the local IP configuration consumed and updated by
// IPCP/IP6CP negotiation: local addresses for outgoing Configure-
// Requests, and the peer-negotiated MTU once known.
type IPConfig struct {
	LocalIPv4 [4]byte
	HaveIPv4  bool
	LocalIPv6 [16]byte
	HaveIPv6  bool
	MTU       uint16
}
