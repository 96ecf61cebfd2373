// Package packet implements the Packet buffer model of spec.md §3: a
// byte buffer with a reserved header region sized so the framer can
// write encapsulation headers backwards into the prefix without a
// memmove, modeled as a buffer plus an offset rather than raw pointer
// arithmetic.
package packet

import (
	"sync"

	"github.com/tunnelcore/pppcore/wire"
)

// MaxPPPHeaderBytes is the largest possible inner PPP header
// (Address + Control + 2-byte Protocol).
const MaxPPPHeaderBytes = 4

// Packet is a chunk of bytes with a payload region and a reserved
// header region preceding it. buf[off:off+n] is the payload; buf[:off]
// is free space the framer may write into, working backwards from
// off, before handing the packet to the transport.
type Packet struct {
	buf []byte
	off int
	n   int

	// Proto is the PPP protocol number to stamp at send time for
	// packets queued on the control path. Zero for data packets,
	// whose protocol is derived from the IP version of the payload.
	Proto wire.Proto
}

// New allocates a Packet sized for a payload of up to payloadCap bytes
// plus a reserved header region of headerLen bytes.
func New(headerLen, payloadCap int) *Packet {
	return &Packet{
		buf: make([]byte, headerLen+payloadCap),
		off: headerLen,
	}
}

// NewFromPayload wraps an existing payload, reserving headerLen bytes
// ahead of it. The payload is copied into the new buffer.
func NewFromPayload(headerLen int, payload []byte) *Packet {
	p := New(headerLen, len(payload))
	p.n = copy(p.buf[p.off:], payload)
	return p
}

// Payload returns the packet's current payload bytes.
func (p *Packet) Payload() []byte {
	return p.buf[p.off : p.off+p.n]
}

// SetPayload replaces the payload, reusing the buffer's reserved
// header region. If the new payload doesn't fit in the buffer after
// the header, the buffer is reallocated larger, keeping the header
// region.
func (p *Packet) SetPayload(b []byte) {
	if p.off+len(b) > len(p.buf) {
		grown := make([]byte, p.off+len(b))
		copy(grown, p.buf[:p.off])
		p.buf = grown
	}
	p.n = copy(p.buf[p.off:], b)
}

// Prepend writes b immediately before the current payload, growing
// the payload to include it, and returns the full
// header-plus-payload byte range. It panics if b doesn't fit in the
// reserved header region; callers size the reservation so this never
// happens for in-scope encapsulations (encap_len + 4, per spec.md §3).
func (p *Packet) Prepend(b []byte) []byte {
	if len(b) > p.off {
		panic("packet: reserved header region too small for prepend")
	}
	start := p.off - len(b)
	copy(p.buf[start:p.off], b)
	p.off = start
	p.n += len(b)
	return p.buf[p.off : p.off+p.n]
}

// HeaderRoom returns the number of bytes still free ahead of the
// payload.
func (p *Packet) HeaderRoom() int {
	return p.off
}

// Pool hands out Packets sized for a given header reservation and
// payload capacity, avoiding the "reuse one preallocated Packet and
// memmove past its end" hazard noted in spec.md §9: each Get returns a
// Packet that is logically fresh (zero payload, full header room)
// even though its backing array may be recycled.
type Pool struct {
	HeaderLen  int
	PayloadCap int

	pool sync.Pool
}

// Get returns a logically fresh Packet from the pool's sizing.
func (p *Pool) Get() *Packet {
	if v := p.pool.Get(); v != nil {
		pkt := v.(*Packet)
		pkt.off = p.HeaderLen
		pkt.n = 0
		pkt.Proto = 0
		return pkt
	}
	return New(p.HeaderLen, p.PayloadCap)
}

// Put returns a Packet to the pool for reuse by a future Get. Callers
// must not touch pkt after calling Put.
func (p *Pool) Put(pkt *Packet) {
	if cap(pkt.buf) < p.HeaderLen+p.PayloadCap {
		return
	}
	p.pool.Put(pkt)
}
