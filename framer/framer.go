// Package framer implements the outer F5 encapsulation and inner PPP
// header framing/deframing of spec.md §4.3: the F5 raw/HDLC outer
// header, Address/Control/Protocol compression on send, and their
// inverse on receive, including the exp_ppp_hdr_size re-alignment
// hint.
package framer

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/tunnelcore/pppcore/hdlc"
	"github.com/tunnelcore/pppcore/packet"
	"github.com/tunnelcore/pppcore/wire"
)

// Encap identifies the outer encapsulation in use for a session.
type Encap int

const (
	// F5Raw carries the PPP frame unmodified inside the outer F5
	// header.
	F5Raw Encap = iota
	// F5HDLC additionally byte-stuffs the PPP frame per RFC 1662
	// before wrapping it in the outer F5 header.
	F5HDLC
)

// OuterHeaderLen is the fixed length of the F5 outer header: magic,
// reserved byte, and a 16-bit big-endian payload length.
const OuterHeaderLen = 4

// HeaderReserve is the reserved-header-region size a Packet destined
// for transmission must carry, per spec.md §3's invariant that it is
// always at least encap_len + max_ppp_header_bytes.
const HeaderReserve = OuterHeaderLen + packet.MaxPPPHeaderBytes

const (
	outerMagic    = 0xf5
	outerReserved = 0x00
)

// ErrOuterHeaderMismatch is returned when the outer header's magic
// byte or declared length doesn't match the received block; spec.md
// §7 treats this as a soft error (log and drop), not fatal.
var ErrOuterHeaderMismatch = errors.New("framer: outer header mismatch")

// ErrMalformedPPP is returned when the inner Address/Control bytes
// are absent and ACCOMP was not negotiated; spec.md §7 treats this as
// fatal.
var ErrMalformedPPP = errors.New("framer: malformed PPP header")

const (
	addressByte = 0xff
	controlByte = 0x03
)

// Options is the bit-set of negotiated LCP options governing field
// compression, named after the option tags of spec.md §6.
type Options uint8

const (
	// ACCOMP omits Address and Control bytes on non-LCP frames.
	ACCOMP Options = 1 << iota
	// PFCOMP sends a single-byte protocol field when it fits.
	PFCOMP
)

// WrapOuter prepends the F5 outer header to pppFrame, which must
// already be the complete (possibly HDLC-escaped) PPP frame.
func WrapOuter(pppFrame []byte) []byte {
	out := make([]byte, OuterHeaderLen+len(pppFrame))
	out[0] = outerMagic
	out[1] = outerReserved
	binary.BigEndian.PutUint16(out[2:4], uint16(len(pppFrame)))
	copy(out[OuterHeaderLen:], pppFrame)
	return out
}

// UnwrapOuter validates and strips the F5 outer header from a
// transport-delivered block, returning the enclosed (possibly
// HDLC-escaped) PPP frame.
func UnwrapOuter(block []byte) ([]byte, error) {
	if len(block) < OuterHeaderLen {
		return nil, ErrOuterHeaderMismatch
	}
	if block[0] != outerMagic || block[1] != outerReserved {
		return nil, ErrOuterHeaderMismatch
	}
	payloadLen := int(binary.BigEndian.Uint16(block[2:4]))
	if payloadLen != len(block)-OuterHeaderLen {
		return nil, ErrOuterHeaderMismatch
	}
	return block[OuterHeaderLen:], nil
}

// EncodeInner builds the inner PPP frame (Address/Control/Protocol,
// compressed per opts, followed by payload). LCP frames are always
// sent uncompressed regardless of opts, per spec.md §4.3.
func EncodeInner(proto wire.Proto, payload []byte, opts Options) []byte {
	out := make([]byte, 0, 4+len(payload))

	isLCP := proto == wire.ProtoLCP
	if isLCP || opts&ACCOMP == 0 {
		out = append(out, addressByte, controlByte)
	}

	if !isLCP && opts&PFCOMP != 0 && proto < 0x100 && proto&1 != 0 {
		out = append(out, uint8(proto))
	} else {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(proto))
		out = append(out, b[:]...)
	}

	return append(out, payload...)
}

// innerHeaderBytes returns just the inner Address/Control/Protocol
// header that EncodeInner would prepend, without touching the
// payload, so callers can write it into a Packet's reserved header
// region instead of allocating a fresh buffer.
func innerHeaderBytes(proto wire.Proto, opts Options) []byte {
	var out []byte
	isLCP := proto == wire.ProtoLCP
	if isLCP || opts&ACCOMP == 0 {
		out = append(out, addressByte, controlByte)
	}
	if !isLCP && opts&PFCOMP != 0 && proto < 0x100 && proto&1 != 0 {
		out = append(out, uint8(proto))
	} else {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(proto))
		out = append(out, b[:]...)
	}
	return out
}

// outerHeaderBytes returns the F5 outer header for a PPP frame of the
// given length.
func outerHeaderBytes(pppFrameLen int) []byte {
	var out [OuterHeaderLen]byte
	out[0] = outerMagic
	out[1] = outerReserved
	binary.BigEndian.PutUint16(out[2:4], uint16(pppFrameLen))
	return out[:]
}

// Send builds the complete on-wire block for pkt under the given
// negotiated options, encapsulation and (for HDLC) asyncmap. For the
// F5Raw encapsulation this writes both headers backwards into pkt's
// reserved header region per spec.md §9, requiring no copy of the
// payload; F5HDLC's byte-stuffing inherently changes length, so that
// path allocates.
func Send(pkt *packet.Packet, proto wire.Proto, opts Options, encap Encap, asyncmap uint32) []byte {
	if encap == F5Raw {
		full := pkt.Prepend(innerHeaderBytes(proto, opts))
		return pkt.Prepend(outerHeaderBytes(len(full)))
	}

	frame := EncodeInner(proto, pkt.Payload(), opts)
	if proto == wire.ProtoLCP {
		asyncmap = hdlc.AllControlEscaped
	}
	frame = HDLCEncode(frame, asyncmap)
	return WrapOuter(frame)
}

// Decoded is the result of deframing one inner PPP frame.
type Decoded struct {
	Proto      wire.Proto
	Payload    []byte
	HeaderSize int
}

// DecodeInner parses the inner PPP header from frame using the
// negotiated incoming options, returning the protocol, payload, and
// the number of header bytes consumed (Address+Control+Protocol).
func DecodeInner(frame []byte, opts Options) (*Decoded, error) {
	p := frame
	headerSize := 0

	if len(p) >= 2 && p[0] == addressByte && p[1] == controlByte {
		p = p[2:]
		headerSize += 2
	} else if opts&ACCOMP == 0 {
		return nil, ErrMalformedPPP
	}

	if len(p) < 1 {
		return nil, fmt.Errorf("framer: frame too short for protocol field")
	}

	var proto wire.Proto
	if opts&PFCOMP != 0 && p[0]&1 != 0 {
		proto = wire.Proto(p[0])
		p = p[1:]
		headerSize++
	} else {
		if len(p) < 2 {
			return nil, fmt.Errorf("framer: frame too short for 2-byte protocol field")
		}
		proto = wire.Proto(binary.BigEndian.Uint16(p[:2]))
		p = p[2:]
		headerSize += 2
	}

	return &Decoded{Proto: proto, Payload: p, HeaderSize: headerSize}, nil
}

// HDLCEncode byte-stuffs a complete PPP frame under asyncmap. LCP
// negotiation frames must pass hdlc.AllControlEscaped.
func HDLCEncode(ppp []byte, asyncmap uint32) []byte {
	return hdlc.Escape(ppp, asyncmap)
}

// HDLCDecode reverses HDLCEncode.
func HDLCDecode(raw []byte) []byte {
	return hdlc.Unescape(raw)
}

// HeaderSizeTracker maintains the exp_ppp_hdr_size hint of spec.md
// §4.3: the observed header size of the last successfully received
// data frame, used to pre-position receive buffers so IP payloads
// arrive aligned without a memmove. When an observed size differs
// from the hint, the caller must memmove the payload to the
// canonical offset; this tracker only maintains the hint itself.
type HeaderSizeTracker struct {
	hint int
}

// NewHeaderSizeTracker creates a tracker seeded with the maximum
// possible header size, matching the "pre-align receive buffers"
// default described in spec.md §3.
func NewHeaderSizeTracker() *HeaderSizeTracker {
	return &HeaderSizeTracker{hint: packet.MaxPPPHeaderBytes}
}

// Hint returns the current header-size hint.
func (h *HeaderSizeTracker) Hint() int { return h.hint }

// Observe records the header size of a just-decoded data frame,
// reporting whether it differs from the previous hint (i.e. whether
// the caller must memmove the payload to the canonical offset).
func (h *HeaderSizeTracker) Observe(size int) (changed bool) {
	changed = size != h.hint
	h.hint = size
	return changed
}
