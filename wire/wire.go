// Package wire defines PPP protocol numbers and the control-packet
// envelope (code, id, length, options) shared by LCP, IPCP and IP6CP,
// generalizing the per-protocol Configure/Terminate/Echo exchange of
// RFC 1661 §5.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Proto is a PPP protocol number, carried in the (optionally
// compressed) protocol field of a PPP frame.
type Proto uint16

// PPP protocol numbers this core understands.
const (
	ProtoLCP   Proto = 0xc021
	ProtoIPCP  Proto = 0x8021
	ProtoIP6CP Proto = 0x8057
	ProtoIP    Proto = 0x0021
	ProtoIPv6  Proto = 0x0057
)

func (p Proto) String() string {
	switch p {
	case ProtoLCP:
		return "LCP"
	case ProtoIPCP:
		return "IPCP"
	case ProtoIP6CP:
		return "IP6CP"
	case ProtoIP:
		return "IP"
	case ProtoIPv6:
		return "IPv6"
	default:
		return fmt.Sprintf("Proto(%#04x)", uint16(p))
	}
}

// Code is a control-packet type code, shared across all three NCPs.
type Code uint8

// Control-packet codes (RFC 1661 §5-§6).
const (
	CodeConfigureRequest Code = 1
	CodeConfigureAck     Code = 2
	CodeConfigureNak     Code = 3
	CodeConfigureReject  Code = 4
	CodeTerminateRequest Code = 5
	CodeTerminateAck     Code = 6
	CodeCodeReject       Code = 7
	CodeProtocolReject   Code = 8
	CodeEchoRequest      Code = 9
	CodeEchoReply        Code = 10
	CodeDiscardRequest   Code = 11
)

func (c Code) String() string {
	switch c {
	case CodeConfigureRequest:
		return "Configure-Request"
	case CodeConfigureAck:
		return "Configure-Ack"
	case CodeConfigureNak:
		return "Configure-Nak"
	case CodeConfigureReject:
		return "Configure-Reject"
	case CodeTerminateRequest:
		return "Terminate-Request"
	case CodeTerminateAck:
		return "Terminate-Ack"
	case CodeCodeReject:
		return "Code-Reject"
	case CodeProtocolReject:
		return "Protocol-Reject"
	case CodeEchoRequest:
		return "Echo-Request"
	case CodeEchoReply:
		return "Echo-Reply"
	case CodeDiscardRequest:
		return "Discard-Request"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// ErrShortPacket is returned when a control packet is too short to
// contain its mandatory header.
var ErrShortPacket = errors.New("control packet shorter than header")

// Packet is the code/id/length/options envelope shared by LCP, IPCP
// and IP6CP control frames. For Configure-* codes, Options is the
// TLV-encoded option list. For other codes (Terminate-*, Code-Reject,
// Echo-*, Discard-Request) the body has no TLV structure; callers use
// Options and/or Data to control byte order when building one (e.g. a
// magic number before a payload). Parse does not distinguish the two:
// it returns every byte following the header in Options, since at
// parse time the caller already knows from Code which interpretation
// applies.
type Packet struct {
	Code    Code
	ID      uint8
	Options []byte
	Data    []byte
}

// Parse decodes a control packet body (the bytes immediately
// following the PPP protocol field). Trailing padding beyond the
// declared length is ignored per RFC 1661, which explicitly allows
// framing layers to pad frames.
func Parse(b []byte) (*Packet, error) {
	if len(b) < 4 {
		return nil, ErrShortPacket
	}
	length := int(binary.BigEndian.Uint16(b[2:4]))
	if length < 4 {
		return nil, fmt.Errorf("control packet length %d shorter than header", length)
	}
	if length > len(b) {
		return nil, io.ErrUnexpectedEOF
	}
	return &Packet{
		Code:    Code(b[0]),
		ID:      b[1],
		Options: append([]byte(nil), b[4:length]...),
	}, nil
}

// Bytes serializes the packet back to wire format, computing the
// length field from the actual payload.
func (p *Packet) Bytes() []byte {
	out := make([]byte, 4, 4+len(p.Options)+len(p.Data))
	out[0] = uint8(p.Code)
	out[1] = p.ID
	out = append(out, p.Options...)
	out = append(out, p.Data...)
	binary.BigEndian.PutUint16(out[2:4], uint16(len(out)))
	return out
}
