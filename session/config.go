package session

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-kit/kit/log/level"

	"github.com/tunnelcore/pppcore/framer"
	"github.com/tunnelcore/pppcore/ncp"
	"github.com/tunnelcore/pppcore/tlv"
	"github.com/tunnelcore/pppcore/wire"
)

// LCP option tags (spec.md §6).
const (
	lcpOptMRU      = 1
	lcpOptASyncmap = 2
	lcpOptMagic    = 5
	lcpOptPFC      = 7
	lcpOptACFC     = 8
)

// IPCP option tags.
const (
	ipcpOptCompression = 2
	ipcpOptAddress     = 3

	ipcpCompressionVJ = 0x002d
)

// IP6CP option tags.
const (
	ip6cpOptInterfaceID = 1
)

const defaultMTU = 1300

// buildConfigureRequest serializes the outgoing Configure-Request
// body for the given NCP, per spec.md §4.4.
func (s *Session) buildConfigureRequest(k ncpKind) []byte {
	var opts []byte

	switch k {
	case lcpKind:
		mtu := s.ip.MTU
		if mtu == 0 {
			mtu = defaultMTU
		}
		opts = tlv.AppendUint16(opts, lcpOptMRU, mtu)
		opts = tlv.AppendUint32(opts, lcpOptASyncmap, 0)

		if !s.haveOutMagic {
			if s.haveInMagic {
				s.outLCPMagic = ^s.inLCPMagic
			} else {
				s.outLCPMagic = 0x2a2a2a2a
			}
			s.haveOutMagic = true
		}
		opts = tlv.AppendUint32(opts, lcpOptMagic, s.outLCPMagic)
		opts = tlv.Append(opts, lcpOptPFC, nil)
		opts = tlv.Append(opts, lcpOptACFC, nil)

	case ipcpKind:
		opts = tlv.Append(opts, ipcpOptAddress, s.peerIPv4OrLocal())

	case ip6cpKind:
		opts = tlv.Append(opts, ip6cpOptInterfaceID, s.localIPv6IID())
	}

	// Per spec.md §4.5, the request id is fixed at 1 and never
	// incremented on retry (see DESIGN.md's Open Question resolution).
	pkt := &wire.Packet{Code: wire.CodeConfigureRequest, ID: 1, Options: opts}
	return pkt.Bytes()
}

// peerIPv4OrLocal returns the IPv4 address we offer in our IPCP
// Configure-Request: our locally configured address if there is one,
// otherwise the address learned from the peer's IPCP Configure-Request
// (all zeros if none has arrived yet).
func (s *Session) peerIPv4OrLocal() []byte {
	if s.ip.HaveIPv4 {
		return s.ip.LocalIPv4[:]
	}
	return s.peerIPv4[:]
}

// localIPv6IID returns the low 64 bits of our configured IPv6
// address, used as the IP6CP interface identifier.
func (s *Session) localIPv6IID() []byte {
	return s.ip.LocalIPv6[8:16]
}

// queueConfigureRequest enqueues a Configure-Request for k and marks
// it as sent, choosing HDLC asyncmap per spec.md §4.4 (LCP always
// uses AllControlEscaped via the framer's normal LCP handling at send
// time; this function only builds and queues the control payload).
func (s *Session) queueConfigureRequest(now time.Time, k ncpKind) {
	rec := &s.ncps[k]
	body := s.buildConfigureRequest(k)
	retransmit := rec.Progress&ncp.ConfReqSent != 0
	rec.MarkRequestSent(now)

	if retransmit {
		switch k {
		case lcpKind:
			s.stats.LCPRetransmits++
		case ipcpKind:
			s.stats.IPCPRetransmits++
		case ip6cpKind:
			s.stats.IP6CPRetransmits++
		}
	}

	level.Debug(s.logger).Log("message", "queueing Configure-Request", "ncp", k, "id", rec.ReqID)
	s.enqueueControl(k.proto(), body)
}

// evaluateNCPTimers retransmits Configure-Requests that are due, for
// every NCP relevant to the current phase, per spec.md §4.5-4.6.
func (s *Session) evaluateNCPTimers(now time.Time) {
	switch s.phase {
	case Establish:
		if s.ncps[lcpKind].DueForRetransmit(now) {
			s.queueConfigureRequest(now, lcpKind)
		}
	case Opened:
		for _, k := range []ncpKind{ipcpKind, ip6cpKind} {
			if !s.wantNCP(k) {
				continue
			}
			if s.ncps[k].DueForRetransmit(now) {
				s.queueConfigureRequest(now, k)
			}
		}
	}
}

// evaluatePhase advances the phase machine per spec.md §4.6, run once
// per tick before I/O.
func (s *Session) evaluatePhase(now time.Time) error {
	switch s.phase {
	case Dead:
		s.setPhase(now, Establish)
		fallthrough
	case Establish:
		if s.ncps[lcpKind].Converged() {
			s.setPhase(now, Opened)
			return s.evaluatePhase(now)
		}
	case Opened:
		if s.allWantedConverged(ipcpKind, ip6cpKind) {
			s.setPhase(now, Network)
		}
	case Network, Terminate:
		// No phase-machine work; Network is terminal for forward
		// progress, Terminate is reported back to the caller by Tick.
	case Authenticate:
		s.quitReason = "Unexpected state"
		s.setPhase(now, Terminate)
		return fmt.Errorf("session: entered unsupported Authenticate phase")
	}
	s.evaluateNCPTimers(now)
	return nil
}

// handleControlFrame dispatches a decoded LCP/IPCP/IP6CP frame to the
// config exchange, per spec.md §4.4.
func (s *Session) handleControlFrame(now time.Time, proto wire.Proto, payload []byte) error {
	var k ncpKind
	switch proto {
	case wire.ProtoLCP:
		k = lcpKind
	case wire.ProtoIPCP:
		k = ipcpKind
	case wire.ProtoIP6CP:
		k = ip6cpKind
	default:
		return fmt.Errorf("session: unsupported protocol %v", proto)
	}

	pkt, err := wire.Parse(payload)
	if err != nil {
		return fmt.Errorf("session: parsing %v control packet: %w", proto, err)
	}

	switch pkt.Code {
	case wire.CodeConfigureRequest:
		return s.handleConfigureRequest(now, k, pkt)
	case wire.CodeConfigureAck:
		s.ncps[k].Set(ncp.ConfAckReceived)
		if k == lcpKind {
			// Our own Configure-Request always carries PFC and ACFC
			// (buildConfigureRequest); the peer acking it is what
			// licenses us to start sending compressed frames.
			s.outOpts |= framer.PFCOMP | framer.ACCOMP
		}
		level.Debug(s.logger).Log("message", "Configure-Ack received", "ncp", k)
		return nil
	case wire.CodeConfigureNak, wire.CodeConfigureReject, wire.CodeCodeReject, wire.CodeProtocolReject:
		return fmt.Errorf("session: fatal %v received for %v", pkt.Code, proto)
	case wire.CodeTerminateRequest:
		s.ncps[k].Set(ncp.TermReqReceived)
		s.quitReason = string(pkt.Options)
		s.enqueueControl(proto, (&wire.Packet{Code: wire.CodeTerminateAck, ID: pkt.ID}).Bytes())
		s.ncps[k].Set(ncp.TermAckSent)
		s.setPhase(now, Terminate)
		return nil
	case wire.CodeTerminateAck:
		s.ncps[k].Set(ncp.TermAckReceived)
		s.quitReason = string(pkt.Options)
		s.setPhase(now, Terminate)
		return nil
	case wire.CodeEchoRequest:
		if s.phase >= Opened {
			var magic [4]byte
			binary.BigEndian.PutUint32(magic[:], s.outLCPMagic)
			s.enqueueControl(proto, (&wire.Packet{Code: wire.CodeEchoReply, ID: pkt.ID, Options: magic[:]}).Bytes())
		}
		return nil
	case wire.CodeEchoReply, wire.CodeDiscardRequest:
		return nil
	default:
		return fmt.Errorf("session: unhandled control code %v", pkt.Code)
	}
}

// handleConfigureRequest absorbs a peer Configure-Request's options
// and, on success, echoes them back as a Configure-Ack. Per spec.md
// §4.4 and the open-question resolution in DESIGN.md, any TLV this
// core doesn't recognize fails the whole request (fatal), rather than
// emitting a Configure-Reject.
func (s *Session) handleConfigureRequest(now time.Time, k ncpKind, pkt *wire.Packet) error {
	opts, err := tlv.Decode(pkt.Options)
	if err != nil {
		return fmt.Errorf("session: decoding %v Configure-Request options: %w", k, err)
	}

	for _, o := range opts {
		if err := s.absorbOption(k, o); err != nil {
			return err
		}
	}

	s.ncps[k].Set(ncp.ConfReqReceived)
	s.ncps[k].Set(ncp.ConfAckSent)
	level.Debug(s.logger).Log("message", "Configure-Request accepted", "ncp", k, "id", pkt.ID)
	s.enqueueControl(k.proto(), (&wire.Packet{Code: wire.CodeConfigureAck, ID: pkt.ID, Options: pkt.Options}).Bytes())
	return nil
}

func (s *Session) absorbOption(k ncpKind, o tlv.Option) error {
	switch k {
	case lcpKind:
		switch o.Tag {
		case lcpOptMRU:
			if len(o.Value) != 2 {
				return fmt.Errorf("session: LCP MRU option has length %d, want 2", len(o.Value))
			}
			s.ip.MTU = binary.BigEndian.Uint16(o.Value)
		case lcpOptASyncmap:
			if len(o.Value) != 4 {
				return fmt.Errorf("session: LCP asyncmap option has length %d, want 4", len(o.Value))
			}
			s.inAsyncmap = binary.BigEndian.Uint32(o.Value)
		case lcpOptMagic:
			if len(o.Value) != 4 {
				return fmt.Errorf("session: LCP magic option has length %d, want 4", len(o.Value))
			}
			s.inLCPMagic = binary.BigEndian.Uint32(o.Value)
			s.haveInMagic = true
		case lcpOptPFC:
			s.inOpts |= framer.PFCOMP
		case lcpOptACFC:
			s.inOpts |= framer.ACCOMP
		default:
			return fmt.Errorf("session: unknown LCP option %d", o.Tag)
		}

	case ipcpKind:
		switch o.Tag {
		case ipcpOptAddress:
			if len(o.Value) != 4 {
				return fmt.Errorf("session: IPCP address option has length %d, want 4", len(o.Value))
			}
			copy(s.peerIPv4[:], o.Value)
		case ipcpOptCompression:
			// Van Jacobson compression is recognized and accepted, but
			// the option is not stored anywhere and compression is not
			// applied; any other compression protocol is rejected.
			if len(o.Value) < 2 || binary.BigEndian.Uint16(o.Value[:2]) != ipcpCompressionVJ {
				return fmt.Errorf("session: unsupported IPCP compression option")
			}
		default:
			return fmt.Errorf("session: unknown IPCP option %d", o.Tag)
		}

	case ip6cpKind:
		switch o.Tag {
		case ip6cpOptInterfaceID:
			if len(o.Value) != 8 {
				return fmt.Errorf("session: IP6CP interface-id option has length %d, want 8", len(o.Value))
			}
			copy(s.peerIPv6IID[:], o.Value)
		default:
			return fmt.Errorf("session: unknown IP6CP option %d", o.Tag)
		}
	}
	return nil
}
