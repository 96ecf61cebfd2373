package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/kit/log/level"

	"github.com/tunnelcore/pppcore/framer"
	"github.com/tunnelcore/pppcore/ncp"
	"github.com/tunnelcore/pppcore/packet"
	"github.com/tunnelcore/pppcore/transport"
	"github.com/tunnelcore/pppcore/wire"
)

// Tick results, matching the contract of spec.md §6:
// "mainloop_tick(readable, &timeout) returning 0 = idle, >0 = progress
// or terminate, <0 = fatal".
const (
	TickIdle      = 0
	TickProgress  = 1
	TickTerminate = 2
	TickFatal     = -1
)

const minReadBufFloor = 16384

// readBufSize returns max(16384, negotiated MTU), per spec.md §4.7 step 3.
func (s *Session) readBufSize() int {
	if int(s.ip.MTU) > minReadBufFloor {
		return int(s.ip.MTU)
	}
	return minReadBufFloor
}

// Tick runs one mainloop iteration. readable hints that the transport
// may currently have data to read; timeout is narrowed in place to
// the next deadline the caller should sleep for, per spec.md §4.7 and
// §5.
func (s *Session) Tick(now time.Time, readable bool, timeout *time.Duration) int {
	if s.needReconnect {
		if err := s.xport.Reconnect(); err != nil {
			level.Error(s.logger).Log("message", "reconnect failed", "error", err)
			s.narrowTimeout(timeout, time.Second)
			return TickIdle
		}
		s.needReconnect = false
		s.pendingWrite = nil
	}

	if err := s.evaluatePhase(now); err != nil {
		level.Error(s.logger).Log("message", "fatal phase error", "error", err)
		return TickFatal
	}
	if s.phase == Terminate {
		return TickTerminate
	}

	for readable {
		frame, err := s.xport.Read(s.readBufSize())
		if errors.Is(err, transport.ErrWouldBlock) {
			break
		}
		if err != nil {
			level.Error(s.logger).Log("message", "transport read failed", "error", err)
			s.needReconnect = true
			break
		}

		s.stats.FramesReceived++
		s.stats.BytesReceived += uint64(len(frame))

		result, fatal := s.receiveFrame(now, frame)
		if fatal != nil {
			level.Error(s.logger).Log("message", "fatal receive error", "error", fatal)
			return TickFatal
		}
		if result == TickTerminate {
			// Stop reading, but still fall through to the write section
			// below so a pending Terminate-Ack goes out this tick; the
			// terminate signal itself is reported on the next Tick, once
			// phase==Terminate is observed at the top of the function.
			break
		}
	}

	if len(s.pendingWrite) > 0 {
		if !s.retryPendingWrite() {
			s.narrowTimeout(timeout, 0)
			return TickProgress
		}
	}

	s.consultKeepalive(now)

	if len(s.pendingWrite) == 0 {
		s.trySendNext()
	}

	s.narrowTimeout(timeout, s.nextDeadline(now))
	return TickProgress
}

// narrowTimeout shortens *timeout to d if d is smaller, per spec.md §5.
func (s *Session) narrowTimeout(timeout *time.Duration, d time.Duration) {
	if timeout == nil {
		return
	}
	if d < *timeout {
		*timeout = d
	}
}

// nextDeadline computes how long the caller may sleep before the next
// NCP retransmit is due. Only NCPs wantNCP actually cares about are
// considered: an unwanted IPCP/IP6CP (or one not yet reachable in the
// current phase) sits at Progress==0 forever, and including it here
// would pin the sleep deadline at zero for the rest of the session.
// An NCP whose Configure-Ack was already received is never
// retransmitted, so it is skipped too.
func (s *Session) nextDeadline(now time.Time) time.Duration {
	best := 3 * time.Second
	for k := range s.ncps {
		if !s.wantNCP(ncpKind(k)) {
			continue
		}
		if ncpKind(k) != lcpKind && s.phase != Opened {
			continue
		}
		rec := &s.ncps[k]
		if rec.Progress&ncp.ConfAckReceived != 0 {
			continue
		}
		if rec.Progress == 0 {
			return 0
		}
		d := rec.LastReq.Add(3 * time.Second).Sub(now)
		if d < 0 {
			d = 0
		}
		if d < best {
			best = d
		}
	}
	return best
}

// receiveFrame decapsulates and dispatches one transport-delivered
// block, per spec.md §4.7 step 3. It returns TickTerminate if the
// frame caused a transition to Terminate, and a non-nil error for any
// fatal condition. Per spec.md §7, every fatal condition here sets
// s.quitReason so the outer layer can surface why the session ended.
func (s *Session) receiveFrame(now time.Time, block []byte) (int, error) {
	if len(block) < 8 {
		s.quitReason = "Short packet received"
		return TickIdle, fmt.Errorf("session: short packet received (%d bytes)", len(block))
	}

	pppFrame, err := framer.UnwrapOuter(block)
	if err != nil {
		level.Debug(s.logger).Log("message", "dropping frame with outer header mismatch", "error", err)
		s.stats.FramesDropped++
		return TickIdle, nil
	}

	if s.cfg.Encap == framer.F5HDLC {
		pppFrame = framer.HDLCDecode(pppFrame)
	}

	decoded, err := framer.DecodeInner(pppFrame, s.inOpts)
	if err != nil {
		s.quitReason = "Malformed PPP header"
		return TickIdle, fmt.Errorf("session: decoding inner PPP header: %w", err)
	}

	switch decoded.Proto {
	case wire.ProtoLCP, wire.ProtoIPCP, wire.ProtoIP6CP:
		if err := s.handleControlFrame(now, decoded.Proto, decoded.Payload); err != nil {
			s.quitReason = err.Error()
			return TickIdle, err
		}
		if s.phase == Terminate {
			return TickTerminate, nil
		}
		return TickIdle, nil

	case wire.ProtoIP, wire.ProtoIPv6:
		if s.phase != Network {
			level.Debug(s.logger).Log("message", "dropping data frame outside NETWORK phase", "phase", s.phase)
			s.stats.FramesDropped++
			return TickIdle, nil
		}
		payload := decoded.Payload
		if s.hdrSize.Observe(decoded.HeaderSize) {
			canonical := make([]byte, len(payload))
			copy(canonical, payload)
			payload = canonical
		}
		s.dataInQ.Enqueue(packet.NewFromPayload(0, payload))
		return TickIdle, nil

	default:
		s.quitReason = fmt.Sprintf("Unsupported protocol %v", decoded.Proto)
		return TickIdle, fmt.Errorf("session: unsupported PPP protocol %v", decoded.Proto)
	}
}

// retryPendingWrite retries the exact same byte range from an earlier
// WouldBlock, per spec.md §5's byte-identical-retry contract. It
// returns false while the transport still reports WouldBlock, and true
// once the write completes or fails with a hard error (the frame is
// then dropped and a reconnect is scheduled).
func (s *Session) retryPendingWrite() bool {
	n, err := s.xport.Write(s.pendingWrite)
	if errors.Is(err, transport.ErrWouldBlock) {
		return false
	}
	if err != nil {
		level.Error(s.logger).Log("message", "transport write failed", "error", err)
		s.needReconnect = true
		s.pendingWrite = nil
		return true
	}
	s.stats.FramesSent++
	s.stats.BytesSent += uint64(n)
	s.pendingWrite = nil
	return true
}

// consultKeepalive implements spec.md §4.7 step 5.
func (s *Session) consultKeepalive(now time.Time) {
	if s.ka == nil {
		return
	}
	switch s.ka.Tick(now.Unix()) {
	case transport.KeepaliveNone:
	case transport.Keepalive:
		if s.ctrlQ.Empty() && s.dataOutQ.Empty() {
			s.enqueueControl(wire.ProtoLCP, (&wire.Packet{Code: wire.CodeDiscardRequest, ID: s.allocID()}).Bytes())
		}
	case transport.Dpd:
		var magic [4]byte
		binary.BigEndian.PutUint32(magic[:], s.outLCPMagic)
		s.enqueueControl(wire.ProtoLCP, (&wire.Packet{Code: wire.CodeEchoRequest, ID: s.allocID(), Options: magic[:]}).Bytes())
	case transport.Rekey, transport.DpdDead:
		s.needReconnect = true
	}
}

// trySendNext dequeues and sends the next packet, control queue first,
// per spec.md §4.7 step 6.
func (s *Session) trySendNext() {
	var pkt *packet.Packet
	if !s.ctrlQ.Empty() {
		pkt = s.ctrlQ.Dequeue()
	} else if s.phase == Network && !s.dataOutQ.Empty() {
		pkt = s.dataOutQ.Dequeue()
	}
	if pkt == nil {
		return
	}

	proto := pkt.Proto
	if proto == 0 {
		proto = dataProto(pkt.Payload())
	}

	s.pendingWrite = framer.Send(pkt, proto, s.outOpts, s.cfg.Encap, s.outAsyncmap)
	s.retryPendingWrite()
}

// dataProto determines the PPP protocol for an egress data packet
// from its leading nibble, per spec.md §4.7 step 6.
func dataProto(payload []byte) wire.Proto {
	if len(payload) > 0 && payload[0]>>4 == 6 {
		return wire.ProtoIPv6
	}
	return wire.ProtoIP
}

func (s *Session) enqueueControl(proto wire.Proto, body []byte) {
	pkt := packet.NewFromPayload(framer.HeaderReserve, body)
	pkt.Proto = proto
	s.ctrlQ.Enqueue(pkt)
}
