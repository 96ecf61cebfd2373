// Package session implements the PPP orchestrator of spec.md §4.6-4.7:
// the overall phase machine, the config-exchange dispatcher, and the
// mainloop tick that multiplexes the control and data queues onto a
// single external transport.
package session

import (
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/tunnelcore/pppcore/framer"
	"github.com/tunnelcore/pppcore/ncp"
	"github.com/tunnelcore/pppcore/transport"
	"github.com/tunnelcore/pppcore/wire"
)

// Phase is the overall PPP connection phase of spec.md §4.6.
type Phase int

// Phases, in the order forward progress normally visits them. Only
// Terminate may be entered out of order (from any phase).
const (
	Dead Phase = iota
	Establish
	Authenticate
	Opened
	Network
	Terminate
)

func (p Phase) String() string {
	switch p {
	case Dead:
		return "DEAD"
	case Establish:
		return "ESTABLISH"
	case Authenticate:
		return "AUTHENTICATE"
	case Opened:
		return "OPENED"
	case Network:
		return "NETWORK"
	case Terminate:
		return "TERMINATE"
	default:
		return "UNKNOWN"
	}
}

// ncpKind indexes the three sub-protocols this core negotiates.
type ncpKind int

const (
	lcpKind ncpKind = iota
	ipcpKind
	ip6cpKind
	numNCPs
)

func (k ncpKind) proto() wire.Proto {
	switch k {
	case lcpKind:
		return wire.ProtoLCP
	case ipcpKind:
		return wire.ProtoIPCP
	case ip6cpKind:
		return wire.ProtoIP6CP
	default:
		panic("session: unknown ncpKind")
	}
}

func (k ncpKind) String() string {
	return k.proto().String()
}

// Config is the fixed configuration a Session is created with.
type Config struct {
	Encap    framer.Encap
	WantIPv4 bool
	WantIPv6 bool
}

// Stats is a read-only snapshot of traffic counters, supplementing the
// bare phase readout named in spec.md §6 with the obvious adjacent
// counters a connection-status UI needs (SPEC_FULL.md §12).
type Stats struct {
	FramesSent       uint64
	FramesReceived   uint64
	FramesDropped    uint64
	BytesSent        uint64
	BytesReceived    uint64
	LCPRetransmits   uint64
	IPCPRetransmits  uint64
	IP6CPRetransmits uint64
}

// Session is the top-level PppSession entity of spec.md §3. All
// mutation happens on the single agent that calls Tick; it is never
// shared across goroutines (spec.md §5).
type Session struct {
	cfg    Config
	logger log.Logger

	xport    transport.Transport
	ctrlQ    transport.Queue
	dataOutQ transport.Queue
	dataInQ  transport.Queue
	ka       transport.KeepaliveEngine
	ip       *transport.IPConfig

	phase Phase

	ncps [numNCPs]ncp.Record

	outAsyncmap  uint32
	outOpts      framer.Options
	outLCPMagic  uint32
	haveOutMagic bool

	inAsyncmap  uint32
	inOpts      framer.Options
	inLCPMagic  uint32
	haveInMagic bool
	peerIPv4    [4]byte
	peerIPv6IID [8]byte

	// nextID is a monotonic counter for self-originated control ids
	// that aren't a Configure-Request (Echo-Request, Discard-Request),
	// per spec.md §3.
	nextID uint8

	hdrSize *framer.HeaderSizeTracker

	needReconnect bool
	pendingWrite  []byte

	quitReason string
	stats      Stats
}

// New creates a Session in phase Dead, ready for its first Tick.
func New(cfg Config, logger log.Logger, xport transport.Transport, ctrlQ, dataOutQ, dataInQ transport.Queue, ka transport.KeepaliveEngine, ip *transport.IPConfig) *Session {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Session{
		cfg:      cfg,
		logger:   logger,
		xport:    xport,
		ctrlQ:    ctrlQ,
		dataOutQ: dataOutQ,
		dataInQ:  dataInQ,
		ka:       ka,
		ip:       ip,
		phase:    Dead,
		hdrSize:  framer.NewHeaderSizeTracker(),
	}
}

// Phase returns the session's current phase, for UX (spec.md §6).
func (s *Session) Phase() Phase { return s.phase }

// QuitReason returns the reason the session terminated, if any.
func (s *Session) QuitReason() string { return s.quitReason }

// Stats returns a snapshot of traffic counters (SPEC_FULL.md §12).
func (s *Session) Stats() Stats { return s.stats }

func (s *Session) setPhase(now time.Time, p Phase) {
	if p == s.phase {
		return
	}
	level.Info(s.logger).Log("message", "phase transition", "from", s.phase, "to", p)
	s.phase = p
}

func (s *Session) wantNCP(k ncpKind) bool {
	switch k {
	case lcpKind:
		return true
	case ipcpKind:
		return s.cfg.WantIPv4
	case ip6cpKind:
		return s.cfg.WantIPv6
	default:
		return false
	}
}

func (s *Session) allWantedConverged(ks ...ncpKind) bool {
	for _, k := range ks {
		if !s.wantNCP(k) {
			continue
		}
		if !s.ncps[k].Converged() {
			return false
		}
	}
	return true
}

// allocID returns the next self-originated control id and advances
// the counter, for frames that aren't per-NCP Configure-Requests.
func (s *Session) allocID() uint8 {
	s.nextID++
	return s.nextID
}
