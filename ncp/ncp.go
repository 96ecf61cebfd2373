// Package ncp tracks per-sub-protocol (LCP, IPCP, IP6CP) negotiation
// progress and the Configure-Request retransmit timer policy of
// RFC 1661 §4, as consumed by the PPP phase machine.
package ncp

import "time"

// Progress is a bitmask of negotiation milestones reached for one
// NCP. There is no separate "converged" field: convergence is defined
// as having both ack bits set (see Record.Converged).
type Progress uint16

// Progress bits, one per milestone named in spec.md §3.
const (
	ConfReqSent Progress = 1 << iota
	ConfReqReceived
	ConfAckSent
	ConfAckReceived
	TermReqSent
	TermReqReceived
	TermAckSent
	TermAckReceived
)

var progressNames = []struct {
	bit  Progress
	name string
}{
	{ConfReqSent, "CONF_REQ_SENT"},
	{ConfReqReceived, "CONF_REQ_RECEIVED"},
	{ConfAckSent, "CONF_ACK_SENT"},
	{ConfAckReceived, "CONF_ACK_RECEIVED"},
	{TermReqSent, "TERM_REQ_SENT"},
	{TermReqReceived, "TERM_REQ_RECEIVED"},
	{TermAckSent, "TERM_ACK_SENT"},
	{TermAckReceived, "TERM_ACK_RECEIVED"},
}

// String renders the set bits for debug logging.
func (p Progress) String() string {
	if p == 0 {
		return "none"
	}
	s := ""
	for _, e := range progressNames {
		if p&e.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += e.name
		}
	}
	return s
}

// retransmitInterval is the fixed Configure-Request retransmit period
// of spec.md §4.5. There is no max-retries counter; the outer
// keepalive/DPD layer is responsible for killing a truly stuck
// session.
const retransmitInterval = 3 * time.Second

// Record is the negotiation state for a single NCP (LCP, IPCP or
// IP6CP): its progress bitmask, the id of its own outgoing
// Configure-Request, and when that request was last sent.
type Record struct {
	Progress Progress
	ReqID    uint8
	LastReq  time.Time
}

// Converged reports whether this NCP has both sent and received a
// Configure-Ack, per spec.md §3's definition.
func (r *Record) Converged() bool {
	return r.Progress&ConfAckSent != 0 && r.Progress&ConfAckReceived != 0
}

// Set adds bits to the progress mask.
func (r *Record) Set(bits Progress) {
	r.Progress |= bits
}

// DueForRetransmit reports whether a new Configure-Request should be
// (re)sent at now: the NCP has not yet received an ack, and either no
// request has ever been sent, or the last one is older than the
// retransmit interval.
func (r *Record) DueForRetransmit(now time.Time) bool {
	if r.Progress&ConfAckReceived != 0 {
		return false
	}
	if r.Progress&ConfReqSent == 0 {
		return true
	}
	return !now.Before(r.LastReq.Add(retransmitInterval))
}

// MarkRequestSent records that a Configure-Request was (re)sent at
// now. Per spec.md §4.5, the id is fixed at 1 for every first request
// of an NCP and is not incremented on retry, rather than a freely
// incrementing id.
func (r *Record) MarkRequestSent(now time.Time) {
	if r.Progress&ConfReqSent == 0 {
		r.ReqID = 1
	}
	r.Progress |= ConfReqSent
	r.LastReq = now
}
