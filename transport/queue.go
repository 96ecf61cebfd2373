package transport

import "github.com/tunnelcore/pppcore/packet"

// SliceQueue is a minimal single-threaded Queue implementation backed
// by a slice, suitable for tests and for embedding behind a
// real cross-agent synchronization discipline (spec.md §5) in
// production use.
type SliceQueue struct {
	items []*packet.Packet
}

// Enqueue implements Queue.
func (q *SliceQueue) Enqueue(p *packet.Packet) {
	q.items = append(q.items, p)
}

// Peek implements Queue.
func (q *SliceQueue) Peek() *packet.Packet {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

// Dequeue implements Queue.
func (q *SliceQueue) Dequeue() *packet.Packet {
	if len(q.items) == 0 {
		return nil
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p
}

// Empty implements Queue.
func (q *SliceQueue) Empty() bool {
	return len(q.items) == 0
}
