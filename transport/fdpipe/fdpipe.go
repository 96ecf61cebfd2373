// Package fdpipe implements a reference transport.Transport over a
// non-blocking unix socketpair, adapted from PPPoE session
// file-descriptor plumbing (raw unix.Read / unix.Write with
// O_NONBLOCK and EAGAIN translated to WouldBlock). It exists only to
// exercise the WouldBlock / byte-identical-retry contract in tests;
// production transports (TLS/DTLS) are an external collaborator
// outside this core's scope.
package fdpipe

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/tunnelcore/pppcore/transport"
)

// Pipe is one end of a non-blocking socketpair-based byte pipe.
type Pipe struct {
	fd     int
	closed bool
}

// New creates a connected pair of non-blocking Pipes.
func New() (a, b *Pipe, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("fdpipe: socketpair: %w", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return nil, nil, fmt.Errorf("fdpipe: set nonblocking: %w", err)
		}
	}
	return &Pipe{fd: fds[0]}, &Pipe{fd: fds[1]}, nil
}

// Read implements transport.Transport.
func (p *Pipe) Read(maxLen int) ([]byte, error) {
	buf := make([]byte, maxLen)
	n, err := unix.Read(p.fd, buf)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil, transport.ErrWouldBlock
		}
		return nil, fmt.Errorf("fdpipe: read: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("fdpipe: peer closed")
	}
	return buf[:n], nil
}

// Write implements transport.Transport. Per the WouldBlock contract,
// a partial or blocked write leaves it to the caller to retry with
// the identical byte range; this implementation never performs a
// partial datagram write itself (SOCK_SEQPACKET writes are atomic),
// but can still report ErrWouldBlock when the send buffer is full.
func (p *Pipe) Write(b []byte) (int, error) {
	n, err := unix.Write(p.fd, b)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return 0, transport.ErrWouldBlock
		}
		return n, fmt.Errorf("fdpipe: write: %w", err)
	}
	return n, nil
}

// Reconnect implements transport.Transport. fdpipe has no redial
// concept — the pair is either open or closed — so Reconnect is a
// no-op once the pipe exists; redialing is an external-transport
// concern.
func (p *Pipe) Reconnect() error {
	if p.closed {
		return fmt.Errorf("fdpipe: cannot reconnect a closed pipe")
	}
	return nil
}

// Close releases the underlying file descriptor.
func (p *Pipe) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	return unix.Close(p.fd)
}
