// File: server/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-connection state machine driven by the event loop.

package server

import (
	"errors"
	"io"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/valyala/bytebufferpool"
)

// Conn is one accepted client socket. It is owned by a single event loop
// and never touched from any other goroutine.
type Conn struct {
	fd   int
	sock api.Socket
	peer string

	in     *bytebufferpool.ByteBuffer
	out    *queue.Queue // pending [][]byte segments, front partially written up to outOff
	outOff int

	framer *protocol.Framer
	head   *protocol.Head
	state  api.ConnState

	reason string
	err    error
}

// NewConn creates a connection in StateAwaitingRequest. It takes ownership of sock.
func NewConn(fd int, sock api.Socket, peer string, maxHead int) *Conn {
	return &Conn{
		fd:     fd,
		sock:   sock,
		peer:   peer,
		in:     bytebufferpool.Get(),
		out:    queue.New(),
		framer: protocol.NewFramer(maxHead),
		state:  api.StateAwaitingRequest,
	}
}

// Fd returns the socket descriptor.
func (c *Conn) Fd() int { return c.fd }

// Peer returns the remote address captured at accept time.
func (c *Conn) Peer() string { return c.peer }

// State returns the current state.
func (c *Conn) State() api.ConnState { return c.state }

// Interest returns the readiness interest the loop must hold for c.
func (c *Conn) Interest() api.Interest { return c.state.Interest() }

// Head returns the framed request head once the request is complete.
func (c *Conn) Head() *protocol.Head { return c.head }

// Pending returns the number of response bytes not yet written.
func (c *Conn) Pending() int {
	n := -c.outOff
	for i := 0; i < c.out.Length(); i++ {
		n += len(c.out.Get(i).([]byte))
	}
	return n
}

// CloseReason returns why the connection reached StateClosing and the
// underlying error, if any.
func (c *Conn) CloseReason() (string, error) { return c.reason, c.err }

// HandleReadable performs one bounded read into the inbound buffer and
// advances the state machine. scratch bounds the read size.
func (c *Conn) HandleReadable(scratch []byte, resp *protocol.Response) {
	if c.state != api.StateAwaitingRequest {
		return
	}
	n, err := c.sock.Read(scratch)
	if n > 0 {
		c.in.Write(scratch[:n])
	}
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		return
	case errors.Is(err, io.EOF):
		c.fail(control.ReasonPeer, nil)
		return
	case err != nil:
		c.fail(control.ReasonError, err)
		return
	}

	head, err := c.framer.Frame(c.in.B)
	if err != nil {
		c.fail(control.ReasonOversized, err)
		return
	}
	if head == nil {
		return
	}
	c.head = head
	for _, seg := range resp.Segments() {
		c.out.Add(seg)
	}
	c.outOff = 0
	c.state = api.StateResponsePending
}

// HandleWritable performs one write of the unwritten suffix of the front
// segment. The connection moves to StateClosing once everything is sent.
func (c *Conn) HandleWritable() {
	if c.state != api.StateResponsePending {
		return
	}
	if c.out.Length() == 0 {
		c.finish()
		return
	}
	seg := c.out.Peek().([]byte)
	n, err := c.sock.Write(seg[c.outOff:])
	if n > 0 {
		c.outOff += n
		if c.outOff == len(seg) {
			c.out.Remove()
			c.outOff = 0
		}
	}
	switch {
	case errors.Is(err, api.ErrWouldBlock):
		return
	case err != nil:
		c.fail(control.ReasonError, err)
		return
	}
	if c.out.Length() == 0 {
		c.finish()
	}
}

// Fail forces the connection into StateClosing.
func (c *Conn) Fail(err error) {
	c.fail(control.ReasonError, err)
}

func (c *Conn) fail(reason string, err error) {
	c.state = api.StateClosing
	c.reason = reason
	c.err = err
}

func (c *Conn) finish() {
	c.state = api.StateClosing
	c.reason = control.ReasonDone
}

// release closes the socket and returns the inbound buffer to its pool.
// It must be called exactly once, after the loop has unregistered fd.
func (c *Conn) release() error {
	if c.reason == control.ReasonDone {
		c.linger()
	}
	if c.in != nil {
		bytebufferpool.Put(c.in)
		c.in = nil
	}
	for c.out.Length() > 0 {
		c.out.Remove()
	}
	return c.sock.Close()
}

// lingerLimit bounds the unread request bytes discarded before close.
const lingerLimit = 64 << 10

type halfCloser interface {
	CloseWrite() error
}

// linger half-closes a connection whose response is fully written and
// discards input the framer never consumed, such as a request body. A close
// with unread input resets the connection and can destroy the response
// before the peer reads it. Input arriving after the drain is not covered.
func (c *Conn) linger() {
	hc, ok := c.sock.(halfCloser)
	if !ok || hc.CloseWrite() != nil {
		return
	}
	var buf [4096]byte
	for drained := 0; drained < lingerLimit; {
		n, err := c.sock.Read(buf[:])
		if err != nil {
			return
		}
		drained += n
	}
}
