package server_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/control"
	"github.com/momentics/hioload-httpd/protocol"
	"github.com/momentics/hioload-httpd/server"
)

// scriptSocket replays scripted reads and accepts at most maxWrite bytes
// per write, refusing every other write when flaky is set.
type scriptSocket struct {
	reads    [][]byte // nil entry means "would block"
	readErr  error    // returned once reads are exhausted
	maxWrite int
	flaky    bool
	writeErr error

	written bytes.Buffer
	writes  int
	closes  int
}

func (s *scriptSocket) Read(p []byte) (int, error) {
	if len(s.reads) == 0 {
		if s.readErr != nil {
			return 0, s.readErr
		}
		return 0, io.EOF
	}
	chunk := s.reads[0]
	if chunk == nil {
		s.reads = s.reads[1:]
		return 0, api.ErrWouldBlock
	}
	n := copy(p, chunk)
	if n == len(chunk) {
		s.reads = s.reads[1:]
	} else {
		s.reads[0] = chunk[n:]
	}
	return n, nil
}

func (s *scriptSocket) Write(p []byte) (int, error) {
	s.writes++
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	if s.flaky && s.writes%2 == 0 {
		return 0, api.ErrWouldBlock
	}
	n := len(p)
	if s.maxWrite > 0 && n > s.maxWrite {
		n = s.maxWrite
	}
	s.written.Write(p[:n])
	return n, nil
}

func (s *scriptSocket) Close() error {
	s.closes++
	return nil
}

var testResponse = protocol.BuildResponse("", []byte("Hello World!"))

func TestConnReadTransitions(t *testing.T) {
	sock := &scriptSocket{reads: [][]byte{
		[]byte("GET / HTTP/1.1\r\nHo"),
		nil,
		[]byte("st: localhost\r\n\r"),
		[]byte("\n"),
	}}
	c := server.NewConn(7, sock, "127.0.0.1:5000", 0)
	scratch := make([]byte, 1024)

	wantStates := []api.ConnState{
		api.StateAwaitingRequest, // partial head
		api.StateAwaitingRequest, // would block
		api.StateAwaitingRequest, // delimiter still split
		api.StateResponsePending, // final delimiter byte
	}
	for i, want := range wantStates {
		c.HandleReadable(scratch, testResponse)
		if c.State() != want {
			t.Fatalf("step %d: state = %v, want %v", i, c.State(), want)
		}
		if want == api.StateAwaitingRequest && c.Interest() != api.InterestRead {
			t.Fatalf("step %d: interest = %v, want read", i, c.Interest())
		}
	}
	if c.Interest() != api.InterestWrite {
		t.Fatalf("interest = %v, want write", c.Interest())
	}
	if c.Head() == nil || c.Head().Get("Host") != "localhost" {
		t.Fatalf("head not captured: %+v", c.Head())
	}
	if c.Pending() != testResponse.Len() {
		t.Fatalf("Pending = %d, want %d", c.Pending(), testResponse.Len())
	}
}

func TestConnReadSmallScratch(t *testing.T) {
	req := "GET / HTTP/1.0\r\n\r\n"
	sock := &scriptSocket{reads: [][]byte{[]byte(req)}}
	c := server.NewConn(3, sock, "peer", 0)
	scratch := make([]byte, 3)
	steps := 0
	for c.State() == api.StateAwaitingRequest {
		c.HandleReadable(scratch, testResponse)
		steps++
		if steps > len(req) {
			t.Fatal("request never completed")
		}
	}
	if c.State() != api.StateResponsePending {
		t.Fatalf("state = %v", c.State())
	}
	if want := (len(req) + 2) / 3; steps != want {
		t.Fatalf("reads = %d, want %d", steps, want)
	}
}

func TestConnPeerClose(t *testing.T) {
	sock := &scriptSocket{reads: [][]byte{[]byte("GET / HT")}}
	c := server.NewConn(3, sock, "peer", 0)
	scratch := make([]byte, 64)
	c.HandleReadable(scratch, testResponse)
	c.HandleReadable(scratch, testResponse)
	if c.State() != api.StateClosing || c.Interest() != api.InterestNone {
		t.Fatalf("state = %v, interest = %v", c.State(), c.Interest())
	}
	if reason, _ := c.CloseReason(); reason != control.ReasonPeer {
		t.Fatalf("reason = %q", reason)
	}
	// Closing the handle belongs to the loop, never to the state machine.
	if sock.closes != 0 {
		t.Fatalf("state machine closed the socket %d times", sock.closes)
	}
}

func TestConnReadError(t *testing.T) {
	boom := errors.New("connection reset")
	sock := &scriptSocket{readErr: boom}
	c := server.NewConn(3, sock, "peer", 0)
	c.HandleReadable(make([]byte, 8), testResponse)
	reason, err := c.CloseReason()
	if c.State() != api.StateClosing || reason != control.ReasonError || !errors.Is(err, boom) {
		t.Fatalf("state=%v reason=%q err=%v", c.State(), reason, err)
	}
}

func TestConnOversizedHead(t *testing.T) {
	sock := &scriptSocket{reads: [][]byte{[]byte(strings.Repeat("A", 100))}}
	c := server.NewConn(3, sock, "peer", 32)
	scratch := make([]byte, 16)
	for i := 0; i < 10 && c.State() == api.StateAwaitingRequest; i++ {
		c.HandleReadable(scratch, testResponse)
	}
	reason, err := c.CloseReason()
	if c.State() != api.StateClosing || reason != control.ReasonOversized || !errors.Is(err, api.ErrHeadTooLarge) {
		t.Fatalf("state=%v reason=%q err=%v", c.State(), reason, err)
	}
	if sock.writes != 0 {
		t.Fatal("no response may be sent for an oversized head")
	}
}

// Whatever the per-call write limit, the peer sees exactly the built
// response, in order, without gaps or duplication.
func TestConnPartialWrites(t *testing.T) {
	resp := protocol.BuildResponse("", bytes.Repeat([]byte("0123456789"), 50))
	want := resp.Bytes()
	for _, flaky := range []bool{false, true} {
		for _, limit := range []int{1, 2, 3, 7, 64, 113, len(resp.Head), len(want)} {
			sock := &scriptSocket{
				reads:    [][]byte{[]byte("GET / HTTP/1.0\r\n\r\n")},
				maxWrite: limit,
				flaky:    flaky,
			}
			c := server.NewConn(3, sock, "peer", 0)
			c.HandleReadable(make([]byte, 64), resp)
			calls := 0
			for c.State() == api.StateResponsePending {
				if c.Interest() != api.InterestWrite {
					t.Fatalf("limit %d: interest %v while pending", limit, c.Interest())
				}
				c.HandleWritable()
				calls++
				if calls > 4*len(want) {
					t.Fatalf("limit %d: write loop does not terminate", limit)
				}
			}
			if reason, _ := c.CloseReason(); reason != control.ReasonDone {
				t.Fatalf("limit %d flaky %v: reason %q", limit, flaky, reason)
			}
			if !bytes.Equal(sock.written.Bytes(), want) {
				t.Fatalf("limit %d flaky %v: peer received %d bytes, want %d identical", limit, flaky, sock.written.Len(), len(want))
			}
			if c.Pending() != 0 {
				t.Fatalf("limit %d: Pending = %d", limit, c.Pending())
			}
		}
	}
}

func TestConnWriteError(t *testing.T) {
	sock := &scriptSocket{
		reads:    [][]byte{[]byte("GET / HTTP/1.0\r\n\r\n")},
		writeErr: errors.New("broken pipe"),
	}
	c := server.NewConn(3, sock, "peer", 0)
	c.HandleReadable(make([]byte, 64), testResponse)
	c.HandleWritable()
	if reason, _ := c.CloseReason(); c.State() != api.StateClosing || reason != control.ReasonError {
		t.Fatalf("state=%v reason=%q", c.State(), reason)
	}
}
