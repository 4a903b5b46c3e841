package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/momentics/hioload-httpd/api"
	"github.com/momentics/hioload-httpd/protocol"
)

const sampleHead = "GET /index.html HTTP/1.1\r\nHost: localhost\r\nUser-Agent: test\r\n\r\n"

func TestFrameCompleteHead(t *testing.T) {
	buf := []byte(sampleHead + "trailing")
	head, err := protocol.FrameBytes(buf, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if head == nil {
		t.Fatal("expected complete head")
	}
	if head.End != len(sampleHead) {
		t.Errorf("End = %d, want %d", head.End, len(sampleHead))
	}
	if head.Method != "GET" || head.Target != "/index.html" || head.Version != "HTTP/1.1" {
		t.Errorf("bad request line: %q %q %q", head.Method, head.Target, head.Version)
	}
	if head.RequestLine() != "GET /index.html HTTP/1.1" {
		t.Errorf("RequestLine = %q", head.RequestLine())
	}
	if got := head.Get("host"); got != "localhost" {
		t.Errorf("Host = %q", got)
	}
	if len(head.Headers) != 2 {
		t.Errorf("headers = %d, want 2", len(head.Headers))
	}
}

func TestFrameIncomplete(t *testing.T) {
	cases := []string{
		"",
		"GET / HTTP/1.1",
		"GET / HTTP/1.1\r\nHost: x\r\n",
		"GET / HTTP/1.1\r\nHost: x\r\n\r",
		// bare LF delimiters are not accepted
		"GET / HTTP/1.1\nHost: x\n\n",
	}
	for _, c := range cases {
		head, err := protocol.FrameBytes([]byte(c), 0)
		if err != nil || head != nil {
			t.Errorf("%q: got (%v, %v), want incomplete", c, head, err)
		}
	}
}

// Every way of splitting the head into two or three chunks must complete
// exactly once, on the chunk carrying the last delimiter byte.
func TestFramePartialDelimiterSplits(t *testing.T) {
	raw := []byte(sampleHead)
	n := len(raw)
	for i := 1; i < n; i++ {
		for j := i; j < n; j++ {
			chunks := [][]byte{raw[:i], raw[i:j], raw[j:]}
			assertCompletesOnLastChunk(t, chunks)
		}
	}
}

func TestFrameByteAtATime(t *testing.T) {
	raw := []byte(sampleHead)
	chunks := make([][]byte, len(raw))
	for i := range raw {
		chunks[i] = raw[i : i+1]
	}
	assertCompletesOnLastChunk(t, chunks)
}

func assertCompletesOnLastChunk(t *testing.T, chunks [][]byte) {
	t.Helper()
	f := protocol.NewFramer(0)
	var acc []byte
	completions := 0
	for k, c := range chunks {
		if len(c) == 0 {
			continue
		}
		acc = append(acc, c...)
		head, err := f.Frame(acc)
		if err != nil {
			t.Fatalf("chunk %d: unexpected error %v", k, err)
		}
		if head == nil {
			continue
		}
		completions++
		if len(acc) != len(sampleHead) {
			t.Fatalf("completed early at %d of %d bytes", len(acc), len(sampleHead))
		}
		break
	}
	if completions != 1 {
		t.Fatalf("completions = %d, want 1", completions)
	}
}

func TestFrameHeadTooLarge(t *testing.T) {
	f := protocol.NewFramer(64)
	junk := bytes.Repeat([]byte("a"), 63)
	if head, err := f.Frame(junk); head != nil || err != nil {
		t.Fatalf("63 bytes: got (%v, %v), want incomplete", head, err)
	}
	junk = append(junk, 'a')
	if _, err := f.Frame(junk); !errors.Is(err, api.ErrHeadTooLarge) {
		t.Fatalf("64 bytes: err = %v, want ErrHeadTooLarge", err)
	}
}

func TestFrameDelimiterPastCap(t *testing.T) {
	head := "GET / HTTP/1.1\r\nX-Pad: " + strings.Repeat("p", 40) + "\r\n\r\n"
	if _, err := protocol.FrameBytes([]byte(head), len(head)-1); !errors.Is(err, api.ErrHeadTooLarge) {
		t.Fatalf("err = %v, want ErrHeadTooLarge", err)
	}
	if h, err := protocol.FrameBytes([]byte(head), len(head)); err != nil || h == nil {
		t.Fatalf("head at exact cap: got (%v, %v)", h, err)
	}
}

func TestFramerReset(t *testing.T) {
	f := protocol.NewFramer(0)
	if h, _ := f.Frame([]byte("GET / HTTP/1.0\r\n")); h != nil {
		t.Fatal("unexpected completion")
	}
	f.Reset()
	if h, err := f.Frame([]byte("GET / HTTP/1.0\r\n\r\n")); err != nil || h == nil {
		t.Fatalf("after reset: got (%v, %v)", h, err)
	}
}
