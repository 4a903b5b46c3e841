// File: protocol/framer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Request head framer with head size enforcement.

package protocol

import (
	"bytes"
	"strings"

	"github.com/momentics/hioload-httpd/api"
)

// DefaultMaxHeadBytes bounds a request head including its delimiter.
const DefaultMaxHeadBytes = 8 << 10

var headDelimiter = []byte("\r\n\r\n")

// Header is a single request header field, in arrival order.
type Header struct {
	Name  string
	Value string
}

// Head is a framed request head.
type Head struct {
	Method  string
	Target  string
	Version string
	Headers []Header
	// End is the offset just past the blank-line delimiter. Bytes beyond it
	// belong to a body, which is never consumed.
	End int

	line string
}

// RequestLine returns the raw start line without its CRLF.
func (h *Head) RequestLine() string {
	return h.line
}

// Get returns the first header value matching name, case-insensitively.
func (h *Head) Get(name string) string {
	for _, f := range h.Headers {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// Framer detects the end of a request head in a growing input buffer.
// It remembers how far it has already scanned, so repeated calls over the
// same accumulating buffer do not rescan old bytes.
type Framer struct {
	maxHead int
	scanned int
}

// NewFramer returns a framer rejecting heads longer than maxHead bytes.
// A non-positive maxHead selects DefaultMaxHeadBytes.
func NewFramer(maxHead int) *Framer {
	if maxHead <= 0 {
		maxHead = DefaultMaxHeadBytes
	}
	return &Framer{maxHead: maxHead}
}

// Frame inspects the full input accumulated so far.
// It returns (head, nil) once the delimiter is present, (nil, nil) while
// the head is incomplete, and ErrHeadTooLarge when the cap is exceeded.
func (f *Framer) Frame(buf []byte) (*Head, error) {
	// The delimiter may straddle the previous scan boundary.
	from := f.scanned - (len(headDelimiter) - 1)
	if from < 0 || from > len(buf) {
		from = 0
	}
	idx := bytes.Index(buf[from:], headDelimiter)
	if idx < 0 {
		f.scanned = len(buf)
		if len(buf) >= f.maxHead {
			return nil, api.ErrHeadTooLarge
		}
		return nil, nil
	}
	end := from + idx + len(headDelimiter)
	if end > f.maxHead {
		return nil, api.ErrHeadTooLarge
	}
	f.scanned = end
	return parseHead(buf[:end]), nil
}

// Reset forgets scan progress so the framer can be reused on a new buffer.
func (f *Framer) Reset() {
	f.scanned = 0
}

// FrameBytes is a stateless convenience over Framer.Frame.
func FrameBytes(buf []byte, maxHead int) (*Head, error) {
	return NewFramer(maxHead).Frame(buf)
}

// parseHead splits a complete head into request line and header fields.
// Malformed lines are kept verbatim in the request line or skipped.
func parseHead(raw []byte) *Head {
	text := string(raw[:len(raw)-len(headDelimiter)])
	lines := strings.Split(text, "\r\n")
	h := &Head{End: len(raw), line: lines[0]}
	if parts := strings.SplitN(lines[0], " ", 3); len(parts) == 3 {
		h.Method, h.Target, h.Version = parts[0], parts[1], parts[2]
	}
	for _, line := range lines[1:] {
		sep := strings.IndexByte(line, ':')
		if sep <= 0 {
			continue
		}
		h.Headers = append(h.Headers, Header{
			Name:  strings.TrimSpace(line[:sep]),
			Value: strings.TrimSpace(line[sep+1:]),
		})
	}
	return h
}
