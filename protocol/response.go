// File: protocol/response.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Fixed HTTP response construction.

package protocol

import (
	"strconv"

	"github.com/valyala/bytebufferpool"
)

const (
	DefaultBody        = "Hello World!"
	DefaultContentType = "text/plain; charset=utf-8"
	statusLine         = "HTTP/1.0 200 OK\r\n"
)

// Response is an immutable, pre-serialized response. Head holds the status
// line and header block including the blank line; Body follows it verbatim.
type Response struct {
	Head []byte
	Body []byte
}

// Len returns the number of bytes on the wire.
func (r *Response) Len() int {
	return len(r.Head) + len(r.Body)
}

// Bytes returns head and body as one contiguous slice.
func (r *Response) Bytes() []byte {
	out := make([]byte, 0, r.Len())
	out = append(out, r.Head...)
	return append(out, r.Body...)
}

// Segments returns head and body as separate write segments.
func (r *Response) Segments() [][]byte {
	if len(r.Body) == 0 {
		return [][]byte{r.Head}
	}
	return [][]byte{r.Head, r.Body}
}

// BuildResponse produces the fixed 200 response for body. Content-Length is
// the exact byte length of body and the connection is always closed after.
func BuildResponse(contentType string, body []byte) *Response {
	if contentType == "" {
		contentType = DefaultContentType
	}
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.WriteString(statusLine)
	b.WriteString("Content-Type: ")
	b.WriteString(contentType)
	b.WriteString("\r\nContent-Length: ")
	b.B = strconv.AppendInt(b.B, int64(len(body)), 10)
	b.WriteString("\r\nConnection: close\r\n\r\n")

	return &Response{
		Head: append([]byte(nil), b.B...),
		Body: append([]byte(nil), body...),
	}
}
