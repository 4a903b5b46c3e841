// Package protocol
// Author: momentics <momentics@gmail.com>
//
// Implements the HTTP/1.0 request framing and fixed response logic for hioload-httpd.
//
// Includes:
//   - Request head framing over accumulated, possibly fragmented input
//   - Request line and header block parsing
//   - Fixed response construction with exact Content-Length
//
// The framer accepts only the strict CRLFCRLF head delimiter. A head that
// grows past the configured cap without reaching it is rejected.
package protocol
