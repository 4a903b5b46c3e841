// File: internal/transport/doc.go
// Package transport
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Raw-descriptor TCP transport for hioload-httpd: listening socket setup,
// accept helpers, and the api.Socket implementation over a socket descriptor.
// Platform code is separated by build tags.

package transport
