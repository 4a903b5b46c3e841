//go:build !linux

// File: supervisor/fd_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package supervisor

import (
	"fmt"

	"github.com/momentics/hioload-httpd/api"
)

func checkInherited(fd int) error {
	return fmt.Errorf("descriptor %d: %w", fd, api.ErrNotSupported)
}
