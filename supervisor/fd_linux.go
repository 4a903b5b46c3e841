//go:build linux

// File: supervisor/fd_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package supervisor

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// checkInherited reports whether fd is an open descriptor of this process.
func checkInherited(fd int) error {
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0); err != nil {
		return fmt.Errorf("descriptor %d: %w", fd, err)
	}
	return nil
}
