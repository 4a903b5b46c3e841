// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral API for pinning the event loop thread to a CPU.
// Platform-specific implementations live in files guarded by build tags.

package affinity

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-httpd/api"
)

// Disabled is the CPU index meaning "do not pin".
const Disabled = -1

// CheckCPU validates cpuID against the logical CPUs visible to the runtime.
func CheckCPU(cpuID int) error {
	if n := runtime.NumCPU(); cpuID < 0 || cpuID >= n {
		return fmt.Errorf("affinity: cpu %d out of range [0, %d): %w", cpuID, n, api.ErrInvalidArgument)
	}
	return nil
}

// Pin locks the calling goroutine to its OS thread and binds that thread to
// cpuID. The returned release func unlocks the goroutine; it must run on the
// same goroutine. On failure the goroutine is left unlocked.
func Pin(cpuID int) (release func(), err error) {
	if err := CheckCPU(cpuID); err != nil {
		return nil, err
	}
	runtime.LockOSThread()
	if err := setAffinityPlatform(cpuID); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	return runtime.UnlockOSThread, nil
}
