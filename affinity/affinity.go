// File: affinity/affinity.go
// Author: momentics <momentics@gmail.com>
//
// CPU pinning for the goroutine that drives an engine. Platform-specific
// implementations are selected by build tags.

package affinity

import "runtime"

// Pin locks the calling goroutine to its OS thread and restricts that thread
// to the logical CPU cpuID. unpin restores the previous CPU mask and unlocks
// the thread; it must run on the same goroutine.
func Pin(cpuID int) (unpin func(), err error) {
	runtime.LockOSThread()
	restore, err := pinPlatform(cpuID)
	if err != nil {
		runtime.UnlockOSThread()
		return func() {}, err
	}
	return func() {
		if restore() == nil {
			runtime.UnlockOSThread()
		}
		// A thread whose mask could not be restored stays locked and is
		// discarded by the runtime when the goroutine exits.
	}, nil
}

// CPUs returns the logical CPUs the calling thread may run on.
func CPUs() ([]int, error) {
	return cpusPlatform()
}
