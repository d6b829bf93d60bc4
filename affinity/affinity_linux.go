//go:build linux
// +build linux

// File: affinity/affinity_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux implementation on sched_setaffinity(2).

package affinity

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func pinPlatform(cpuID int) (func() error, error) {
	if cpuID < 0 {
		return nil, fmt.Errorf("affinity: invalid cpu %d", cpuID)
	}
	var prev unix.CPUSet
	if err := unix.SchedGetaffinity(0, &prev); err != nil {
		return nil, fmt.Errorf("affinity: %w", err)
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: pin to cpu %d: %w", cpuID, err)
	}
	return func() error { return unix.SchedSetaffinity(0, &prev) }, nil
}

func cpusPlatform() ([]int, error) {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil, fmt.Errorf("affinity: %w", err)
	}
	var cpus []int
	for i := 0; len(cpus) < set.Count(); i++ {
		if set.IsSet(i) {
			cpus = append(cpus, i)
		}
	}
	return cpus, nil
}
