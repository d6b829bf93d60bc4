//go:build !linux
// +build !linux

// File: affinity/affinity_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package affinity

import "github.com/momentics/hioload-ut/api"

func pinPlatform(cpuID int) (func() error, error) { return nil, api.ErrNotSupported }

func cpusPlatform() ([]int, error) { return nil, api.ErrNotSupported }
