//go:build !linux
// +build !linux

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import (
	"fmt"
	"runtime"

	"github.com/momentics/hioload-ut/api"
)

// Reactor is unavailable on this platform.
type Reactor struct{ api.Reactor }

// New returns api.ErrNotSupported on platforms without epoll.
func New(cfg *Config) (*Reactor, error) {
	return nil, fmt.Errorf("reactor on %s: %w", runtime.GOOS, api.ErrNotSupported)
}
