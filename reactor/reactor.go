// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Platform-neutral reactor configuration.

package reactor

import "log/slog"

const (
	defaultMaxEvents  = 128
	defaultBufferSize = 4096
	defaultBacklog    = 1024
)

// Config holds reactor tunables.
type Config struct {
	// MaxEvents bounds the number of events handled per poll step.
	MaxEvents int
	// DefaultBufferSize is used when a stream is created with a
	// non-positive buffer size.
	DefaultBufferSize int
	// Backlog is the listen(2) backlog.
	Backlog int
	Logger  *slog.Logger
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		MaxEvents:         defaultMaxEvents,
		DefaultBufferSize: defaultBufferSize,
		Backlog:           defaultBacklog,
		Logger:            slog.Default(),
	}
}

func (c *Config) normalize() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	if c.MaxEvents > 0 {
		out.MaxEvents = c.MaxEvents
	}
	if c.DefaultBufferSize > 0 {
		out.DefaultBufferSize = c.DefaultBufferSize
	}
	if c.Backlog > 0 {
		out.Backlog = c.Backlog
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	return out
}
