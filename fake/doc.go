// Package fake
// Author: momentics <momentics@gmail.com>
//
// In-memory implementations of the reactor interfaces for testing.
// Connections are byte pipes between two descriptor ends living in one
// Reactor; every callback still runs inside RunOnce, so tests drive the event
// loop exactly like production code does, minus the kernel.
package fake
