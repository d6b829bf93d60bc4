// File: facade/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package facade

import (
	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/internal/queue"
)

// socket is either a listener or a connection. Queues that do not apply to
// a kind are nil.
type socket struct {
	h    Handle
	kind api.SocketKind

	fd     int        // listener
	stream api.Stream // connection

	pending *queue.DescriptorQueue // listener
	waiters *queue.WaiterQueue
	inbound *queue.PacketQueue // connection

	lastError error
	state     api.CloseState

	refs       int
	handleHeld bool
}

func newListener(fd int) *socket {
	return &socket{
		kind:       api.KindListener,
		fd:         fd,
		pending:    queue.NewDescriptorQueue(),
		waiters:    queue.NewWaiterQueue(),
		handleHeld: true,
	}
}

func newConnection(st api.Stream) *socket {
	return &socket{
		kind:       api.KindConnection,
		fd:         -1,
		stream:     st,
		waiters:    queue.NewWaiterQueue(),
		inbound:    queue.NewPacketQueue(),
		handleHeld: true,
	}
}

// advance moves the close state forward; it never goes back.
func (s *socket) advance(next api.CloseState) {
	if next > s.state {
		s.state = next
	}
}

// dropHandle releases the caller's handle reference if it is still held.
func (e *Engine) dropHandle(s *socket) {
	if !s.handleHeld {
		return
	}
	s.handleHeld = false
	e.release(s)
}
