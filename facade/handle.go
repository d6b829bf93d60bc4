// File: facade/handle.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Handle table with explicit reference counting. A Handle is a plain number,
// so holding one keeps nothing alive; resolving it through the table is the
// weak back-reference used by reactor callbacks.

package facade

import (
	"strconv"

	"github.com/momentics/hioload-ut/api"
)

// Handle identifies a socket owned by an Engine.
type Handle uint64

// EmptyHandle is returned by failed operations.
const EmptyHandle Handle = 0

// IsEmpty reports whether h is EmptyHandle.
func (h Handle) IsEmpty() bool { return h == EmptyHandle }

func (h Handle) String() string {
	if h.IsEmpty() {
		return "handle(empty)"
	}
	return "handle(" + strconv.FormatUint(uint64(h), 10) + ")"
}

// register inserts s into the table with one reference per owner.
func (e *Engine) register(s *socket, refs int) {
	e.next++
	s.h = e.next
	s.refs = refs
	e.sockets[s.h] = s
}

// lookup resolves h without taking a reference.
func (e *Engine) lookup(h Handle) (*socket, bool) {
	if h.IsEmpty() {
		return nil, false
	}
	s, ok := e.sockets[h]
	return s, ok
}

// acquire resolves h and takes a reference that must be released exactly once.
func (e *Engine) acquire(h Handle) (*socket, error) {
	s, ok := e.lookup(h)
	if !ok {
		return nil, api.ErrInvalidHandle
	}
	s.refs++
	return s, nil
}

// release drops one reference and destroys s at zero.
func (e *Engine) release(s *socket) {
	s.refs--
	if s.refs > 0 {
		return
	}
	if s.refs < 0 {
		e.log.Error("socket over-released", "handle", s.h.String(), "kind", s.kind.String())
		return
	}
	e.destroy(s)
}

// destroy tears s down and removes it from the table.
func (e *Engine) destroy(s *socket) {
	delete(e.sockets, s.h)
	switch s.kind {
	case api.KindListener:
		s.pending.Drain(func(fd int) { _ = e.r.CloseFD(fd) })
		if err := e.r.CloseFD(s.fd); err != nil {
			e.log.Debug("close listener descriptor", "handle", s.h.String(), "err", err)
		}
		e.metrics.Inc(metricListenersClosed)
	case api.KindConnection:
		s.inbound.Release()
		e.metrics.Inc(metricConnectionsReleased)
	}
	s.state = api.StateClosed
	e.log.Debug("socket destroyed", "handle", s.h.String(), "kind", s.kind.String())
}
