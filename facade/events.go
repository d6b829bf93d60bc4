// File: facade/events.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reactor callbacks. They run inside the reactor's poll step, never suspend,
// and fold failures into socket state instead of returning them.

package facade

import (
	"errors"

	"github.com/momentics/hioload-ut/api"
)

// onAccept queues an inbound descriptor and hands it to at most one acceptor.
func (e *Engine) onAccept(h Handle, fd int) {
	s, ok := e.lookup(h)
	if !ok {
		_ = e.r.CloseFD(fd)
		return
	}
	s.pending.Push(fd)
	s.waiters.WakeOne()
}

// onConnect fills the completion record first and only then wakes the
// caller, so a completion that beats the caller's suspend is just read back.
func (e *Engine) onConnect(c *connectRecord, fd int, err error) {
	c.done = true
	c.fd = fd
	c.err = err
	if c.abandoned {
		if fd >= 0 {
			_ = e.r.CloseFD(fd)
		}
		return
	}
	if c.waiter == nil {
		return
	}
	// Wake can only fail here if the caller's thread is gone without having
	// marked the record abandoned, which Connect and Scheduler.Close rule out.
	// A stale record means the thread is already runnable and reads c itself.
	if werr := c.waiter.Wake(); werr != nil && !errors.Is(werr, api.ErrStaleWaiter) && fd >= 0 {
		e.log.Debug("connect completed for a thread that cannot resume", "fd", fd, "err", werr)
		_ = e.r.CloseFD(fd)
		c.fd = -1
		c.err = werr
	}
}

// onPacket buffers a copy of p and wakes at most one receiver.
func (e *Engine) onPacket(st api.Stream, p api.Packet) {
	s := e.fromStream(st)
	if s == nil {
		return
	}
	s.inbound.Push(p.Clone())
	s.waiters.WakeOne()
	e.metrics.Inc(metricPacketsIn)
}

// onDisconnected records err, wakes every waiter and drops the association
// reference.
func (e *Engine) onDisconnected(st api.Stream, err error) {
	s := e.fromStream(st)
	if s == nil {
		return
	}
	s.lastError = err
	s.advance(api.StateClosed)
	s.waiters.WakeAll()
	e.metrics.Inc(metricDisconnects)
	e.log.Debug("disconnected", "handle", s.h.String(), "err", err)
	e.release(s)
}

// fromStream resolves the socket a stream belongs to, nil once destroyed.
func (e *Engine) fromStream(st api.Stream) *socket {
	h, ok := st.UserData().(Handle)
	if !ok {
		return nil
	}
	s, ok := e.lookup(h)
	if !ok || s.stream != st {
		return nil
	}
	return s
}
