// File: facade/ops.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Blocking-style socket operations. Accept, Connect and Receive must be called
// from a user thread (the ctx handed to the thread function or derived from
// it); they suspend the thread instead of blocking the process.

package facade

import (
	"context"
	"fmt"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/concurrency"
	"github.com/momentics/hioload-ut/internal/queue"
)

// Listen opens a listening socket on addr.
func (e *Engine) Listen(addr api.Address) (Handle, error) {
	if e.closed {
		return EmptyHandle, api.ErrReactorClosed
	}
	if err := e.checkCapacity(); err != nil {
		return EmptyHandle, err
	}
	fd, err := e.r.Socket(addr)
	if err != nil {
		return EmptyHandle, fmt.Errorf("listen %s: %w", addr, err)
	}
	s := newListener(fd)
	e.register(s, 1)
	h := s.h
	if err := e.r.Listen(fd, addr, func(nfd int) { e.onAccept(h, nfd) }); err != nil {
		e.release(s)
		return EmptyHandle, fmt.Errorf("listen %s: %w", addr, err)
	}
	e.metrics.Inc(metricListenersOpened)
	e.log.Debug("listening", "handle", h.String(), "addr", addr.String())
	return h, nil
}

// Addr returns the local address of a listener, useful after binding port 0.
func (e *Engine) Addr(h Handle) (api.Address, error) {
	s, err := e.acquire(h)
	if err != nil {
		return api.Address{}, err
	}
	defer e.release(s)
	if s.kind != api.KindListener {
		return api.Address{}, api.ErrWrongKind
	}
	return e.r.LocalAddr(s.fd)
}

// Accept waits for an inbound connection on listener h and returns its
// handle. dec becomes owned by the new connection; on failure it is released.
// A nil dec selects Config.NewDecoder. Once the listener is closed every
// waiting and future call returns api.ErrListenerClosed.
func (e *Engine) Accept(ctx context.Context, h Handle, bufferSize int, dec api.Decoder) (Handle, error) {
	t, err := concurrency.CurrentThread(ctx)
	if err != nil {
		releaseDecoder(dec)
		return EmptyHandle, err
	}
	s, err := e.acquire(h)
	if err != nil {
		releaseDecoder(dec)
		return EmptyHandle, err
	}
	defer e.release(s)
	if s.kind != api.KindListener {
		releaseDecoder(dec)
		return EmptyHandle, api.ErrWrongKind
	}

	for {
		if fd, ok := s.pending.Pop(); ok {
			conn, err := e.wrap(fd, bufferSize, dec)
			if err == nil {
				e.metrics.Inc(metricAccepted)
			}
			return conn, err
		}
		if s.state != api.StateOpen {
			releaseDecoder(dec)
			return EmptyHandle, api.ErrListenerClosed
		}
		if err := e.park(ctx, t, s.waiters); err != nil {
			if s.pending.Len() > 0 {
				// Pass an arrival meant for us on to the next acceptor.
				s.waiters.WakeOne()
			}
			releaseDecoder(dec)
			return EmptyHandle, err
		}
	}
}

// connectRecord is filled by the connect callback, whether or not the caller
// has suspended yet.
type connectRecord struct {
	done      bool
	fd        int
	err       error
	waiter    *concurrency.Waiter
	abandoned bool
}

// Connect establishes a connection to addr. If the reactor completes the
// connect synchronously the calling thread is never suspended. Failures are
// reported as *api.ConnectError.
func (e *Engine) Connect(ctx context.Context, addr api.Address, bufferSize int, dec api.Decoder) (Handle, error) {
	t, err := concurrency.CurrentThread(ctx)
	if err != nil {
		releaseDecoder(dec)
		return EmptyHandle, err
	}
	if e.closed {
		releaseDecoder(dec)
		return EmptyHandle, api.ErrReactorClosed
	}
	if err := e.checkCapacity(); err != nil {
		releaseDecoder(dec)
		return EmptyHandle, err
	}

	c := &connectRecord{fd: -1}
	pending, err := e.r.Connect(addr, func(fd int, err error) { e.onConnect(c, fd, err) })
	if err != nil {
		releaseDecoder(dec)
		e.metrics.Inc(metricConnectFailed)
		return EmptyHandle, &api.ConnectError{Addr: addr, Err: err}
	}
	for pending && !c.done {
		c.waiter = t.NewWaiter()
		perr := c.waiter.ParkContext(ctx)
		if perr != nil && !c.done {
			c.abandoned = true
			releaseDecoder(dec)
			return EmptyHandle, &api.ConnectError{Addr: addr, Err: perr}
		}
	}
	c.waiter = nil

	if c.err != nil || c.fd < 0 {
		releaseDecoder(dec)
		e.metrics.Inc(metricConnectFailed)
		return EmptyHandle, &api.ConnectError{Addr: addr, Err: c.err}
	}
	conn, err := e.wrap(c.fd, bufferSize, dec)
	if err == nil {
		e.metrics.Inc(metricConnected)
	}
	return conn, err
}

// Receive returns the next packet buffered on connection h, suspending until
// one arrives. Buffered packets are always returned before a disconnect is
// reported as *api.DisconnectError. The caller owns the returned packet.
func (e *Engine) Receive(ctx context.Context, h Handle) (api.Packet, error) {
	t, err := concurrency.CurrentThread(ctx)
	if err != nil {
		return nil, err
	}
	s, err := e.acquire(h)
	if err != nil {
		return nil, err
	}
	defer e.release(s)
	if s.kind != api.KindConnection {
		return nil, api.ErrWrongKind
	}

	for {
		if p, ok := s.inbound.Pop(); ok {
			return p, nil
		}
		if s.state == api.StateClosed {
			return nil, &api.DisconnectError{Err: s.lastError}
		}
		if err := e.park(ctx, t, s.waiters); err != nil {
			if s.inbound.Len() > 0 {
				s.waiters.WakeOne()
			}
			return nil, err
		}
	}
}

// Send hands p to the connection's stream, which owns it from then on. When
// the call is rejected p is released here.
func (e *Engine) Send(h Handle, p api.Packet) error {
	s, err := e.acquire(h)
	if err != nil {
		p.Release()
		e.metrics.Inc(metricSendRejected)
		return err
	}
	defer e.release(s)
	switch {
	case s.kind != api.KindConnection:
		err = api.ErrWrongKind
	case s.state != api.StateOpen:
		err = api.ErrAlreadyClosing
	}
	if err != nil {
		p.Release()
		e.metrics.Inc(metricSendRejected)
		return err
	}
	if err := s.stream.Send(p); err != nil {
		return fmt.Errorf("send on %s: %w", h, err)
	}
	e.metrics.Inc(metricPacketsOut)
	return nil
}

// Close closes h. A listener is torn down at once and its waiting acceptors
// resume with api.ErrListenerClosed. A connection finishes on a later poll
// step, when the stream reports the disconnect. Closing a socket that is no
// longer open returns api.ErrAlreadyClosing. If the caller's reference is
// still held at that point, as on a connection the peer closed first, Close
// drops it so the socket can be released; the handle is invalid afterwards.
func (e *Engine) Close(h Handle) error {
	s, err := e.acquire(h)
	if err != nil {
		return err
	}
	defer e.release(s)

	if s.state != api.StateOpen {
		// A connection the peer already closed still carries the
		// caller's reference; give it up so the socket can go.
		e.dropHandle(s)
		return api.ErrAlreadyClosing
	}
	s.advance(api.StateClosingRequested)

	switch s.kind {
	case api.KindListener:
		e.dropHandle(s)
		s.waiters.WakeAll()
	case api.KindConnection:
		e.dropHandle(s)
		if err := s.stream.Close(); err != nil {
			return fmt.Errorf("close %s: %w", h, err)
		}
	}
	return nil
}

// park suspends t on wq until it is woken or ctx is done. Only parked
// threads count against Config.MaxWaiters.
func (e *Engine) park(ctx context.Context, t *concurrency.Thread, wq *queue.WaiterQueue) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n := wq.Live(); e.cfg.MaxWaiters > 0 && n >= e.cfg.MaxWaiters {
		return fmt.Errorf("%d waiters queued: %w", n, api.ErrResourceExhausted)
	}
	w := t.NewWaiter()
	wq.Push(w)
	return w.ParkContext(ctx)
}

// wrap turns a connected descriptor into a connection socket. fd and dec are
// consumed on every path.
func (e *Engine) wrap(fd int, bufferSize int, dec api.Decoder) (Handle, error) {
	if err := e.checkCapacity(); err != nil {
		_ = e.r.CloseFD(fd)
		releaseDecoder(dec)
		return EmptyHandle, err
	}
	if dec == nil {
		dec = e.cfg.NewDecoder()
	}
	if bufferSize <= 0 {
		bufferSize = e.cfg.BufferSize
	}
	st, err := e.r.NewStream(fd, bufferSize, dec)
	if err != nil {
		_ = e.r.CloseFD(fd)
		dec.Release()
		return EmptyHandle, fmt.Errorf("wrap descriptor %d: %w", fd, err)
	}
	// One reference for the caller, one for the stream association.
	s := newConnection(st)
	e.register(s, 2)
	st.SetUserData(s.h)
	if err := st.Associate(e.onPacket, e.onDisconnected); err != nil {
		_ = st.Close()
		delete(e.sockets, s.h)
		return EmptyHandle, fmt.Errorf("associate %s: %w", s.h, err)
	}
	return s.h, nil
}

func (e *Engine) checkCapacity() error {
	if e.cfg.MaxSockets > 0 && len(e.sockets) >= e.cfg.MaxSockets {
		return fmt.Errorf("%d sockets open: %w", len(e.sockets), api.ErrResourceExhausted)
	}
	return nil
}

func releaseDecoder(dec api.Decoder) {
	if dec != nil {
		dec.Release()
	}
}
