// File: fake/reactor.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/momentics/hioload-ut/api"
)

// Errors produced by the fake network.
var (
	ErrRefused   = errors.New("fake: connection refused")
	ErrAddrInUse  = errors.New("fake: address already in use")
	ErrBadFD      = errors.New("fake: bad descriptor")
	ErrBrokenPipe = errors.New("fake: broken pipe")
)

// Options inject failures and tune connect timing.
type Options struct {
	// ConnectImmediately makes Connect run its callback before returning.
	ConnectImmediately bool
	// HoldConnects parks asynchronous connect completions until
	// ReleaseConnects.
	HoldConnects bool
	// ConnectErr makes Connect fail synchronously.
	ConnectErr error
	// SocketErr makes Socket fail.
	SocketErr error
	// StreamErr makes NewStream fail.
	StreamErr error
	// SendErr makes every Stream.Send fail.
	SendErr error
}

var _ api.Reactor = (*Reactor)(nil)

// Reactor is an in-memory api.Reactor. Not safe for concurrent use, except
// for Wakeup.
type Reactor struct {
	Options Options

	log       *slog.Logger
	nextFD    int
	sockets   map[int]bool
	listeners map[int]*listener
	byAddr    map[string]*listener
	ends      map[int]*end
	ready     map[int]bool
	posted    []func()
	held      []func()
	claimed   bool
	closed    bool
	wakeups   atomic.Int64
	polls     int
}

type listener struct {
	fd   int
	addr api.Address
	cb   api.AcceptCallback
}

// end is one side of an in-memory connection.
type end struct {
	fd         int
	peer       *end
	inbox      []byte
	peerClosed bool
	closed     bool
	stream     *Stream
}

// NewReactor creates an empty fake network.
func NewReactor() *Reactor {
	return &Reactor{
		log:       slog.Default().With("component", "fake-reactor"),
		nextFD:    100,
		sockets:   make(map[int]bool),
		listeners: make(map[int]*listener),
		byAddr:    make(map[string]*listener),
		ends:      make(map[int]*end),
		ready:     make(map[int]bool),
	}
}

func (r *Reactor) Claim() error {
	if r.claimed {
		return api.ErrAlreadyInitialized
	}
	r.claimed = true
	return nil
}

func (r *Reactor) Socket(addr api.Address) (int, error) {
	if r.Options.SocketErr != nil {
		return -1, r.Options.SocketErr
	}
	fd := r.allocFD()
	r.sockets[fd] = true
	return fd, nil
}

func (r *Reactor) Listen(fd int, addr api.Address, cb api.AcceptCallback) error {
	if !r.sockets[fd] {
		return ErrBadFD
	}
	if _, busy := r.byAddr[addr.String()]; busy {
		return fmt.Errorf("listen %s: %w", addr, ErrAddrInUse)
	}
	l := &listener{fd: fd, addr: addr, cb: cb}
	r.listeners[fd] = l
	r.byAddr[addr.String()] = l
	return nil
}

func (r *Reactor) LocalAddr(fd int) (api.Address, error) {
	if l, ok := r.listeners[fd]; ok {
		return l.addr, nil
	}
	return api.Address{}, ErrBadFD
}

// Connect pairs a new connection with the listener bound to addr. Without a
// listener the callback reports ErrRefused.
func (r *Reactor) Connect(addr api.Address, cb api.ConnectCallback) (bool, error) {
	if r.Options.ConnectErr != nil {
		return false, r.Options.ConnectErr
	}
	l, ok := r.byAddr[addr.String()]
	if !ok {
		if r.Options.ConnectImmediately {
			cb(-1, ErrRefused)
			return false, nil
		}
		r.complete(func() { cb(-1, ErrRefused) })
		return true, nil
	}
	client, server := r.pipe()
	if r.Options.ConnectImmediately {
		r.post(func() { r.accept(l, server) })
		cb(client.fd, nil)
		return false, nil
	}
	r.complete(func() {
		r.accept(l, server)
		cb(client.fd, nil)
	})
	return true, nil
}

// complete schedules a connect completion, or holds it with HoldConnects.
func (r *Reactor) complete(fn func()) {
	if r.Options.HoldConnects {
		r.held = append(r.held, fn)
		return
	}
	r.post(fn)
}

// ReleaseConnects schedules every held connect completion for the next
// RunOnce.
func (r *Reactor) ReleaseConnects() {
	for _, fn := range r.held {
		r.post(fn)
	}
	r.held = nil
}

// Dial opens a connection whose client end stays raw and belongs to the
// test. Use Write, Read and HangUp on the returned descriptor.
func (r *Reactor) Dial(addr api.Address) (int, error) {
	l, ok := r.byAddr[addr.String()]
	if !ok {
		return -1, ErrRefused
	}
	client, server := r.pipe()
	r.post(func() { r.accept(l, server) })
	return client.fd, nil
}

// Write appends raw bytes to the inbox of fd's peer.
func (r *Reactor) Write(fd int, b []byte) error {
	e, ok := r.ends[fd]
	if !ok || e.closed {
		return ErrBadFD
	}
	return r.deliverTo(e.peer, b)
}

// Read drains the bytes received on a raw descriptor.
func (r *Reactor) Read(fd int) []byte {
	e, ok := r.ends[fd]
	if !ok {
		return nil
	}
	b := e.inbox
	e.inbox = nil
	return b
}

// PeerClosed reports whether the other side of fd has gone away.
func (r *Reactor) PeerClosed(fd int) bool {
	e, ok := r.ends[fd]
	return !ok || e.peerClosed
}

// HangUp closes a raw descriptor from the test side.
func (r *Reactor) HangUp(fd int) error {
	return r.CloseFD(fd)
}

func (r *Reactor) CloseFD(fd int) error {
	if l, ok := r.listeners[fd]; ok {
		delete(r.listeners, fd)
		delete(r.byAddr, l.addr.String())
		delete(r.sockets, fd)
		return nil
	}
	if r.sockets[fd] {
		delete(r.sockets, fd)
		return nil
	}
	e, ok := r.ends[fd]
	if !ok {
		return ErrBadFD
	}
	r.closeEnd(e)
	return nil
}

func (r *Reactor) NewStream(fd int, bufferSize int, dec api.Decoder) (api.Stream, error) {
	if r.Options.StreamErr != nil {
		return nil, r.Options.StreamErr
	}
	e, ok := r.ends[fd]
	if !ok || e.closed || e.stream != nil {
		return nil, ErrBadFD
	}
	s := &Stream{r: r, e: e, dec: dec}
	e.stream = s
	return s, nil
}

// RunOnce runs deferred tasks, then delivers buffered bytes to associated
// streams in descriptor order. It never blocks.
func (r *Reactor) RunOnce(block bool) error {
	if r.closed {
		return api.ErrReactorClosed
	}
	r.polls++
	tasks := r.posted
	r.posted = nil
	for _, fn := range tasks {
		r.safely(fn)
	}
	fds := make([]int, 0, len(r.ready))
	for fd := range r.ready {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	r.ready = make(map[int]bool)
	for _, fd := range fds {
		if e, ok := r.ends[fd]; ok && e.stream != nil {
			s := e.stream
			r.safely(s.pump)
		}
	}
	return nil
}

func (r *Reactor) Wakeup() error {
	r.wakeups.Add(1)
	return nil
}

func (r *Reactor) Close() error {
	r.closed = true
	r.posted = nil
	r.held = nil
	for _, e := range r.ends {
		if e.stream != nil && !e.stream.finished {
			e.stream.finished = true
			e.stream.dec.Release()
		}
	}
	r.ends = map[int]*end{}
	r.listeners = map[int]*listener{}
	r.byAddr = map[string]*listener{}
	r.sockets = map[int]bool{}
	return nil
}

// OpenFDs counts descriptors that are still open.
func (r *Reactor) OpenFDs() int {
	return len(r.sockets) + len(r.ends)
}

// Pending reports whether RunOnce has work to do.
func (r *Reactor) Pending() bool {
	return len(r.posted) > 0 || len(r.ready) > 0
}

// Polls returns the number of RunOnce calls.
func (r *Reactor) Polls() int { return r.polls }

// Wakeups returns the number of Wakeup calls.
func (r *Reactor) Wakeups() int64 { return r.wakeups.Load() }

func (r *Reactor) allocFD() int {
	fd := r.nextFD
	r.nextFD++
	return fd
}

func (r *Reactor) pipe() (*end, *end) {
	a := &end{fd: r.allocFD()}
	b := &end{fd: r.allocFD(), peer: a}
	a.peer = b
	r.ends[a.fd] = a
	r.ends[b.fd] = b
	return a, b
}

func (r *Reactor) accept(l *listener, server *end) {
	if cur, ok := r.listeners[l.fd]; !ok || cur != l {
		// Listener went away while the connection was in flight.
		r.closeEnd(server)
		return
	}
	l.cb(server.fd)
}

func (r *Reactor) deliverTo(e *end, b []byte) error {
	if e.closed {
		return ErrBrokenPipe
	}
	e.inbox = append(e.inbox, b...)
	r.ready[e.fd] = true
	return nil
}

// closeEnd closes e and tells the peer.
func (r *Reactor) closeEnd(e *end) {
	if e.closed {
		return
	}
	e.closed = true
	delete(r.ends, e.fd)
	if p := e.peer; p != nil && !p.closed {
		p.peerClosed = true
		r.ready[p.fd] = true
	}
}

func (r *Reactor) post(fn func()) { r.posted = append(r.posted, fn) }

func (r *Reactor) safely(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("callback panicked", "panic", rec)
		}
	}()
	fn()
}
