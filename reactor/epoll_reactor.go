//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll implementation.

package reactor

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/momentics/hioload-ut/api"
	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// Ensure compile-time interface compliance.
var _ api.Reactor = (*Reactor)(nil)

// handler receives readiness events for one registered descriptor.
type handler interface {
	handleEvent(events uint32)
	// teardown closes the descriptor during Reactor.Close.
	teardown() error
}

// Reactor is the epoll-backed api.Reactor. It is not safe for concurrent use,
// except for Wakeup.
type Reactor struct {
	cfg      *Config
	log      *slog.Logger
	p        *poller
	handlers map[int]handler
	posted   []func()
	claimed  bool
	closed   bool
}

// New creates an epoll reactor. A nil cfg selects DefaultConfig.
func New(cfg *Config) (*Reactor, error) {
	cfg = cfg.normalize()
	p, err := newPoller(cfg.MaxEvents)
	if err != nil {
		return nil, err
	}
	return &Reactor{
		cfg:      cfg,
		log:      cfg.Logger.With("component", "reactor"),
		p:        p,
		handlers: make(map[int]handler),
	}, nil
}

// Claim binds the reactor to its single owner.
func (r *Reactor) Claim() error {
	if r.claimed {
		return api.ErrAlreadyInitialized
	}
	r.claimed = true
	return nil
}

// Socket creates a non-blocking stream socket for addr.
func (r *Reactor) Socket(addr api.Address) (int, error) {
	_, domain, err := sockaddr(addr)
	if err != nil {
		return -1, err
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket %s: %w", addr, err)
	}
	if domain != unix.AF_UNIX {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			unix.Close(fd)
			return -1, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
		}
	}
	return fd, nil
}

// Listen binds and listens on fd and reports every accepted descriptor to cb.
func (r *Reactor) Listen(fd int, addr api.Address, cb api.AcceptCallback) error {
	sa, _, err := sockaddr(addr)
	if err != nil {
		return err
	}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := unix.Listen(fd, r.cfg.Backlog); err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	l := &listener{r: r, fd: fd, cb: cb}
	if err := r.p.add(fd, unix.EPOLLIN); err != nil {
		return err
	}
	r.handlers[fd] = l
	r.log.Debug("listening", "fd", fd, "addr", addr.String())
	return nil
}

// LocalAddr returns the address fd is bound to.
func (r *Reactor) LocalAddr(fd int) (api.Address, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return api.Address{}, fmt.Errorf("getsockname fd %d: %w", fd, err)
	}
	network := api.NetworkTCP
	if _, ok := sa.(*unix.SockaddrUnix); ok {
		network = api.NetworkUNIX
	}
	return api.Address{Network: network, Address: sockaddrString(sa)}, nil
}

// Connect starts a non-blocking connect. Loopback unix sockets usually
// complete at once, in which case cb runs before Connect returns.
func (r *Reactor) Connect(addr api.Address, cb api.ConnectCallback) (bool, error) {
	sa, _, err := sockaddr(addr)
	if err != nil {
		return false, err
	}
	fd, err := r.Socket(addr)
	if err != nil {
		return false, err
	}
	for {
		err = unix.Connect(fd, sa)
		if err != unix.EINTR {
			break
		}
	}
	switch err {
	case nil:
		cb(fd, nil)
		return false, nil
	case unix.EINPROGRESS, unix.EAGAIN:
	default:
		unix.Close(fd)
		return false, fmt.Errorf("connect %s: %w", addr, err)
	}
	c := &connector{r: r, fd: fd, addr: addr, cb: cb}
	if err := r.p.add(fd, unix.EPOLLOUT); err != nil {
		unix.Close(fd)
		return false, err
	}
	r.handlers[fd] = c
	return true, nil
}

// CloseFD closes a raw descriptor, unregistering it first when needed.
func (r *Reactor) CloseFD(fd int) error {
	if fd < 0 {
		return api.ErrInvalidHandle
	}
	var err error
	if _, ok := r.handlers[fd]; ok {
		delete(r.handlers, fd)
		err = r.p.del(fd)
	}
	return multierr.Append(err, unix.Close(fd))
}

// NewStream wraps a connected descriptor.
func (r *Reactor) NewStream(fd int, bufferSize int, dec api.Decoder) (api.Stream, error) {
	if fd < 0 {
		return nil, api.ErrInvalidHandle
	}
	if dec == nil {
		return nil, errors.New("reactor: nil decoder")
	}
	if bufferSize <= 0 {
		bufferSize = r.cfg.DefaultBufferSize
	}
	return newStream(r, fd, bufferSize, dec), nil
}

// RunOnce runs deferred tasks, then handles one batch of readiness events.
// It only blocks when block is set and no deferred work is pending.
func (r *Reactor) RunOnce(block bool) error {
	if r.closed {
		return api.ErrReactorClosed
	}
	ran := r.runPosted()
	timeout := 0
	if block && !ran && len(r.posted) == 0 {
		timeout = -1
	}
	events, err := r.p.wait(timeout)
	if err != nil {
		return err
	}
	for _, ev := range events {
		fd := int(ev.Fd)
		if fd == r.p.evfd {
			r.p.drainWakeup()
			continue
		}
		h, ok := r.handlers[fd]
		if !ok {
			continue
		}
		r.dispatch(h, ev.Events)
	}
	return nil
}

// Wakeup interrupts a blocking RunOnce.
func (r *Reactor) Wakeup() error {
	return r.p.wakeup()
}

// Close tears down every registered descriptor without running callbacks.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.posted = nil
	fds := make([]int, 0, len(r.handlers))
	for fd := range r.handlers {
		fds = append(fds, fd)
	}
	sort.Ints(fds)
	var err error
	for _, fd := range fds {
		err = multierr.Append(err, r.handlers[fd].teardown())
	}
	r.handlers = nil
	return multierr.Append(err, r.p.close())
}

// post defers fn to the start of the next RunOnce.
func (r *Reactor) post(fn func()) {
	r.posted = append(r.posted, fn)
}

func (r *Reactor) runPosted() bool {
	if len(r.posted) == 0 {
		return false
	}
	tasks := r.posted
	r.posted = nil
	for _, fn := range tasks {
		r.safely("posted task", fn)
	}
	return true
}

func (r *Reactor) dispatch(h handler, events uint32) {
	r.safely("event handler", func() { h.handleEvent(events) })
}

// safely runs fn, logging instead of propagating a panic so that one faulty
// callback cannot stop the loop.
func (r *Reactor) safely(what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("callback panicked", "where", what, "panic", rec)
		}
	}()
	fn()
}

func (r *Reactor) register(fd int, h handler, events uint32) error {
	if err := r.p.add(fd, events); err != nil {
		return err
	}
	r.handlers[fd] = h
	return nil
}

func (r *Reactor) unregister(fd int) error {
	if _, ok := r.handlers[fd]; !ok {
		return nil
	}
	delete(r.handlers, fd)
	return r.p.del(fd)
}

// listener accepts inbound connections on a listening descriptor.
type listener struct {
	r  *Reactor
	fd int
	cb api.AcceptCallback
}

func (l *listener) handleEvent(uint32) {
	for {
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch err {
		case nil:
		case unix.EAGAIN:
			return
		case unix.EINTR, unix.ECONNRESET, unix.ECONNABORTED:
			// The peer went away while queued; try the next one.
			continue
		default:
			l.r.log.Warn("accept failed", "fd", l.fd, "err", err)
			return
		}
		l.r.log.Debug("accepted", "listener", l.fd, "fd", nfd, "peer", sockaddrString(sa))
		l.cb(nfd)
	}
}

func (l *listener) teardown() error {
	return unix.Close(l.fd)
}

// connector waits for a non-blocking connect to finish.
type connector struct {
	r    *Reactor
	fd   int
	addr api.Address
	cb   api.ConnectCallback
}

func (c *connector) handleEvent(uint32) {
	_ = c.r.unregister(c.fd)
	errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err == nil && errno != 0 {
		err = unix.Errno(errno)
	}
	if err != nil {
		unix.Close(c.fd)
		c.cb(-1, fmt.Errorf("connect %s: %w", c.addr, err))
		return
	}
	c.cb(c.fd, nil)
}

func (c *connector) teardown() error {
	return unix.Close(c.fd)
}
