//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Thin epoll(7) wrapper plus the eventfd used to interrupt a blocking wait.

package reactor

import (
	"encoding/binary"
	"fmt"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// poller owns the epoll instance and the wakeup eventfd.
type poller struct {
	epfd int
	evfd int
	raw  []unix.EpollEvent
}

func newPoller(maxEvents int) (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	evfd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	p := &poller{epfd: epfd, evfd: evfd, raw: make([]unix.EpollEvent, maxEvents)}
	if err := p.add(evfd, unix.EPOLLIN); err != nil {
		unix.Close(evfd)
		unix.Close(epfd)
		return nil, err
	}
	return p, nil
}

func (p *poller) add(fd int, events uint32) error {
	ev := &unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl add fd %d: %w", fd, err)
	}
	return nil
}

func (p *poller) mod(fd int, events uint32) error {
	ev := &unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl mod fd %d: %w", fd, err)
	}
	return nil
}

func (p *poller) del(fd int) error {
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del fd %d: %w", fd, err)
	}
	return nil
}

// wait returns the ready events. timeoutMs < 0 blocks indefinitely.
func (p *poller) wait(timeoutMs int) ([]unix.EpollEvent, error) {
	n, err := unix.EpollWait(p.epfd, p.raw, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}
	return p.raw[:n], nil
}

// wakeup makes a blocked wait return. Safe from any goroutine.
func (p *poller) wakeup() error {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, err := unix.Write(p.evfd, one[:])
	if err == unix.EAGAIN {
		// Counter saturated; a wakeup is already pending.
		return nil
	}
	return err
}

// drainWakeup resets the eventfd counter.
func (p *poller) drainWakeup() {
	var buf [8]byte
	_, _ = unix.Read(p.evfd, buf[:])
}

func (p *poller) close() error {
	return multierr.Combine(unix.Close(p.evfd), unix.Close(p.epfd))
}
