//go:build linux

// File: reactor/stream_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Non-blocking stream over a connected socket. Reads are decoded into packets
// and handed to the packet callback one by one; writes that would block are
// buffered and flushed on EPOLLOUT.

package reactor

import (
	"fmt"
	"io"

	"github.com/momentics/hioload-ut/api"
	"golang.org/x/sys/unix"
)

var _ api.Stream = (*stream)(nil)

type stream struct {
	r   *Reactor
	fd  int
	dec api.Decoder

	rbuf []byte
	rlen int
	wbuf []byte

	onPacket     api.PacketCallback
	onDisconnect api.DisconnectCallback
	userData     any

	events     uint32
	registered bool
	associated bool
	closing    bool
	finished   bool
}

func newStream(r *Reactor, fd, bufferSize int, dec api.Decoder) *stream {
	return &stream{
		r:    r,
		fd:   fd,
		dec:  dec,
		rbuf: make([]byte, bufferSize),
	}
}

func (s *stream) Fd() int { return s.fd }

func (s *stream) UserData() any { return s.userData }

func (s *stream) SetUserData(v any) { s.userData = v }

// Associate starts reading and enables the disconnect notification.
func (s *stream) Associate(onPacket api.PacketCallback, onDisconnect api.DisconnectCallback) error {
	if s.finished {
		return api.ErrStreamClosed
	}
	if s.associated {
		return fmt.Errorf("stream fd %d already associated: %w", s.fd, api.ErrNotSupported)
	}
	s.onPacket = onPacket
	s.onDisconnect = onDisconnect
	s.associated = true
	return s.updateEvents()
}

// Send encodes p and writes it, buffering whatever the socket does not take.
func (s *stream) Send(p api.Packet) error {
	defer p.Release()
	if s.finished || s.closing {
		return api.ErrStreamClosed
	}
	b, err := s.dec.Encode(p)
	if err != nil {
		return err
	}
	if len(s.wbuf) > 0 {
		s.wbuf = append(s.wbuf, b...)
		return nil
	}
	rest, err := s.write(b)
	if err != nil {
		s.r.post(func() { s.finish(err) })
		return fmt.Errorf("send fd %d: %w", s.fd, err)
	}
	if len(rest) > 0 {
		s.wbuf = append(s.wbuf, rest...)
		return s.updateEvents()
	}
	return nil
}

// Close stops reading, flushes buffered output and finishes the stream on a
// later poll step.
func (s *stream) Close() error {
	if s.finished || s.closing {
		return api.ErrStreamClosed
	}
	s.closing = true
	if len(s.wbuf) == 0 {
		s.r.post(func() { s.finish(api.ErrLocalClose) })
	}
	return s.updateEvents()
}

func (s *stream) handleEvent(events uint32) {
	if events&unix.EPOLLOUT != 0 {
		s.flush()
	}
	if s.finished {
		return
	}
	if events&(unix.EPOLLIN|unix.EPOLLRDHUP|unix.EPOLLHUP|unix.EPOLLERR) == 0 {
		return
	}
	if s.closing {
		s.finish(api.ErrLocalClose)
		return
	}
	s.read()
}

func (s *stream) read() {
	if s.rlen == len(s.rbuf) {
		grown := make([]byte, 2*len(s.rbuf))
		copy(grown, s.rbuf[:s.rlen])
		s.rbuf = grown
	}
	n, err := unix.Read(s.fd, s.rbuf[s.rlen:])
	switch {
	case err == unix.EAGAIN || err == unix.EINTR:
		return
	case err != nil:
		s.finish(err)
		return
	case n == 0:
		s.finish(io.EOF)
		return
	}
	s.rlen += n
	s.decode()
}

func (s *stream) decode() {
	off := 0
	for !s.finished && !s.closing && off < s.rlen {
		p, n, err := s.dec.Decode(s.rbuf[off:s.rlen])
		if err != nil {
			s.finish(err)
			return
		}
		if p == nil {
			break
		}
		if n <= 0 {
			p.Release()
			s.finish(fmt.Errorf("decoder consumed %d bytes: %w", n, api.ErrNotSupported))
			return
		}
		off += n
		s.deliver(p)
	}
	if s.finished {
		return
	}
	s.rlen = copy(s.rbuf, s.rbuf[off:s.rlen])
}

func (s *stream) deliver(p api.Packet) {
	defer p.Release()
	if s.onPacket != nil {
		s.onPacket(s, p)
	}
}

func (s *stream) flush() {
	if len(s.wbuf) == 0 {
		return
	}
	rest, err := s.write(s.wbuf)
	if err != nil {
		s.finish(err)
		return
	}
	s.wbuf = append(s.wbuf[:0], rest...)
	if len(s.wbuf) > 0 {
		return
	}
	if s.closing {
		s.finish(api.ErrLocalClose)
		return
	}
	if err := s.updateEvents(); err != nil {
		s.finish(err)
	}
}

// write writes b until the socket would block and returns the unwritten tail.
func (s *stream) write(b []byte) ([]byte, error) {
	for len(b) > 0 {
		n, err := unix.Write(s.fd, b)
		switch {
		case err == unix.EINTR:
			continue
		case err == unix.EAGAIN:
			return b, nil
		case err != nil:
			return b, err
		}
		b = b[n:]
	}
	return b, nil
}

// updateEvents syncs the epoll interest set with the stream state.
func (s *stream) updateEvents() error {
	var want uint32
	if s.associated && !s.closing {
		want |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if len(s.wbuf) > 0 {
		want |= unix.EPOLLOUT
	}
	if !s.registered {
		if want == 0 {
			return nil
		}
		if err := s.r.register(s.fd, s, want); err != nil {
			return err
		}
		s.registered = true
		s.events = want
		return nil
	}
	if want == s.events {
		return nil
	}
	if err := s.r.p.mod(s.fd, want); err != nil {
		return err
	}
	s.events = want
	return nil
}

// finish closes the descriptor and runs the disconnect callback once.
func (s *stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	if s.registered {
		_ = s.r.unregister(s.fd)
		s.registered = false
	}
	_ = unix.Close(s.fd)
	s.fd = -1
	s.dec.Release()
	s.rbuf, s.wbuf = nil, nil
	if s.associated && s.onDisconnect != nil {
		s.onDisconnect(s, err)
	}
}

func (s *stream) teardown() error {
	if s.finished {
		return nil
	}
	s.finished = true
	s.registered = false
	s.dec.Release()
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}
