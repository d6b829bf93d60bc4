// File: fake/stream.go
// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package fake

import (
	"fmt"
	"io"

	"github.com/momentics/hioload-ut/api"
)

var _ api.Stream = (*Stream)(nil)

// Stream is the in-memory api.Stream.
type Stream struct {
	r   *Reactor
	e   *end
	dec api.Decoder

	onPacket     api.PacketCallback
	onDisconnect api.DisconnectCallback
	userData     any

	associated bool
	closing    bool
	finished   bool
	sent       int
}

func (s *Stream) Fd() int {
	if s.finished {
		return -1
	}
	return s.e.fd
}

func (s *Stream) UserData() any { return s.userData }

func (s *Stream) SetUserData(v any) { s.userData = v }

// Sent returns the number of packets written to the peer.
func (s *Stream) Sent() int { return s.sent }

func (s *Stream) Associate(onPacket api.PacketCallback, onDisconnect api.DisconnectCallback) error {
	if s.finished {
		return api.ErrStreamClosed
	}
	if s.associated {
		return fmt.Errorf("stream fd %d already associated: %w", s.e.fd, api.ErrNotSupported)
	}
	s.onPacket, s.onDisconnect = onPacket, onDisconnect
	s.associated = true
	s.r.ready[s.e.fd] = true
	return nil
}

func (s *Stream) Send(p api.Packet) error {
	defer p.Release()
	if s.finished || s.closing {
		return api.ErrStreamClosed
	}
	if err := s.r.Options.SendErr; err != nil {
		return err
	}
	b, err := s.dec.Encode(p)
	if err != nil {
		return err
	}
	if err := s.r.deliverTo(s.e.peer, b); err != nil {
		return err
	}
	s.sent++
	return nil
}

// Close hangs up at the next RunOnce. Data already sent stays readable by
// the peer.
func (s *Stream) Close() error {
	if s.finished || s.closing {
		return api.ErrStreamClosed
	}
	s.closing = true
	s.r.post(func() { s.finish(api.ErrLocalClose) })
	return nil
}

// pump decodes buffered input and reports a hang-up once it is drained.
func (s *Stream) pump() {
	if !s.associated || s.finished {
		return
	}
	e := s.e
	for !s.closing && !s.finished && len(e.inbox) > 0 {
		p, n, err := s.dec.Decode(e.inbox)
		if err != nil {
			s.finish(err)
			return
		}
		if p == nil {
			break
		}
		e.inbox = e.inbox[n:]
		s.deliver(p)
	}
	if !s.finished && !s.closing && e.peerClosed {
		s.finish(io.EOF)
	}
}

func (s *Stream) deliver(p api.Packet) {
	defer p.Release()
	if s.onPacket != nil {
		s.onPacket(s, p)
	}
}

func (s *Stream) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	s.r.closeEnd(s.e)
	s.dec.Release()
	if s.associated && s.onDisconnect != nil {
		s.onDisconnect(s, err)
	}
}
