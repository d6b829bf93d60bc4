// File: kv/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package kv

import (
	"context"
	"errors"
	"log/slog"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/facade"
	"github.com/momentics/hioload-ut/pool"
)

// Server answers requests on every connection accepted from a listener.
type Server struct {
	e     *facade.Engine
	store *Store
	pool  *pool.PacketPool
	log   *slog.Logger
	conns int
}

// NewServer creates a server over store. A nil store starts empty, a nil
// pool selects pool.Default().
func NewServer(e *facade.Engine, store *Store, pp *pool.PacketPool, logger *slog.Logger) *Server {
	if store == nil {
		store = NewStore()
	}
	if pp == nil {
		pp = pool.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{e: e, store: store, pool: pp, log: logger.With("component", "kv")}
}

// Store returns the backing store.
func (s *Server) Store() *Store { return s.store }

// Connections returns the number of connections being served.
func (s *Server) Connections() int { return s.conns }

// Serve accepts connections on ln until the listener is closed, spawning one
// user thread per connection. It must run in a user thread.
func (s *Server) Serve(ctx context.Context, ln facade.Handle) error {
	for {
		conn, err := s.e.Accept(ctx, ln, 0, nil)
		if err != nil {
			if errors.Is(err, api.ErrListenerClosed) {
				return nil
			}
			return err
		}
		s.conns++
		s.e.Spawn(func(ctx context.Context) {
			defer func() { s.conns-- }()
			s.serveConn(ctx, conn)
		})
	}
}

func (s *Server) serveConn(ctx context.Context, conn facade.Handle) {
	defer func() { _ = s.e.Close(conn) }()
	for {
		p, err := s.e.Receive(ctx, conn)
		if err != nil {
			s.log.Debug("connection done", "conn", conn.String(), "err", err)
			return
		}
		var req Request
		resp := Response{Version: schemaVersion}
		if err := decode(p, &req); err != nil {
			resp.Err = err.Error()
		} else {
			resp = s.handle(req)
		}
		out, err := encode(s.pool, &resp)
		if err != nil {
			s.log.Warn("encode response", "err", err)
			return
		}
		if err := s.e.Send(conn, out); err != nil {
			s.log.Debug("send response", "conn", conn.String(), "err", err)
			return
		}
	}
}

func (s *Server) handle(req Request) Response {
	resp := Response{Version: schemaVersion, ID: req.ID}
	if req.Version != schemaVersion {
		resp.Err = ErrSchemaVersion.Error()
		return resp
	}
	switch req.Op {
	case OpGet:
		resp.Value, resp.Found = s.store.Get(req.Key)
	case OpSet:
		s.store.Set(req.Key, req.Value)
		resp.Found = true
	case OpDel:
		resp.Found = s.store.Del(req.Key)
	case OpPing:
		resp.Found = true
		resp.Value = req.Value
	default:
		resp.Err = ErrBadRequest.Error()
	}
	return resp
}
