// File: facade/engine.go
// Unified facade layer for hioload-ut.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This file defines the Engine, which binds one reactor and one cooperative
// scheduler behind the socket operations, and the driver loop that alternates
// between scheduling passes and reactor poll steps.

package facade

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/control"
	"github.com/momentics/hioload-ut/core/concurrency"
	"github.com/momentics/hioload-ut/core/protocol"
	"github.com/momentics/hioload-ut/pool"
	"go.uber.org/multierr"
)

// Counter names in the metrics registry.
const (
	metricListenersOpened     = "facade.listeners_opened"
	metricListenersClosed     = "facade.listeners_closed"
	metricAccepted            = "facade.accepted"
	metricConnected           = "facade.connected"
	metricConnectFailed       = "facade.connect_failed"
	metricConnectionsReleased = "facade.connections_released"
	metricPacketsIn           = "facade.packets_in"
	metricPacketsOut          = "facade.packets_out"
	metricSendRejected        = "facade.send_rejected"
	metricDisconnects         = "facade.disconnects"
)

// Config holds parameters immutable per engine.
type Config struct {
	// BufferSize is the stream read buffer used when an operation passes a
	// non-positive size.
	BufferSize int
	// MaxSockets caps open sockets; zero means unlimited.
	MaxSockets int
	// MaxWaiters caps threads waiting on one socket; zero means unlimited.
	MaxWaiters int
	// Pool backs packets produced by default decoders.
	Pool *pool.PacketPool
	// NewDecoder builds the decoder used when an operation passes nil.
	NewDecoder func() api.Decoder
	// Metrics receives engine counters.
	Metrics *control.MetricsRegistry
	Logger  *slog.Logger
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	pp := pool.Default()
	return &Config{
		BufferSize: 4096,
		Pool:       pp,
		NewDecoder: func() api.Decoder { return protocol.NewLengthPrefixed(pp, 0) },
		Metrics:    control.NewMetricsRegistry(),
		Logger:     slog.Default(),
	}
}

func (c *Config) normalize() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	if c.BufferSize > 0 {
		out.BufferSize = c.BufferSize
	}
	out.MaxSockets = c.MaxSockets
	out.MaxWaiters = c.MaxWaiters
	if c.Pool != nil {
		pp := c.Pool
		out.Pool = pp
		out.NewDecoder = func() api.Decoder { return protocol.NewLengthPrefixed(pp, 0) }
	}
	if c.NewDecoder != nil {
		out.NewDecoder = c.NewDecoder
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	if c.Logger != nil {
		out.Logger = c.Logger
	}
	return out
}

// Stats is a snapshot of engine state and counters.
type Stats struct {
	Listeners   int
	Connections int
	Threads     int
	Runnable    int

	ListenersOpened int64
	Accepted        int64
	Connected       int64
	ConnectFailed   int64
	PacketsIn       int64
	PacketsOut      int64
	SendRejected    int64
	Disconnects     int64

	Pool api.PoolStats
}

// Engine owns the socket table and drives one reactor and one scheduler.
// It is not safe for concurrent use: call it from the driver goroutine or
// from user threads it runs.
type Engine struct {
	cfg     *Config
	r       api.Reactor
	s       *concurrency.Scheduler
	log     *slog.Logger
	metrics *control.MetricsRegistry
	sockets map[Handle]*socket
	next    Handle
	closed  bool
}

// New binds r to a new engine. A nil scheduler gets a fresh one, a nil cfg
// selects DefaultConfig. A reactor can be bound to one engine only.
func New(r api.Reactor, s *concurrency.Scheduler, cfg *Config) (*Engine, error) {
	if r == nil {
		return nil, api.ErrNilReactor
	}
	cfg = cfg.normalize()
	if err := r.Claim(); err != nil {
		return nil, err
	}
	if s == nil {
		s = concurrency.NewScheduler(&concurrency.Config{Logger: cfg.Logger})
	}
	// Cancelled waits are posted from context goroutines; a blocking poll
	// must return so the driver can deliver them.
	s.SetNotify(func() { _ = r.Wakeup() })
	return &Engine{
		cfg:     cfg,
		r:       r,
		s:       s,
		log:     cfg.Logger.With("component", "facade"),
		metrics: cfg.Metrics,
		sockets: make(map[Handle]*socket),
	}, nil
}

// Scheduler returns the engine's scheduler.
func (e *Engine) Scheduler() *concurrency.Scheduler { return e.s }

// Reactor returns the engine's reactor.
func (e *Engine) Reactor() api.Reactor { return e.r }

// Spawn starts fn as a user thread on the next scheduling pass.
func (e *Engine) Spawn(fn func(ctx context.Context)) concurrency.ThreadID {
	return e.s.Spawn(fn)
}

// RunOnce runs one scheduling pass and one reactor poll step. The poll
// blocks only when no thread became runnable during the pass.
func (e *Engine) RunOnce() error {
	if e.closed {
		return api.ErrReactorClosed
	}
	e.s.Schedule()
	return e.r.RunOnce(e.s.Runnable() == 0)
}

// Run drives the engine until ctx is done or no user thread is left.
// It returns ctx.Err() in the first case.
func (e *Engine) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = e.r.Wakeup() })
	defer stop()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.closed {
			return api.ErrReactorClosed
		}
		e.s.Schedule()
		if e.s.Live() == 0 {
			return nil
		}
		if err := e.r.RunOnce(e.s.Runnable() == 0); err != nil {
			return err
		}
	}
}

// RunForever drives the engine until Shutdown or a reactor failure. Unlike
// Run it keeps polling when no user thread is alive, so sockets keep
// accepting work spawned from outside.
func (e *Engine) RunForever() error {
	for {
		if err := e.RunOnce(); err != nil {
			if errors.Is(err, api.ErrReactorClosed) {
				return nil
			}
			return err
		}
	}
}

// Stats returns a snapshot of counters and live objects.
func (e *Engine) Stats() Stats {
	st := Stats{
		Threads:         e.s.Live(),
		Runnable:        e.s.Runnable(),
		ListenersOpened: e.metrics.Counter(metricListenersOpened),
		Accepted:        e.metrics.Counter(metricAccepted),
		Connected:       e.metrics.Counter(metricConnected),
		ConnectFailed:   e.metrics.Counter(metricConnectFailed),
		PacketsIn:       e.metrics.Counter(metricPacketsIn),
		PacketsOut:      e.metrics.Counter(metricPacketsOut),
		SendRejected:    e.metrics.Counter(metricSendRejected),
		Disconnects:     e.metrics.Counter(metricDisconnects),
		Pool:            e.cfg.Pool.Stats(),
	}
	for _, s := range e.sockets {
		if s.kind == api.KindListener {
			st.Listeners++
		} else {
			st.Connections++
		}
	}
	return st
}

// RegisterProbes exposes live engine gauges through dp.
func (e *Engine) RegisterProbes(dp *control.DebugProbes) {
	dp.RegisterProbe("facade.sockets", func() any { return len(e.sockets) })
	dp.RegisterProbe("scheduler.live", func() any { return e.s.Live() })
	dp.RegisterProbe("pool.in_use", func() any { return e.cfg.Pool.Stats().InUse })
}

// Shutdown resumes every suspended thread with api.ErrSchedulerClosed, lets
// them run to completion, then closes every socket and the reactor. Disconnect
// callbacks do not run. It must be called from the driver, not from a user
// thread.
func (e *Engine) Shutdown() error {
	if e.closed {
		return nil
	}
	err := e.s.Close()
	if err != nil {
		return err
	}
	e.closed = true

	handles := make([]Handle, 0, len(e.sockets))
	for h := range e.sockets {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		s := e.sockets[h]
		s.advance(api.StateClosed)
		e.destroy(s)
	}
	err = multierr.Append(err, e.r.Close())
	e.log.Debug("engine shut down", "sockets", len(handles))
	return err
}
