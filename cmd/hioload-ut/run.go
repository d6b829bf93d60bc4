// File: cmd/hioload-ut/run.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Engine construction and the driver goroutines shared by all subcommands.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/momentics/hioload-ut/affinity"
	"github.com/momentics/hioload-ut/control"
	"github.com/momentics/hioload-ut/facade"
	"github.com/momentics/hioload-ut/pool"
	"github.com/momentics/hioload-ut/reactor"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// app bundles one engine with the objects the subcommands need around it.
type app struct {
	log      *slog.Logger
	e        *facade.Engine
	pool     *pool.PacketPool
	metrics  *control.MetricsRegistry
	probes   *control.DebugProbes
	interval time.Duration
	cpu      int
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	interval, err := time.ParseDuration(cfg.Stats.Interval)
	if err != nil {
		return nil, fmt.Errorf("stats.interval: %w", err)
	}
	log := cfg.logger()

	r, err := reactor.New(&reactor.Config{
		MaxEvents:         cfg.Reactor.MaxEvents,
		DefaultBufferSize: cfg.Engine.BufferSize,
		Backlog:           cfg.Reactor.Backlog,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}
	pp := pool.NewPacketPool()
	newDecoder, err := newDecoderFactory(cfg.Engine.Codec, pp, cfg.Engine.MaxPacket)
	if err != nil {
		return nil, multierr.Append(err, r.Close())
	}
	metrics := control.NewMetricsRegistry()
	e, err := facade.New(r, nil, &facade.Config{
		BufferSize: cfg.Engine.BufferSize,
		MaxSockets: cfg.Engine.MaxSockets,
		MaxWaiters: cfg.Engine.MaxWaiters,
		Pool:       pp,
		NewDecoder: newDecoder,
		Metrics:    metrics,
		Logger:     log,
	})
	if err != nil {
		return nil, multierr.Append(err, r.Close())
	}
	probes := control.NewDebugProbes()
	e.RegisterProbes(probes)
	control.RegisterPlatformProbes(probes)
	return &app{
		log:      log,
		e:        e,
		pool:     pp,
		metrics:  metrics,
		probes:   probes,
		interval: interval,
		cpu:      cfg.Engine.CPU,
	}, nil
}

// run drives the engine until every user thread finished, ctx is cancelled
// or the process receives SIGINT/SIGTERM, then shuts the engine down.
func (a *app) run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.dumpProbes("starting")
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		if a.cpu >= 0 {
			unpin, err := affinity.Pin(a.cpu)
			if err != nil {
				return err
			}
			defer unpin()
			a.log.Debug("driver pinned", "cpu", a.cpu)
		}
		err := a.e.Run(gctx)
		if errors.Is(err, context.Canceled) {
			a.log.Info("interrupted, shutting down")
			return nil
		}
		return err
	})
	if a.interval > 0 {
		g.Go(func() error {
			a.report(gctx)
			return nil
		})
	}
	err := g.Wait()
	a.dumpProbes("stopping")
	return multierr.Append(err, a.e.Shutdown())
}

// dumpProbes logs engine and platform gauges. Probes read engine state, so
// it must not run while the driver goroutine is active.
func (a *app) dumpProbes(msg string) {
	state := a.probes.DumpState()
	args := make([]any, 0, 2*len(state))
	for _, name := range a.probes.Names() {
		args = append(args, name, state[name])
	}
	a.log.Debug(msg, args...)
}

// report logs counters every interval. It only touches the metrics registry
// and the packet pool, both safe to read from another goroutine.
func (a *app) report(ctx context.Context) {
	t := time.NewTicker(a.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := a.metrics.GetSnapshot()
			args := make([]any, 0, 2*len(snap)+2)
			for _, k := range a.metrics.Keys() {
				args = append(args, k, snap[k])
			}
			args = append(args, "pool.in_use", a.pool.Stats().InUse)
			a.log.Info("stats", args...)
		}
	}
}
