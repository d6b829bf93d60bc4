// File: core/concurrency/scheduler.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Scheduler runs cooperative user threads on a single logical thread of
// control. Every user thread is a goroutine, but only the holder of the baton
// executes: the driver hands the baton to one thread at a time and the thread
// hands it back when it suspends or finishes. State shared between threads and
// reactor callbacks therefore needs no locks.

package concurrency

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/eapache/queue"
	"github.com/momentics/hioload-ut/api"
)

// Config configures a Scheduler.
type Config struct {
	// Context is the parent of every thread context.
	Context context.Context
	Logger  *slog.Logger
}

// DefaultConfig returns default configuration values.
func DefaultConfig() *Config {
	return &Config{
		Context: context.Background(),
		Logger:  slog.Default(),
	}
}

// Scheduler owns the ready queue and the set of live threads.
type Scheduler struct {
	base    context.Context
	log     *slog.Logger
	nextID  ThreadID
	threads map[ThreadID]*Thread
	ready   *queue.Queue // *Thread, FIFO
	current *Thread
	baton   chan struct{}
	closed  bool

	// Waiters whose context finished, posted from other goroutines.
	mu        sync.Mutex
	cancelled []*Waiter
	notify    func()
}

// NewScheduler creates a scheduler. A nil cfg selects DefaultConfig.
func NewScheduler(cfg *Config) *Scheduler {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	base := cfg.Context
	if base == nil {
		base = context.Background()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		base:    base,
		log:     logger.With("component", "scheduler"),
		nextID:  1,
		threads: make(map[ThreadID]*Thread),
		ready:   queue.New(),
		baton:   make(chan struct{}),
	}
}

// SetNotify installs fn to be called, from any goroutine, whenever a waiter is
// posted for cancellation. The engine uses it to interrupt a blocking poll.
func (s *Scheduler) SetNotify(fn func()) {
	s.mu.Lock()
	s.notify = fn
	s.mu.Unlock()
}

// postCancel queues w to be woken by the driver. Safe for concurrent use.
func (s *Scheduler) postCancel(w *Waiter) {
	s.mu.Lock()
	s.cancelled = append(s.cancelled, w)
	notify := s.notify
	s.mu.Unlock()
	if notify != nil {
		notify()
	}
}

// drainCancelled wakes every posted waiter still parked. A waiter that I/O
// already woke loses nothing: single-wake-wins turns the late wake into a
// no-op.
func (s *Scheduler) drainCancelled() {
	s.mu.Lock()
	ws := s.cancelled
	s.cancelled = nil
	s.mu.Unlock()
	for _, w := range ws {
		_ = w.Wake()
	}
}

// Spawn registers fn as a new user thread and makes it runnable. The thread
// starts on the next scheduling pass.
func (s *Scheduler) Spawn(fn func(ctx context.Context)) ThreadID {
	return s.SpawnContext(s.base, fn)
}

// SpawnContext is Spawn with an explicit parent context.
func (s *Scheduler) SpawnContext(parent context.Context, fn func(ctx context.Context)) ThreadID {
	if parent == nil {
		parent = s.base
	}
	t := &Thread{
		id:     s.nextID,
		s:      s,
		fn:     fn,
		resume: make(chan error),
		status: statusReady,
	}
	s.nextID++
	t.ctx = context.WithValue(parent, threadKey{}, t)
	s.threads[t.id] = t
	s.ready.Add(t)
	return t.id
}

// Current returns the thread holding the baton, nil while the driver runs.
func (s *Scheduler) Current() *Thread {
	return s.current
}

// Runnable returns the number of threads waiting for their turn.
func (s *Scheduler) Runnable() int {
	return s.ready.Length()
}

// Live returns the number of threads that have not finished.
func (s *Scheduler) Live() int {
	return len(s.threads)
}

// Schedule first wakes waiters whose context finished, then runs every thread
// that is runnable at that point until it suspends or finishes. Threads woken
// during the pass run on the next one. It returns the number of threads that
// ran.
func (s *Scheduler) Schedule() int {
	if s.current != nil {
		// Called from inside a user thread; running another thread here would
		// break the single-baton rule.
		return 0
	}
	s.drainCancelled()
	n := s.ready.Length()
	ran := 0
	for i := 0; i < n; i++ {
		t := s.ready.Remove().(*Thread)
		if t.status != statusReady {
			continue
		}
		s.run(t, nil)
		ran++
	}
	return ran
}

// Wake makes a suspended thread runnable. Waking a runnable thread is a no-op;
// waking the running thread latches a token so that its next Suspend returns
// immediately.
func (s *Scheduler) Wake(id ThreadID) error {
	if s.closed {
		return api.ErrSchedulerClosed
	}
	t, ok := s.threads[id]
	if !ok {
		return api.ErrThreadGone
	}
	switch t.status {
	case statusWaiting:
		t.status = statusReady
		s.ready.Add(t)
	case statusRunning:
		t.wakeToken = true
	}
	return nil
}

// Close resumes every remaining thread with ErrSchedulerClosed from Suspend
// and runs each to completion. It must be called by the driver, not from a
// user thread. Threads that keep calling Suspend after it failed make Close
// spin.
func (s *Scheduler) Close() error {
	if s.current != nil {
		return fmt.Errorf("close scheduler from thread %d: %w", s.current.id, api.ErrNotSupported)
	}
	if s.closed {
		return nil
	}
	s.closed = true
	for len(s.threads) > 0 {
		ids := make([]ThreadID, 0, len(s.threads))
		for id := range s.threads {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		for _, id := range ids {
			t, ok := s.threads[id]
			if !ok || t.status == statusDone {
				continue
			}
			s.run(t, api.ErrSchedulerClosed)
		}
	}
	for s.ready.Length() > 0 {
		s.ready.Remove()
	}
	s.mu.Lock()
	s.cancelled = nil
	s.mu.Unlock()
	s.log.Debug("scheduler closed")
	return nil
}

// run hands the baton to t and waits until t gives it back.
func (s *Scheduler) run(t *Thread, resumeErr error) {
	s.current = t
	t.status = statusRunning
	if !t.started {
		t.started = true
		go t.main()
	} else {
		t.resume <- resumeErr
	}
	<-s.baton
	s.current = nil
}

func (s *Scheduler) finish(t *Thread) {
	t.status = statusDone
	delete(s.threads, t.id)
}
