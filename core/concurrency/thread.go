// File: core/concurrency/thread.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package concurrency

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/momentics/hioload-ut/api"
)

// ThreadID identifies a spawned user thread.
type ThreadID uint64

type threadStatus uint8

const (
	statusReady threadStatus = iota
	statusRunning
	statusWaiting
	statusDone
)

func (st threadStatus) String() string {
	switch st {
	case statusReady:
		return "ready"
	case statusRunning:
		return "running"
	case statusWaiting:
		return "waiting"
	case statusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Thread is a cooperatively scheduled user thread.
type Thread struct {
	id        ThreadID
	s         *Scheduler
	ctx       context.Context
	fn        func(ctx context.Context)
	resume    chan error
	status    threadStatus
	started   bool
	wakeToken bool
}

type threadKey struct{}

// ThreadFrom returns the user thread a context was handed to.
func ThreadFrom(ctx context.Context) (*Thread, bool) {
	if ctx == nil {
		return nil, false
	}
	t, ok := ctx.Value(threadKey{}).(*Thread)
	return t, ok
}

// CurrentThread returns the thread owning ctx, provided that thread is the one
// executing right now. Any other case yields api.ErrNotInThread.
func CurrentThread(ctx context.Context) (*Thread, error) {
	t, ok := ThreadFrom(ctx)
	if !ok || t.s.current != t {
		return nil, api.ErrNotInThread
	}
	return t, nil
}

// ID returns the thread identifier.
func (t *Thread) ID() ThreadID { return t.id }

// Scheduler returns the owning scheduler.
func (t *Thread) Scheduler() *Scheduler { return t.s }

// Suspend gives the baton back to the driver until the thread is woken.
// A latched wake token makes it return at once. After Scheduler.Close it
// returns api.ErrSchedulerClosed without suspending.
func (t *Thread) Suspend() error {
	if t.s.current != t {
		return api.ErrNotInThread
	}
	if t.s.closed {
		return api.ErrSchedulerClosed
	}
	if t.wakeToken {
		t.wakeToken = false
		return nil
	}
	t.status = statusWaiting
	t.s.baton <- struct{}{}
	return <-t.resume
}

// Wake makes the thread runnable again.
func (t *Thread) Wake() error {
	return t.s.Wake(t.id)
}

// NewWaiter allocates a waiter record for the thread.
func (t *Thread) NewWaiter() *Waiter {
	return &Waiter{t: t}
}

func (t *Thread) main() {
	defer func() {
		if r := recover(); r != nil {
			t.s.log.Error("user thread panicked",
				"thread", t.id,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
		t.s.finish(t)
		t.s.baton <- struct{}{}
	}()
	t.fn(t.ctx)
}
