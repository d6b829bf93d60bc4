// File: core/concurrency/waiter.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Waiter is the record a thread leaves in a wait queue while it is suspended.
// It is heap allocated and carries its own state, so a record that outlives its
// suspension (because something else resumed the thread) is recognisable as a
// tombstone instead of being mistaken for a live waiter.

package concurrency

import (
	"context"

	"github.com/momentics/hioload-ut/api"
)

type waiterState uint8

const (
	waiterParked waiterState = iota
	waiterWoken
	waiterRetired
)

// Waiter identifies one suspended thread. Only the first Wake takes effect.
type Waiter struct {
	t     *Thread
	state waiterState
}

// Thread returns the waiting thread.
func (w *Waiter) Thread() *Thread { return w.t }

// Live reports whether the record still represents a suspended thread.
func (w *Waiter) Live() bool { return w.state == waiterParked }

// Wake resumes the waiting thread. Later calls, or calls on a retired record,
// return api.ErrStaleWaiter. An error from the scheduler (thread gone,
// scheduler closed) is passed through; the record is spent either way.
func (w *Waiter) Wake() error {
	if w.state != waiterParked {
		return api.ErrStaleWaiter
	}
	w.state = waiterWoken
	return w.t.Wake()
}

// Retire turns a record that was never woken into a tombstone.
func (w *Waiter) Retire() {
	if w.state == waiterParked {
		w.state = waiterRetired
	}
}

// Park suspends the waiter's thread and retires the record once the thread
// runs again, whoever resumed it.
func (w *Waiter) Park() error {
	err := w.t.Suspend()
	w.Retire()
	return err
}

// ParkContext is Park that also ends when ctx is done. The wake is posted to
// the scheduler from the context's goroutine and delivered by the driver on
// its next pass, where it competes with I/O wakes under single-wake-wins.
// It returns ctx.Err() if the context finished by the time the thread runs.
func (w *Waiter) ParkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		w.Retire()
		return err
	}
	stop := context.AfterFunc(ctx, func() { w.t.s.postCancel(w) })
	err := w.Park()
	stop()
	if err != nil {
		return err
	}
	return ctx.Err()
}
