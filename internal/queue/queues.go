// File: internal/queue/queues.go
// Package queue provides the three FIFO queues a socket facade is built on.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Each queue has its own element type so that a descriptor can never end up in
// the waiter queue or a packet in the descriptor queue. All three are backed by
// eapache/queue ring buffers and are not safe for concurrent use; callers run on
// the single scheduler thread.

package queue

import (
	"github.com/eapache/queue"
	"github.com/momentics/hioload-ut/api"
	"github.com/momentics/hioload-ut/core/concurrency"
)

// DescriptorQueue holds raw inbound descriptors of a listener.
type DescriptorQueue struct {
	q *queue.Queue
}

// NewDescriptorQueue returns an empty queue.
func NewDescriptorQueue() *DescriptorQueue {
	return &DescriptorQueue{q: queue.New()}
}

// Push appends fd.
func (d *DescriptorQueue) Push(fd int) { d.q.Add(fd) }

// Pop removes the oldest descriptor.
func (d *DescriptorQueue) Pop() (int, bool) {
	if d.q.Length() == 0 {
		return -1, false
	}
	return d.q.Remove().(int), true
}

// Len returns the number of queued descriptors.
func (d *DescriptorQueue) Len() int { return d.q.Length() }

// Drain removes every descriptor and hands it to fn.
func (d *DescriptorQueue) Drain(fn func(fd int)) {
	for d.q.Length() > 0 {
		fn(d.q.Remove().(int))
	}
}

// WaiterQueue holds waiter records of suspended threads.
type WaiterQueue struct {
	q *queue.Queue
}

// NewWaiterQueue returns an empty queue.
func NewWaiterQueue() *WaiterQueue {
	return &WaiterQueue{q: queue.New()}
}

// Push drops tombstones, keeping the order of live records, and appends w.
func (wq *WaiterQueue) Push(w *concurrency.Waiter) {
	wq.prune()
	wq.q.Add(w)
}

// Len returns the number of records, tombstones included.
func (wq *WaiterQueue) Len() int { return wq.q.Length() }

// Live returns the number of records whose thread is still parked.
func (wq *WaiterQueue) Live() int {
	n := 0
	for i := 0; i < wq.q.Length(); i++ {
		if wq.q.Get(i).(*concurrency.Waiter).Live() {
			n++
		}
	}
	return n
}

func (wq *WaiterQueue) prune() {
	for n := wq.q.Length(); n > 0; n-- {
		w := wq.q.Remove().(*concurrency.Waiter)
		if w.Live() {
			wq.q.Add(w)
		}
	}
}

// WakeOne pops records until one is live and wakes it. Tombstones are
// dropped on the way. It reports whether a thread was woken.
func (wq *WaiterQueue) WakeOne() bool {
	for wq.q.Length() > 0 {
		w := wq.q.Remove().(*concurrency.Waiter)
		if !w.Live() {
			continue
		}
		if err := w.Wake(); err != nil {
			continue
		}
		return true
	}
	return false
}

// WakeAll pops every record and wakes the live ones. It returns the number
// of threads woken.
func (wq *WaiterQueue) WakeAll() int {
	n := 0
	for wq.q.Length() > 0 {
		w := wq.q.Remove().(*concurrency.Waiter)
		if !w.Live() {
			continue
		}
		if err := w.Wake(); err == nil {
			n++
		}
	}
	return n
}

// PacketQueue buffers inbound packets of a connection.
type PacketQueue struct {
	q *queue.Queue
}

// NewPacketQueue returns an empty queue.
func NewPacketQueue() *PacketQueue {
	return &PacketQueue{q: queue.New()}
}

// Push appends p; the queue owns it until Pop.
func (pq *PacketQueue) Push(p api.Packet) { pq.q.Add(p) }

// Pop removes the oldest packet.
func (pq *PacketQueue) Pop() (api.Packet, bool) {
	if pq.q.Length() == 0 {
		return nil, false
	}
	return pq.q.Remove().(api.Packet), true
}

// Len returns the number of buffered packets.
func (pq *PacketQueue) Len() int { return pq.q.Length() }

// Release drops and releases every buffered packet.
func (pq *PacketQueue) Release() {
	for pq.q.Length() > 0 {
		pq.q.Remove().(api.Packet).Release()
	}
}
