package queue_test

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/momentics/hioload-ut/core/concurrency"
	"github.com/momentics/hioload-ut/internal/queue"
	"github.com/momentics/hioload-ut/pool"
)

func TestDescriptorQueueFIFO(t *testing.T) {
	q := queue.NewDescriptorQueue()
	if _, ok := q.Pop(); ok {
		t.Fatal("Pop on empty queue should fail")
	}
	for fd := 3; fd < 6; fd++ {
		q.Push(fd)
	}
	fd, ok := q.Pop()
	if !ok || fd != 3 {
		t.Fatalf("Expected fd 3, got %d (%v)", fd, ok)
	}
	var rest []int
	q.Drain(func(fd int) { rest = append(rest, fd) })
	if diff := cmp.Diff([]int{4, 5}, rest); diff != "" {
		t.Errorf("drain mismatch (-want +got):\n%s", diff)
	}
	if q.Len() != 0 {
		t.Errorf("Expected empty queue, got %d", q.Len())
	}
}

func TestPacketQueueRelease(t *testing.T) {
	pp := pool.NewPacketPool()
	q := queue.NewPacketQueue()
	q.Push(pp.FromString("a"))
	q.Push(pp.FromString("b"))
	p, ok := q.Pop()
	if !ok || string(p.Bytes()) != "a" {
		t.Fatalf("Expected packet a, got %v", p)
	}
	p.Release()
	q.Release()
	if st := pp.Stats(); st.InUse != 0 {
		t.Errorf("Expected all packets released, %d in use", st.InUse)
	}
}

// parkThreads spawns n threads that each park one waiter on wq and record
// their index when resumed.
func parkThreads(s *concurrency.Scheduler, wq *queue.WaiterQueue, n int, order *[]int) []*concurrency.Waiter {
	ws := make([]*concurrency.Waiter, n)
	for i := 0; i < n; i++ {
		i := i
		s.Spawn(func(ctx context.Context) {
			th, _ := concurrency.CurrentThread(ctx)
			w := th.NewWaiter()
			ws[i] = w
			wq.Push(w)
			_ = w.Park()
			*order = append(*order, i)
		})
	}
	s.Schedule()
	return ws
}

func TestWaiterQueueWakeOneFIFO(t *testing.T) {
	s := concurrency.NewScheduler(nil)
	wq := queue.NewWaiterQueue()
	var order []int
	parkThreads(s, wq, 3, &order)

	for i := 0; i < 3; i++ {
		if !wq.WakeOne() {
			t.Fatalf("WakeOne %d found no waiter", i)
		}
		s.Schedule()
	}
	if wq.WakeOne() {
		t.Error("WakeOne on empty queue should report false")
	}
	if diff := cmp.Diff([]int{0, 1, 2}, order); diff != "" {
		t.Errorf("wake order mismatch (-want +got):\n%s", diff)
	}
}

func TestWaiterQueueSkipsTombstones(t *testing.T) {
	s := concurrency.NewScheduler(nil)
	wq := queue.NewWaiterQueue()
	var order []int
	ws := parkThreads(s, wq, 2, &order)

	// Resume thread 0 behind the queue's back; its record becomes a tombstone.
	if err := ws[0].Thread().Wake(); err != nil {
		t.Fatal(err)
	}
	s.Schedule()

	// The next arrival must reach thread 1, not the stale record.
	if !wq.WakeOne() {
		t.Fatal("WakeOne should skip the tombstone and wake thread 1")
	}
	s.Schedule()
	if diff := cmp.Diff([]int{0, 1}, order); diff != "" {
		t.Errorf("wake order mismatch (-want +got):\n%s", diff)
	}
	if wq.Len() != 0 {
		t.Errorf("tombstone should have been dropped, %d left", wq.Len())
	}
}

func TestWaiterQueueWakeAll(t *testing.T) {
	s := concurrency.NewScheduler(nil)
	wq := queue.NewWaiterQueue()
	var order []int
	parkThreads(s, wq, 4, &order)
	if n := wq.WakeAll(); n != 4 {
		t.Fatalf("Expected 4 woken, got %d", n)
	}
	s.Schedule()
	if s.Live() != 0 {
		t.Errorf("Expected no thread left suspended, got %d", s.Live())
	}
}

func TestWaiterQueuePushDropsTombstones(t *testing.T) {
	s := concurrency.NewScheduler(nil)
	wq := queue.NewWaiterQueue()
	var order []int
	ws := parkThreads(s, wq, 3, &order)

	// Thread 1 resumes from outside and leaves its record behind.
	if err := ws[1].Thread().Wake(); err != nil {
		t.Fatal(err)
	}
	s.Schedule()
	if wq.Len() != 3 || wq.Live() != 2 {
		t.Fatalf("Expected 3 records with 2 live, got %d/%d", wq.Len(), wq.Live())
	}

	parkThreads(s, wq, 1, &order)
	if wq.Len() != 3 || wq.Live() != 3 {
		t.Errorf("Expected the tombstone dropped on push, got %d records, %d live", wq.Len(), wq.Live())
	}
	for wq.WakeOne() {
		s.Schedule()
	}
	if diff := cmp.Diff([]int{1, 0, 2, 0}, order); diff != "" {
		t.Errorf("wake order mismatch (-want +got):\n%s", diff)
	}
}
