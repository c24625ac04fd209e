// Package deferred implements the bottom-half/deferred-interrupt executor of
// §4.J: a global FIFO of (handler, argument) pairs fed from ISR context via
// Defer (interruptDeferIsr), drained strictly in enqueue order by a dedicated
// thread running at the highest priority band.
package deferred

import (
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
	"github.com/nyxkernel/nyx/internal/sched"
)

// Handler is one deferred work item's entry point.
type Handler func(arg any)

type item struct {
	handler Handler
	arg     any
}

// Queue is the global deferred-work FIFO.
type Queue struct {
	lock  ksync.Spinlock
	items []item
	sched *sched.Scheduler
	drain *sched.Thread
}

// NewQueue builds an empty queue bound to s; call Start to spawn the drain
// thread once the scheduler is running.
func NewQueue(s *sched.Scheduler) *Queue { return &Queue{sched: s} }

// HighestPriorityBand is the priority the drain thread runs at, chosen to sit
// above ordinary kernel work so a core with the drain thread ready always
// picks it ahead of that work at its next scheduling point, per §4.J.
const HighestPriorityBand = 1 << 20

// Start spawns the dedicated drain thread on affinity (or any core when
// affinity is -1).
func (q *Queue) Start(affinity int) error {
	th, err := q.sched.CreateThread(q.drainLoop, HighestPriorityBand, affinity)
	if err != nil {
		return err
	}
	q.drain = th
	return nil
}

func (q *Queue) drainLoop(self *sched.Thread, yield func()) {
	for {
		it, ok := q.pop()
		if !ok {
			self.Block(sched.Waiting)
			continue
		}
		it.handler(it.arg)
	}
}

func (q *Queue) pop() (item, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

// Defer enqueues (handler, arg) for deferred execution — this is
// interruptDeferIsr, the only API ISR context should call into this
// package through. Ordering is FIFO: handlers run in exactly the order
// Defer was called, even when called from multiple interrupt lines, per
// §8 scenario 4.
func (q *Queue) Defer(h Handler, arg any) error {
	if h == nil {
		return kernelerr.New("deferred", kernelerr.NullPointer)
	}
	q.lock.Lock()
	q.items = append(q.items, item{handler: h, arg: arg})
	q.lock.Unlock()
	if q.drain != nil {
		q.sched.Wake(q.drain)
	}
	return nil
}

// Pending reports the current queue depth, for diagnostics.
func (q *Queue) Pending() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.items)
}
