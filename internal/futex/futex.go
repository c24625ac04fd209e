// Package futex implements the fast userspace-mutex primitive of §4.H: a
// hashed waiter table keyed by word address, plus Semaphore and Mutex built
// on top of it. It mirrors the Linux futex(2) wait/wake contract (compare
// word against an expected value, then block only if they still match), the
// pattern every higher-level blocking primitive in this kernel is built
// from.
package futex

import (
	"hash/fnv"
	"sync/atomic"
	"unsafe"

	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
	"github.com/nyxkernel/nyx/internal/sched"
)

const (
	bucketCount    = 256
	maxWaitersHint = 4096 // soft cap; enforced per-table, not per-bucket
)

// WakeReason is the value Wait returns to explain why a blocked call
// resumed, per §4.H: {WAKE, DESTROYED, CANCEL}.
type WakeReason int

const (
	ReasonWake WakeReason = iota
	ReasonDestroyed
	ReasonCancel
)

type waitEntry struct {
	addr   *int32
	thread *sched.Thread
	reason WakeReason // set by the waker before the thread resumes
}

type bucket struct {
	lock    ksync.Spinlock
	waiters []*waitEntry
}

// Table is the global futex waiter table. One Table is shared by every
// Semaphore and Mutex in the kernel image.
type Table struct {
	buckets  [bucketCount]bucket
	sched    *sched.Scheduler
	total    int32 // atomic count of currently-queued waiters, across all buckets
}

// NewTable builds an empty futex table bound to a scheduler, used to park and
// wake the calling threads.
func NewTable(s *sched.Scheduler) *Table {
	return &Table{sched: s}
}

func hashAddr(addr *int32) uint32 {
	h := fnv.New32a()
	var b [8]byte
	p := uintptr(unsafe.Pointer(addr))
	for i := 0; i < 8; i++ {
		b[i] = byte(p >> (8 * i))
	}
	h.Write(b[:])
	return h.Sum32()
}

// Wait blocks self until woken, but only if *addr still equals expected at
// the moment of enqueue — the classic futex race-free check. Returns
// NOT_BLOCKED immediately if the value had already changed. Once actually
// blocked, it reports why it resumed: WakeReason alongside a CANCELED or
// DESTROYED error for those two reasons (§4.H); callers must retry or
// propagate, per §5's cancellation contract. A plain wake (reason WAKE)
// returns a nil error so existing compare-and-retry loops need no change.
func (t *Table) Wait(addr *int32, expected int32, self *sched.Thread) (WakeReason, error) {
	idx := hashAddr(addr) % bucketCount
	b := &t.buckets[idx]

	b.lock.Lock()
	if atomic.LoadInt32(addr) != expected {
		b.lock.Unlock()
		return ReasonWake, kernelerr.New("futex", kernelerr.NotBlocked)
	}
	if atomic.LoadInt32(&t.total) >= maxWaitersHint {
		b.lock.Unlock()
		return ReasonWake, kernelerr.New("futex", kernelerr.NoMoreMemory)
	}
	entry := &waitEntry{addr: addr, thread: self, reason: ReasonWake}
	b.waiters = append(b.waiters, entry)
	atomic.AddInt32(&t.total, 1)
	b.lock.Unlock()

	self.Block(sched.Waiting)

	switch entry.reason {
	case ReasonCancel:
		return ReasonCancel, kernelerr.New("futex", kernelerr.Canceled)
	case ReasonDestroyed:
		return ReasonDestroyed, kernelerr.New("futex", kernelerr.Destroyed)
	default:
		return ReasonWake, nil
	}
}

// Wake wakes up to count threads blocked on addr, in FIFO enqueue order,
// returning how many were actually woken. NO_SUCH_ID if none were waiting
// on addr (§4.H).
func (t *Table) Wake(addr *int32, count int) (int, error) {
	n := t.wake(addr, count, ReasonWake)
	if n == 0 {
		return 0, kernelerr.New("futex", kernelerr.NoSuchID)
	}
	return n, nil
}

// Cancel wakes self's pending wait, if any, with reason CANCEL — the
// mechanism internal/ksignal's signalRaise uses to interrupt a WAITING
// thread (§4.I). Reports whether a wait was actually found and canceled.
func (t *Table) Cancel(self *sched.Thread) bool {
	for i := range t.buckets {
		b := &t.buckets[i]
		b.lock.Lock()
		for idx, w := range b.waiters {
			if w.thread != self {
				continue
			}
			w.reason = ReasonCancel
			b.waiters = append(b.waiters[:idx], b.waiters[idx+1:]...)
			atomic.AddInt32(&t.total, -1)
			b.lock.Unlock()
			t.sched.Wake(w.thread)
			return true
		}
		b.lock.Unlock()
	}
	return false
}

// destroyWaiters wakes every thread waiting on addr with reason DESTROYED,
// for Semaphore.Destroy/Mutex.Destroy's "wake everyone" step (§4.H).
func (t *Table) destroyWaiters(addr *int32) int {
	idx := hashAddr(addr) % bucketCount
	b := &t.buckets[idx]

	b.lock.Lock()
	var woken []*waitEntry
	remaining := b.waiters[:0]
	for _, w := range b.waiters {
		if w.addr == addr {
			w.reason = ReasonDestroyed
			woken = append(woken, w)
			continue
		}
		remaining = append(remaining, w)
	}
	b.waiters = remaining
	atomic.AddInt32(&t.total, -int32(len(woken)))
	b.lock.Unlock()

	for _, w := range woken {
		t.sched.Wake(w.thread)
	}
	return len(woken)
}

func (t *Table) wake(addr *int32, count int, reason WakeReason) int {
	idx := hashAddr(addr) % bucketCount
	b := &t.buckets[idx]

	b.lock.Lock()
	woken := make([]*waitEntry, 0, count)
	remaining := b.waiters[:0]
	for _, w := range b.waiters {
		if w.addr == addr && len(woken) < count {
			w.reason = reason
			woken = append(woken, w)
			continue
		}
		remaining = append(remaining, w)
	}
	b.waiters = remaining
	atomic.AddInt32(&t.total, -int32(len(woken)))
	b.lock.Unlock()

	for _, w := range woken {
		t.sched.Wake(w.thread)
	}
	return len(woken)
}
