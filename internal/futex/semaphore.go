package futex

import (
	"sync/atomic"

	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/sched"
)

// Semaphore is a counted semaphore built on a futex word, capped at max when
// max > 0 (a binary semaphore is simply NewSemaphore(table, 1, 1)).
type Semaphore struct {
	value int32
	max   int32
	alive int32 // atomic; 0 once Destroy has run
	table *Table
}

// NewSemaphore builds a semaphore starting at initial, with Release refusing
// to push the count above max (max <= 0 means uncapped).
func NewSemaphore(table *Table, initial, max int32) *Semaphore {
	return &Semaphore{value: initial, max: max, table: table, alive: 1}
}

// Acquire (P) blocks self until the count is positive, then decrements it.
// Returns CANCELED or DESTROYED if the wait was interrupted rather than
// satisfied normally (§4.H, §5) — the caller must retry or propagate.
func (s *Semaphore) Acquire(self *sched.Thread) error {
	for {
		if atomic.LoadInt32(&s.alive) == 0 {
			return kernelerr.New("futex", kernelerr.IncorrectValue)
		}
		v := atomic.LoadInt32(&s.value)
		if v > 0 {
			if atomic.CompareAndSwapInt32(&s.value, v, v-1) {
				return nil
			}
			continue
		}
		_, err := s.table.Wait(&s.value, v, self)
		if err == nil {
			continue // woken normally; re-check the value
		}
		if code, ok := kernelerr.CodeOf(err); ok && code == kernelerr.NotBlocked {
			continue // value changed underneath us before we blocked; re-check
		}
		return err // CANCELED or DESTROYED: propagate to the caller
	}
}

// Release (V) increments the count and wakes one waiter, failing with
// OUT_OF_BOUND if that would exceed a capped maximum.
func (s *Semaphore) Release() error {
	if atomic.LoadInt32(&s.alive) == 0 {
		return kernelerr.New("futex", kernelerr.IncorrectValue)
	}
	for {
		v := atomic.LoadInt32(&s.value)
		if s.max > 0 && v >= s.max {
			return kernelerr.New("futex", kernelerr.OutOfBound)
		}
		if atomic.CompareAndSwapInt32(&s.value, v, v+1) {
			s.table.wake(&s.value, 1, ReasonWake)
			return nil
		}
	}
}

// Value returns the current count, for diagnostics.
func (s *Semaphore) Value() int32 { return atomic.LoadInt32(&s.value) }

// Destroy implements §4.H's destroy contract: the level is set to max (left
// alone when uncapped), every waiter wakes with reason DESTROYED, and the
// semaphore is marked not-alive — every subsequent Acquire/Release then
// fails with INCORRECT_VALUE. Safe to call more than once.
func (s *Semaphore) Destroy() {
	if !atomic.CompareAndSwapInt32(&s.alive, 1, 0) {
		return
	}
	if s.max > 0 {
		atomic.StoreInt32(&s.value, s.max)
	}
	s.table.destroyWaiters(&s.value)
}
