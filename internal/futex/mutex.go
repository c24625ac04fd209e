package futex

import (
	"sync/atomic"

	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
	"github.com/nyxkernel/nyx/internal/sched"
)

const (
	unlocked     int32 = 0
	lockedNoWait int32 = 1
	lockedWaiter int32 = 2
)

// MutexFlags selects the optional behaviors §4.H calls out.
type MutexFlags uint8

const (
	Recursive MutexFlags = 1 << iota
	PriorityElevation
)

// Mutex is the owner-tracked mutex of §4.H, layered on the same futex word
// discipline as Semaphore (state 0/1/2 mirrors glibc's fast userspace
// mutex). PriorityElevation implements simple priority inheritance: while a
// higher-priority thread waits on an owned mutex, the owner is boosted to
// match until it releases.
type Mutex struct {
	state int32
	alive int32 // atomic; 0 once Destroy has run
	table *Table
	flags MutexFlags

	meta         ksync.Spinlock // guards the fields below
	owner        *sched.Thread
	depth        int32
	origPriority int32
	boosted      bool
}

// NewMutex builds an unlocked mutex with the given behavior flags.
func NewMutex(table *Table, flags MutexFlags) *Mutex {
	return &Mutex{table: table, flags: flags, alive: 1}
}

// Lock acquires the mutex, blocking self if it is already held. A recursive
// mutex re-entered by its own owner just bumps the recursion depth. Returns
// CANCELED or DESTROYED if a blocked wait was interrupted rather than
// satisfied normally (§4.H, §5) — the caller must retry or propagate.
func (m *Mutex) Lock(self *sched.Thread) error {
	if atomic.LoadInt32(&m.alive) == 0 {
		return kernelerr.New("futex", kernelerr.IncorrectValue)
	}
	m.meta.Lock()
	if m.flags&Recursive != 0 && m.owner == self {
		m.depth++
		m.meta.Unlock()
		return nil
	}
	m.meta.Unlock()

	for {
		if atomic.LoadInt32(&m.alive) == 0 {
			return kernelerr.New("futex", kernelerr.IncorrectValue)
		}
		if atomic.CompareAndSwapInt32(&m.state, unlocked, lockedNoWait) {
			m.meta.Lock()
			m.owner = self
			m.depth = 1
			m.meta.Unlock()
			return nil
		}

		if m.flags&PriorityElevation != 0 {
			m.elevateOwner(self)
		}

		atomic.StoreInt32(&m.state, lockedWaiter)
		_, err := m.table.Wait(&m.state, lockedWaiter, self)
		if err == nil {
			continue
		}
		if code, ok := kernelerr.CodeOf(err); ok && code == kernelerr.NotBlocked {
			continue
		}
		return err // CANCELED or DESTROYED: propagate to the caller
	}
}

func (m *Mutex) elevateOwner(waiter *sched.Thread) {
	m.meta.Lock()
	defer m.meta.Unlock()
	owner := m.owner
	if owner == nil || owner == waiter {
		return
	}
	if waiter.Priority > owner.Priority {
		if !m.boosted {
			m.origPriority = owner.Priority
			m.boosted = true
		}
		owner.Priority = waiter.Priority
	}
}

// Unlock releases the mutex. Unlock by a non-owner fails with
// UNAUTHORIZED_ACTION.
func (m *Mutex) Unlock(self *sched.Thread) error {
	if atomic.LoadInt32(&m.alive) == 0 {
		return kernelerr.New("futex", kernelerr.IncorrectValue)
	}
	m.meta.Lock()
	if m.owner != self {
		m.meta.Unlock()
		return kernelerr.New("futex", kernelerr.UnauthorizedAction)
	}
	if m.flags&Recursive != 0 {
		m.depth--
		if m.depth > 0 {
			m.meta.Unlock()
			return nil
		}
	}
	if m.boosted {
		self.Priority = m.origPriority
		m.boosted = false
	}
	m.owner = nil
	m.meta.Unlock()

	old := atomic.SwapInt32(&m.state, unlocked)
	if old == lockedWaiter {
		m.table.wake(&m.state, 1, ReasonWake)
	}
	return nil
}

// Owner returns the current owner, or nil if unlocked.
func (m *Mutex) Owner() *sched.Thread {
	m.meta.Lock()
	defer m.meta.Unlock()
	return m.owner
}

// Destroy marks the mutex not-alive: any owner is cleared, every waiter
// wakes with reason DESTROYED, and subsequent Lock/Unlock calls fail with
// INCORRECT_VALUE (§4.H). Safe to call more than once.
func (m *Mutex) Destroy() {
	if !atomic.CompareAndSwapInt32(&m.alive, 1, 0) {
		return
	}
	atomic.StoreInt32(&m.state, unlocked)
	m.meta.Lock()
	m.owner = nil
	m.meta.Unlock()
	m.table.destroyWaiters(&m.state)
}
