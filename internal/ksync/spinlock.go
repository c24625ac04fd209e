// Package ksync implements the lock layers of §4.C on top of the local
// critical section that lives in internal/cpu (cpu.EnterCriticalLocal): the
// portable Spinlock, and the KernelSpinlock that layers a critical section underneath
// a spinlock so acquiring it is safe from both thread and interrupt context.
package ksync

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Spinlock is a portable atomic test-and-set lock with exponential backoff.
// It must never be held across a voluntary suspension point (§3).
type Spinlock struct {
	flag int32
}

// Lock spins until the lock is acquired.
func (s *Spinlock) Lock() {
	backoff := time.Microsecond
	for !atomic.CompareAndSwapInt32(&s.flag, 0, 1) {
		runtime.Gosched()
		time.Sleep(backoff)
		if backoff < time.Millisecond {
			backoff *= 2
		}
	}
}

// TryLock attempts to acquire the lock without spinning.
func (s *Spinlock) TryLock() bool {
	return atomic.CompareAndSwapInt32(&s.flag, 0, 1)
}

// Unlock releases the lock. Unlocking an unheld lock is a caller bug; we do
// not guard against it, matching the teacher's trust-the-caller style for
// hot paths.
func (s *Spinlock) Unlock() {
	atomic.StoreInt32(&s.flag, 0)
}
