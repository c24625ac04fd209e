package futex

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/sched"
)

func newTestScheduler(t *testing.T) *sched.Scheduler {
	t.Helper()
	s := sched.NewScheduler(1)
	s.Bootstrap(0)
	go s.RunCore(0)
	return s
}

func TestSemaphoreProducerConsumer(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)
	sem := NewSemaphore(table, 0, 0)

	var produced, consumed int32
	const n = 50

	producer, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		for i := 0; i < n; i++ {
			atomic.AddInt32(&produced, 1)
			if err := sem.Release(); err != nil {
				t.Errorf("Release: %v", err)
			}
		}
	}, 0, 0)

	consumer, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		for i := 0; i < n; i++ {
			if err := sem.Acquire(self); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			atomic.AddInt32(&consumed, 1)
		}
	}, 0, 0)

	s.JoinThread(producer)
	s.JoinThread(consumer)

	if atomic.LoadInt32(&consumed) != n {
		t.Fatalf("consumed = %d, want %d", consumed, n)
	}
	if atomic.LoadInt32(&produced) != n {
		t.Fatalf("produced = %d, want %d", produced, n)
	}
}

func TestMutexMutualExclusion(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)
	mu := NewMutex(table, 0)

	counter := 0
	const n = 200
	done := make(chan *sched.Thread, 2)

	spawn := func() {
		th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
			for i := 0; i < n; i++ {
				if err := mu.Lock(self); err != nil {
					t.Errorf("Lock: %v", err)
					return
				}
				counter++
				if err := mu.Unlock(self); err != nil {
					t.Errorf("Unlock: %v", err)
					return
				}
			}
		}, 0, 0)
		done <- th
	}
	spawn()
	spawn()

	a := <-done
	b := <-done
	s.JoinThread(a)
	s.JoinThread(b)

	if counter != 2*n {
		t.Fatalf("counter = %d, want %d", counter, 2*n)
	}
}

func TestRecursiveMutexReentry(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)
	mu := NewMutex(table, Recursive)

	ok := make(chan bool, 1)
	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		if err := mu.Lock(self); err != nil {
			ok <- false
			return
		}
		if err := mu.Lock(self); err != nil { // re-entrant
			ok <- false
			return
		}
		mu.Unlock(self)
		err := mu.Unlock(self)
		ok <- err == nil && mu.Owner() == nil
	}, 0, 0)
	s.JoinThread(th)

	select {
	case v := <-ok:
		if !v {
			t.Fatalf("recursive lock/unlock sequence failed")
		}
	case <-time.After(time.Second):
		t.Fatalf("thread never completed")
	}
}

func TestMutexUnlockByNonOwnerFails(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)
	mu := NewMutex(table, 0)

	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		mu.Lock(self)
	}, 0, 0)
	s.JoinThread(th)

	other, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		if err := mu.Unlock(self); err == nil {
			t.Errorf("expected UNAUTHORIZED_ACTION unlocking a mutex this thread never locked")
		}
	}, 0, 0)
	s.JoinThread(other)
}

func TestWakeReturnsNoSuchIDWithoutWaiters(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)

	var word int32
	n, err := table.Wake(&word, 1)
	if n != 0 {
		t.Fatalf("Wake with no waiters woke %d, want 0", n)
	}
	code, ok := kernelerr.CodeOf(err)
	if !ok || code != kernelerr.NoSuchID {
		t.Fatalf("Wake with no waiters returned %v, want NO_SUCH_ID", err)
	}
}

func TestSemaphoreDestroyWakesWaitersAsDestroyed(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)
	sem := NewSemaphore(table, 0, 0)

	acquireErr := make(chan error, 1)
	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		acquireErr <- sem.Acquire(self)
	}, 0, 0)

	deadline := time.Now().Add(2 * time.Second)
	for th.State() != sched.Waiting && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if th.State() != sched.Waiting {
		t.Fatalf("thread never blocked on Acquire")
	}

	sem.Destroy()

	select {
	case err := <-acquireErr:
		code, ok := kernelerr.CodeOf(err)
		if !ok || code != kernelerr.Destroyed {
			t.Fatalf("Acquire after Destroy returned %v, want DESTROYED", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked Acquire was never woken by Destroy")
	}

	if err := sem.Release(); err == nil {
		t.Fatalf("expected INCORRECT_VALUE releasing a destroyed semaphore")
	}
}

func TestMutexDestroyRejectsFurtherOps(t *testing.T) {
	s := newTestScheduler(t)
	table := NewTable(s)
	mu := NewMutex(table, 0)

	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		mu.Lock(self)
	}, 0, 0)
	s.JoinThread(th)

	mu.Destroy()
	mu.Destroy() // idempotent

	other, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		if err := mu.Lock(self); err == nil {
			t.Errorf("expected INCORRECT_VALUE locking a destroyed mutex")
		}
	}, 0, 0)
	s.JoinThread(other)
}
