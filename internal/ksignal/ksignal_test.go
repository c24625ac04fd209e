package ksignal

import (
	"testing"
	"time"

	"github.com/nyxkernel/nyx/internal/futex"
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/sched"
)

func TestDivideByZeroDeliversFatalSignal(t *testing.T) {
	s := sched.NewScheduler(1)
	s.Bootstrap(0)
	go s.RunCore(0)
	m := NewManager(s)

	reached := make(chan struct{})
	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		if err := m.Raise(self.ID, SIGFPE); err != nil {
			t.Errorf("Raise: %v", err)
		}
		m.Manage(self)
		close(reached)
	}, 0, 0)

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatalf("thread body never completed")
	}

	code, cause, err := s.JoinThread(th)
	if err != nil {
		t.Fatalf("JoinThread: %v", err)
	}
	if code != -1 {
		t.Fatalf("ExitCode after fatal signal = %d, want -1", code)
	}
	if cause != CauseDivByZero {
		t.Fatalf("Cause after SIGFPE = %q, want %q", cause, CauseDivByZero)
	}
}

func TestCustomHandlerOverridesDefault(t *testing.T) {
	s := sched.NewScheduler(1)
	s.Bootstrap(0)
	go s.RunCore(0)
	m := NewManager(s)

	var handled Signal = -1
	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		m.SetHandler(self.ID, SIGUSR1, func(sig Signal, current *sched.Thread) {
			handled = sig
		})
		m.Raise(self.ID, SIGUSR1)
		m.Manage(self)
	}, 0, 0)
	s.JoinThread(th)

	if handled != SIGUSR1 {
		t.Fatalf("custom handler did not run, handled = %v", handled)
	}
}

func TestManageDrainsInSignalNumberOrder(t *testing.T) {
	s := sched.NewScheduler(1)
	s.Bootstrap(0)
	go s.RunCore(0)
	m := NewManager(s)

	var order []Signal
	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		for _, sig := range []Signal{SIGUSR1, SIGALRM} {
			sig := sig
			m.SetHandler(self.ID, sig, func(s Signal, current *sched.Thread) {
				order = append(order, s)
			})
		}
		m.Raise(self.ID, SIGALRM)
		m.Raise(self.ID, SIGUSR1)
		m.Manage(self)
	}, 0, 0)
	s.JoinThread(th)

	if len(order) != 2 || order[0] != SIGUSR1 || order[1] != SIGALRM {
		t.Fatalf("delivery order = %v, want [SIGUSR1 SIGALRM] (lowest signal number first)", order)
	}
}

func TestRaiseCancelsBlockedFutexWait(t *testing.T) {
	s := sched.NewScheduler(1)
	s.Bootstrap(0)
	go s.RunCore(0)
	m := NewManager(s)
	table := futex.NewTable(s)
	m.SetFutexTable(table)
	sem := futex.NewSemaphore(table, 0, 0)

	acquireErr := make(chan error, 1)
	th, _ := s.CreateThread(func(self *sched.Thread, yield func()) {
		acquireErr <- sem.Acquire(self)
	}, 0, 0)

	deadline := time.Now().Add(2 * time.Second)
	for th.State() != sched.Waiting && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if th.State() != sched.Waiting {
		t.Fatalf("thread never reached WAITING on the semaphore")
	}

	if err := m.Raise(th.ID, SIGUSR1); err != nil {
		t.Fatalf("Raise: %v", err)
	}

	select {
	case err := <-acquireErr:
		code, ok := kernelerr.CodeOf(err)
		if !ok || code != kernelerr.Canceled {
			t.Fatalf("Acquire returned %v, want CANCELED", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("blocked Acquire was never canceled by Raise")
	}
}
