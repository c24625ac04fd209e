// Package ksignal implements the signal delivery layer of §4.I: a per-thread
// pending bitmask, a per-thread handler table, and the interrupt-return
// epilogue that drains pending signals before control returns to user code.
package ksignal

import (
	"github.com/nyxkernel/nyx/internal/futex"
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
	"github.com/nyxkernel/nyx/internal/sched"
)

// Signal is one of the small fixed set of signal numbers the core kernel
// knows about; driver- or userspace-defined signals are out of scope (§1).
// Numbers match their POSIX counterparts where one exists, since
// internal/interrupt's default exception handlers raise these same numbers
// without importing this package (see interrupt.SigFPE et al.).
type Signal int

const (
	SIGILL  Signal = 4
	SIGFPE  Signal = 8
	SIGKILL Signal = 9
	SIGUSR1 Signal = 10
	SIGSEGV Signal = 11
	SIGALRM Signal = 14
	SIGEXC  Signal = 31 // kernel-specific: "uncategorized fatal CPU exception"

	sigCount Signal = 32
)

// Termination causes the default fatal-signal handlers record (§3's
// error-context snapshot, surfaced by Scheduler.JoinThread).
const (
	CauseDivByZero = "DIV_BY_ZERO"
	CauseIllegalOp = "ILL"
	CauseSegv      = "SEGV"
	CauseException = "EXC"
	CauseKilled    = "KILLED"
)

func defaultCause(sig Signal) string {
	switch sig {
	case SIGFPE:
		return CauseDivByZero
	case SIGILL:
		return CauseIllegalOp
	case SIGSEGV:
		return CauseSegv
	case SIGEXC:
		return CauseException
	case SIGKILL:
		return CauseKilled
	default:
		return ""
	}
}

// Handler is invoked with the signal and the thread it was delivered to.
type Handler func(sig Signal, current *sched.Thread)

// Manager owns every thread's pending bitmask and handler table.
type Manager struct {
	lock     ksync.Spinlock
	pending  map[int32]uint32
	handlers map[int32][sigCount]Handler
	defaults [sigCount]Handler
	sched    *sched.Scheduler
	futex    *futex.Table
}

// NewManager builds a signal manager wired to sched for default fatal-signal
// termination, and installs the stock default handlers of §4.I.
func NewManager(s *sched.Scheduler) *Manager {
	m := &Manager{
		pending:  make(map[int32]uint32),
		handlers: make(map[int32][sigCount]Handler),
		sched:    s,
	}
	terminate := func(sig Signal, current *sched.Thread) {
		m.sched.Exit(current, -1, defaultCause(sig))
	}
	m.defaults[SIGKILL] = terminate
	m.defaults[SIGSEGV] = terminate
	m.defaults[SIGFPE] = terminate
	m.defaults[SIGILL] = terminate
	m.defaults[SIGEXC] = terminate
	// SIGALRM and SIGUSR1 default to ignore, per §4.I.
	return m
}

// RaiseOn implements interrupt.SignalRaiser, bridging the dispatcher's
// untyped thread/signalNum pair to Raise. A thread value that isn't a
// *sched.Thread (or is nil) is silently ignored, since the dispatcher may be
// exercised in isolation by tests with no real thread in hand.
func (m *Manager) RaiseOn(thread any, signalNum int) {
	t, ok := thread.(*sched.Thread)
	if !ok || t == nil {
		return
	}
	_ = m.Raise(t.ID, Signal(signalNum))
}

func bit(sig Signal) uint32 { return 1 << uint(sig) }

// SetFutexTable wires the futex table Raise uses to cancel a blocked wait,
// set by internal/kernel once both components exist (H before I in the
// dependency table).
func (m *Manager) SetFutexTable(t *futex.Table) { m.futex = t }

// Raise sets sig pending for threadID (signalRaise) and, per §4.I, wakes the
// target with reason CANCEL if it is currently WAITING on a cancellable
// resource — the only asynchronous injection this kernel can make into a
// parked vCPU. The custom or default handler itself still only runs once the
// thread reaches its own interrupt-return epilogue and calls Manage; callers
// woken with CANCEL are expected to retry their blocking call, which
// observes the newly-pending signal there.
func (m *Manager) Raise(threadID int32, sig Signal) error {
	if sig < 0 || sig >= sigCount {
		return kernelerr.New("ksignal", kernelerr.IncorrectValue)
	}
	m.lock.Lock()
	m.pending[threadID] |= bit(sig)
	m.lock.Unlock()

	if m.futex != nil {
		if t := m.sched.ThreadByID(threadID); t != nil && t.State() == sched.Waiting {
			m.futex.Cancel(t)
		}
	}
	return nil
}

// SetHandler installs a custom handler for sig on threadID, overriding the
// default action.
func (m *Manager) SetHandler(threadID int32, sig Signal, h Handler) error {
	if sig < 0 || sig >= sigCount {
		return kernelerr.New("ksignal", kernelerr.IncorrectValue)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	hs := m.handlers[threadID]
	hs[sig] = h
	m.handlers[threadID] = hs
	return nil
}

// RemoveHandler reverts sig on threadID back to its default action.
func (m *Manager) RemoveHandler(threadID int32, sig Signal) {
	m.lock.Lock()
	defer m.lock.Unlock()
	hs := m.handlers[threadID]
	hs[sig] = nil
	m.handlers[threadID] = hs
}

// Manage is the interrupt-return epilogue (signalManage): it drains every
// pending signal for current, lowest signal number first, invoking the
// custom handler if one is installed or the default action otherwise.
func (m *Manager) Manage(current *sched.Thread) {
	id := current.ID
	for {
		m.lock.Lock()
		mask := m.pending[id]
		if mask == 0 {
			m.lock.Unlock()
			return
		}
		var sig Signal
		for sig = 0; sig < sigCount; sig++ {
			if mask&bit(sig) != 0 {
				break
			}
		}
		m.pending[id] &^= bit(sig)
		handler := m.handlers[id][sig]
		m.lock.Unlock()

		if handler == nil {
			handler = m.defaults[sig]
		}
		if handler != nil {
			handler(sig, current)
		}
		if current.State() == sched.Zombie {
			return
		}
	}
}
