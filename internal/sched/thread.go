// Package sched implements the multi-core scheduler of §4.G: per-CPU ready
// queues, thread lifecycle, and the MAIN timer tick hook that drives
// preemption bookkeeping.
//
// Each Thread is backed by a *cpu.VCPU goroutine (§4.A). A real scheduler
// preempts at an arbitrary instruction boundary; this simulation is
// necessarily cooperative — the tick handler flags the running thread for
// reschedule (see NeedsReschedule), and the thread's own yield call (invoked at every blocking
// point and, for CPU-bound work, at explicit checkpoints) is where the
// handoff actually happens. This is documented as a deliberate simplification
// of the goroutine-based execution model, not a deviation from §8's
// observable scheduling guarantees.
package sched

import (
	"sync"
	"sync/atomic"

	"github.com/nyxkernel/nyx/internal/cpu"
)

// State is a thread's scheduling state, per §3.
type State int32

const (
	Ready State = iota
	Running
	Sleeping
	Waiting
	Joining
	Zombie
)

func (s State) String() string {
	switch s {
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Sleeping:
		return "SLEEPING"
	case Waiting:
		return "WAITING"
	case Joining:
		return "JOINING"
	case Zombie:
		return "ZOMBIE"
	default:
		return "UNKNOWN"
	}
}

// Thread is the TCB of §3. *cpu.VCPU is embedded as the first field so a
// pointer to Thread and a pointer to its VCPU coincide, mirroring the ABI
// convention recorded in cpu.VCPU's doc comment.
type Thread struct {
	*cpu.VCPU

	ID       int32
	Priority int32 // higher value runs first; see runQueue.Less
	Affinity int   // pinned core id, or -1 for any core

	state       int32 // atomic State
	needResched int32 // set by the tick handler, cleared when rescheduled
	timeSlice   int32 // atomic; ticks remaining in the current quantum

	wakeupTime int64 // atomic; unix nanoseconds, valid only while state == Sleeping

	exitCode int32
	cause    string // termination cause recorded by Exit; "" for a normal exit
	done     chan struct{}

	heapIndex int // maintained by container/heap; do not set directly

	yieldFn func() // captured at creation; Block uses it to hand back the core

	mu sync.Mutex
}

// Block transitions the thread to state and hands the core back to the
// scheduler, resuming here only once something calls Scheduler.Wake. Callers
// in internal/futex and internal/ksignal use this to put a thread to sleep on
// a wait condition without busy-waiting a goroutine.
func (t *Thread) Block(state State) {
	t.setState(state)
	t.yieldFn()
}

// State returns the thread's current scheduling state.
func (t *Thread) State() State { return State(atomic.LoadInt32(&t.state)) }

func (t *Thread) setState(s State) { atomic.StoreInt32(&t.state, int32(s)) }

// NeedsReschedule reports and clears the tick-set resched flag. The yield
// path does not consult it: a thread hands the core back at every yield
// whether or not the flag is set.
func (t *Thread) NeedsReschedule() bool {
	return atomic.SwapInt32(&t.needResched, 0) != 0
}

func (t *Thread) flagReschedule() { atomic.StoreInt32(&t.needResched, 1) }

// ExitCode returns the value passed to Exit, valid once State is Zombie.
func (t *Thread) ExitCode() int { return int(atomic.LoadInt32(&t.exitCode)) }

// Cause returns the termination cause recorded by Exit (e.g. "DIV_BY_ZERO",
// "SEGV"), or "" for a normal, voluntary exit. Valid once State is Zombie.
func (t *Thread) Cause() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cause
}
