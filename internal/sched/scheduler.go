package sched

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nyxkernel/nyx/internal/cpu"
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
)

// DefaultTimeSlice is the number of MAIN-timer ticks a thread runs for before
// the tick handler flags it for reschedule (§4.G).
const DefaultTimeSlice int32 = 5

// coreState is the per-CPU half of the scheduler: one ready queue and the
// thread currently occupying that core.
type coreState struct {
	core    *cpu.Core
	lock    ksync.Spinlock
	ready   runQueue
	current *Thread
	idle    *Thread // parked when the core has nothing else to run
	tick    int64   // atomic; per-CPU tick counter, incremented by TickHandler
}

// Scheduler owns every thread's lifecycle and the per-core ready queues of
// §4.G. One Scheduler instance exists per kernel image.
type Scheduler struct {
	cores  []*coreState
	nextID int32

	tlock   sync.Mutex
	threads map[int32]*Thread
}

// NewScheduler allocates per-core ready queues for numCores cores.
func NewScheduler(numCores int) *Scheduler {
	s := &Scheduler{
		cores:   make([]*coreState, numCores),
		threads: make(map[int32]*Thread),
	}
	for i := range s.cores {
		s.cores[i] = &coreState{core: cpu.NewCore(i)}
	}
	return s
}

// Core returns the per-CPU arch state for coreID, for wiring into other
// components that need a *cpu.Core (interrupt dispatch, kernel spinlocks).
func (s *Scheduler) Core(coreID int) *cpu.Core { return s.cores[coreID].core }

// Bootstrap resolves the "what does the very first context switch switch
// away from" question (§9, open question): each core parks an idle thread
// before entering service, so the first real RestoreContext always has a
// valid previous context to return into when the ready queue drains.
func (s *Scheduler) Bootstrap(coreID int) {
	cs := s.cores[coreID]
	idle := s.newThread(func(t *Thread, yield func()) {
		for {
			yield()
		}
	}, -1<<31, coreID)
	idle.setState(Running)
	cs.idle = idle
	cs.current = idle
}

func (s *Scheduler) newThread(body func(t *Thread, yield func()), priority int32, affinity int) *Thread {
	id := atomic.AddInt32(&s.nextID, 1)
	t := &Thread{
		ID:        id,
		Priority:  priority,
		Affinity:  affinity,
		done:      make(chan struct{}),
		timeSlice: DefaultTimeSlice,
	}
	t.VCPU = cpu.CreateVirtualCPU(0, func(yield func()) {
		t.yieldFn = yield
		body(t, yield)
		s.Exit(t, 0, "")
	})
	t.setState(Ready)
	s.tlock.Lock()
	s.threads[id] = t
	s.tlock.Unlock()
	return t
}

// CreateThread is schedCreateThread: it allocates a TCB, places it on the
// ready queue of its affine core (or the least-loaded core when affinity is
// -1), and returns immediately without running it.
func (s *Scheduler) CreateThread(body func(t *Thread, yield func()), priority int, affinity int) (*Thread, error) {
	if body == nil {
		return nil, kernelerr.New("sched", kernelerr.NullPointer)
	}
	if affinity >= len(s.cores) {
		return nil, kernelerr.New("sched", kernelerr.IncorrectValue)
	}
	t := s.newThread(body, int32(priority), affinity)
	target := affinity
	if target < 0 {
		target = s.leastLoadedCore()
	}
	s.enqueue(target, t)
	return t, nil
}

func (s *Scheduler) leastLoadedCore() int {
	best := 0
	for i, cs := range s.cores {
		cs.lock.Lock()
		n := cs.ready.Len()
		cs.lock.Unlock()
		if i == 0 {
			best = 0
		}
		bestCS := s.cores[best]
		bestCS.lock.Lock()
		bn := bestCS.ready.Len()
		bestCS.lock.Unlock()
		if n < bn {
			best = i
		}
	}
	return best
}

func (s *Scheduler) enqueue(coreID int, t *Thread) {
	cs := s.cores[coreID]
	t.setState(Ready)
	cs.lock.Lock()
	cs.ready.push(t)
	cs.lock.Unlock()
}

// JoinThread is schedJoinThread: it blocks the calling goroutine until t
// reaches ZOMBIE, then copies its return value and termination cause and
// frees its TCB — removing it from the scheduler's thread registry, per
// §4.G and §8's create/join round-trip law (thread count unchanged).
func (s *Scheduler) JoinThread(t *Thread) (int, string, error) {
	if t == nil {
		return 0, "", kernelerr.New("sched", kernelerr.NullPointer)
	}
	<-t.done
	code, cause := t.ExitCode(), t.Cause()

	s.tlock.Lock()
	delete(s.threads, t.ID)
	s.tlock.Unlock()

	return code, cause, nil
}

// Exit transitions t to ZOMBIE, records its exit code and termination cause,
// and wakes every pending JoinThread caller. cause is "" for a normal,
// voluntary exit; internal/ksignal's default fatal-signal handlers pass a
// cause naming the signal that killed the thread.
func (s *Scheduler) Exit(t *Thread, code int, cause string) {
	t.mu.Lock()
	if t.State() == Zombie {
		t.mu.Unlock()
		return
	}
	atomic.StoreInt32(&t.exitCode, int32(code))
	t.cause = cause
	t.setState(Zombie)
	close(t.done)
	t.mu.Unlock()
}

// Sleep is schedSleep, a named suspension point (§5): it records a wake-up
// deadline on self, transitions it to SLEEPING, and yields. The MAIN timer's
// tick handler wakes it once the deadline has passed (§4.G).
func (s *Scheduler) Sleep(self *Thread, d time.Duration) {
	atomic.StoreInt64(&self.wakeupTime, time.Now().Add(d).UnixNano())
	self.Block(Sleeping)
}

// ThreadByID returns the thread registered under id, or nil if it was never
// created or has already been freed by JoinThread.
func (s *Scheduler) ThreadByID(id int32) *Thread {
	s.tlock.Lock()
	defer s.tlock.Unlock()
	return s.threads[id]
}

// ThreadCount reports how many TCBs are currently registered (created but
// not yet freed by JoinThread), for diagnostics and the §8 round-trip check.
func (s *Scheduler) ThreadCount() int {
	s.tlock.Lock()
	defer s.tlock.Unlock()
	return len(s.threads)
}

func (s *Scheduler) wakeExpiredSleepers() {
	now := time.Now().UnixNano()

	s.tlock.Lock()
	var expired []*Thread
	for _, t := range s.threads {
		if t.State() != Sleeping {
			continue
		}
		if wt := atomic.LoadInt64(&t.wakeupTime); wt != 0 && now >= wt {
			expired = append(expired, t)
		}
	}
	s.tlock.Unlock()

	for _, t := range expired {
		atomic.StoreInt64(&t.wakeupTime, 0)
		s.Wake(t)
	}
}

// RunCore drains coreID's ready queue forever, handing each READY thread the
// run token via its vCPU's RestoreContext, and is meant to be the body of
// the goroutine dedicated to that core (§4.A: one goroutine per logical
// core).
func (s *Scheduler) RunCore(coreID int) {
	cs := s.cores[coreID]
	for {
		cs.lock.Lock()
		next := cs.ready.pop()
		cs.lock.Unlock()
		if next == nil {
			next = cs.idle
		}
		cs.current = next
		next.setState(Running)
		next.VCPU.RestoreContext()

		if next.VCPU.Exited() || next.State() == Zombie {
			continue
		}
		if next.State() == Running {
			s.enqueue(coreID, next)
		}
		// SLEEPING/WAITING/JOINING threads stay off the ready queue until
		// something (timer, futex, signal) calls Wake.
	}
}

// Wake moves a SLEEPING/WAITING thread back onto its affine core's (or the
// least-loaded core's) ready queue.
func (s *Scheduler) Wake(t *Thread) {
	target := t.Affinity
	if target < 0 {
		target = s.leastLoadedCore()
	}
	s.enqueue(target, t)
}

// TickHandler satisfies timemgt.MainTickHandler and is §4.G's MAIN timer
// tick handler: it wakes every SLEEPING thread whose deadline has passed,
// increments the owning core's per-CPU tick counter, and decrements the
// running thread's time-slice, flagging reschedule once it reaches zero and
// resetting it for the next quantum. The actual context switch happens
// later, at the thread's own next yield point. current, when a non-nil
// *Thread, is the only thread charged for the tick; otherwise every core's
// current thread is charged, since the MAIN timer is a single global source.
func (s *Scheduler) TickHandler(current any) {
	s.wakeExpiredSleepers()

	if t, ok := current.(*Thread); ok && t != nil {
		s.accountTick(t)
		return
	}
	for _, cs := range s.cores {
		if cs.current != nil {
			s.accountTick(cs.current)
		}
	}
}

// accountTick increments t's owning core's tick counter and decrements t's
// time-slice, flagging reschedule when the quantum is exhausted.
func (s *Scheduler) accountTick(t *Thread) {
	for _, cs := range s.cores {
		if cs.current == t {
			atomic.AddInt64(&cs.tick, 1)
			break
		}
	}
	if atomic.AddInt32(&t.timeSlice, -1) <= 0 {
		atomic.StoreInt32(&t.timeSlice, DefaultTimeSlice)
		t.flagReschedule()
	}
}

// Ticks reports coreID's per-CPU tick counter, for diagnostics.
func (s *Scheduler) Ticks(coreID int) int64 {
	return atomic.LoadInt64(&s.cores[coreID].tick)
}

// Current returns the thread occupying coreID, or nil before Bootstrap.
func (s *Scheduler) Current(coreID int) *Thread { return s.cores[coreID].current }
