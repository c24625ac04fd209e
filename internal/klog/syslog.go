package klog

import (
	"context"
	"sync"
	"time"
)

// record is one pending log line in the ring.
type record struct {
	lvl       Level
	component string
	msg       string
	when      time.Time
}

// ThreadSpawner is the slice of internal/sched that Syslog needs: the
// ability to start a highest-priority-band kernel thread. Defined here
// rather than imported from internal/sched to keep K's dependency on G an
// interface-shaped one, in the spirit of "accept interfaces, return structs".
type ThreadSpawner interface {
	SpawnSystemThread(name string, body func(ctx context.Context))
}

// Syslog is the async, thread-backed log sink of §4.K: producers enqueue
// without blocking; a single dedicated thread drains the ring in enqueue
// order and formats records through a Logger, mirroring the deferred-IRQ
// executor's ordering guarantee (§4.J).
type Syslog struct {
	sink *Logger

	mu       sync.Mutex
	ring     []record
	head     int // next slot to write
	count    int
	capacity int
	dropped  uint64

	wake chan struct{}
}

// NewSyslog builds a ring of the given capacity backed by sink.
func NewSyslog(sink *Logger, capacity int) *Syslog {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Syslog{
		sink:     sink,
		ring:     make([]record, capacity),
		capacity: capacity,
		wake:     make(chan struct{}, 1),
	}
}

// Enqueue adds a record without blocking. If the ring is full the oldest
// unread record is overwritten and Dropped is incremented — producers are
// never blocked by a slow or stalled drain thread.
func (s *Syslog) Enqueue(lvl Level, component, msg string) {
	s.mu.Lock()
	r := record{lvl: lvl, component: component, msg: msg, when: time.Now()}
	s.ring[s.head] = r
	s.head = (s.head + 1) % s.capacity
	if s.count < s.capacity {
		s.count++
	} else {
		s.dropped++
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Dropped returns the monotonic count of overwritten, never-drained records.
func (s *Syslog) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// drainOne removes and returns the oldest pending record, in enqueue order.
func (s *Syslog) drainOne() (record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return record{}, false
	}
	readIdx := (s.head - s.count + s.capacity) % s.capacity
	r := s.ring[readIdx]
	s.count--
	return r, true
}

// Start spawns the dedicated drain thread via spawner. The thread runs until
// ctx is canceled.
func (s *Syslog) Start(ctx context.Context, spawner ThreadSpawner) {
	spawner.SpawnSystemThread("klogd", func(threadCtx context.Context) {
		for {
			for {
				r, ok := s.drainOne()
				if !ok {
					break
				}
				s.sink.log(r.lvl, r.component, "%s", r.msg)
			}
			select {
			case <-ctx.Done():
				return
			case <-threadCtx.Done():
				return
			case <-s.wake:
			}
		}
	})
}
