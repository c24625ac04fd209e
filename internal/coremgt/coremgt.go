// Package coremgt implements secondary-CPU bring-up and inter-processor
// interrupts of §4.L: coreMgtApInit starts the goroutine standing in for an
// application processor, and coreMgtSendIpi delivers a software interrupt to
// one core, every core but the sender, or every core.
package coremgt

import (
	"sync"

	"github.com/nyxkernel/nyx/internal/interrupt"
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/sched"
)

// IPILine is the reserved custom interrupt line every core's dispatcher uses
// for inter-processor interrupts.
const IPILine = interrupt.CustomLineMin + 1

// IPIMode selects coreMgtSendIpi's targeting behavior.
type IPIMode int

const (
	Unicast IPIMode = iota
	BroadcastExceptSelf
	BroadcastAll
)

// Manager owns one interrupt dispatcher per core and the scheduler whose
// per-core run loops back the application processors.
type Manager struct {
	dispatchers []*interrupt.Dispatcher
	sched       *sched.Scheduler

	mu      sync.Mutex
	started []bool
}

// NewManager builds a manager for len(dispatchers) cores; dispatchers[i] must
// be the dispatch table that core i's RunCore goroutine services.
func NewManager(dispatchers []*interrupt.Dispatcher, s *sched.Scheduler) *Manager {
	return &Manager{
		dispatchers: dispatchers,
		sched:       s,
		started:     make([]bool, len(dispatchers)),
	}
}

// ApInit is coreMgtApInit: it brings core cpuID online by starting its
// scheduler run loop. Calling it twice for the same core is a caller bug and
// reports ALREADY_EXIST rather than starting a duplicate goroutine.
func (m *Manager) ApInit(cpuID int) error {
	if cpuID < 0 || cpuID >= len(m.dispatchers) {
		return kernelerr.New("coremgt", kernelerr.OutOfBound)
	}
	m.mu.Lock()
	if m.started[cpuID] {
		m.mu.Unlock()
		return kernelerr.New("coremgt", kernelerr.AlreadyExist)
	}
	m.started[cpuID] = true
	m.mu.Unlock()

	m.sched.Bootstrap(cpuID)
	go m.sched.RunCore(cpuID)
	return nil
}

// SendIPI is coreMgtSendIpi: it raises IPILine on the dispatcher(s) selected
// by mode, carrying payload as the interrupt's thread argument (§4.B's
// Handler signature). target is ignored except in Unicast mode.
func (m *Manager) SendIPI(from int, mode IPIMode, target int, payload any) error {
	switch mode {
	case Unicast:
		if target < 0 || target >= len(m.dispatchers) {
			return kernelerr.New("coremgt", kernelerr.OutOfBound)
		}
		return m.dispatchers[target].Raise(IPILine, payload)
	case BroadcastExceptSelf, BroadcastAll:
		for i, d := range m.dispatchers {
			if mode == BroadcastExceptSelf && i == from {
				continue
			}
			if err := d.Raise(IPILine, payload); err != nil {
				return err
			}
		}
		return nil
	default:
		return kernelerr.New("coremgt", kernelerr.IncorrectValue)
	}
}

// Started reports whether cpuID's run loop has been brought up.
func (m *Manager) Started(cpuID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started[cpuID]
}
