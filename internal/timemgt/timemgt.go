// Package timemgt aggregates the timer drivers the board exposes behind four
// roles (§3, §6): MAIN drives the scheduler tick, RTC advances wall-clock
// date/time, AUX and LIFETIME are available for driver-specific use.
package timemgt

import (
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
)

// Role identifies one of the four timer bindings.
type Role int

const (
	MAIN Role = iota
	RTC
	AUX
	LIFETIME
	roleCount
)

// Descriptor is the external timer-driver contract of §3 and §6. Drivers
// living outside this repository implement it; the core only calls through
// the interface.
type Descriptor interface {
	GetFrequency() uint64
	GetTimeNs() uint64
	SetTimeNs(ns uint64)
	GetDate() (year, month, day int)
	GetDaytime() (hour, minute, second int)
	Enable()
	Disable()
	SetHandler(h func())
	RemoveHandler()
	TickAck()
}

// MainTickHandler is the scheduler tick hook signature. See open question #1
// in SPEC_FULL.md: the MAIN role's callback is thread-aware because it
// drives preemption bookkeeping for the currently running thread.
type MainTickHandler func(current any)

// RTCTickHandler is the RTC role's callback signature: argument-less, since
// it only advances wall-clock bookkeeping and has no business touching a
// specific thread (open question #1, resolved).
type RTCTickHandler func()

// Manager binds one Descriptor per role and wires the MAIN/RTC roles'
// driver-level handlers to kernel-level callbacks.
type Manager struct {
	lock  ksync.Spinlock
	bound [roleCount]Descriptor

	mainHandler    MainTickHandler
	rtcHandler     RTCTickHandler
	currentThread  func() any
}

// New builds an unbound time manager.
func New() *Manager { return &Manager{} }

// AddTimer binds descriptor to role. Re-binding an already-bound role fails
// with ALREADY_EXIST, per §6.
func (m *Manager) AddTimer(d Descriptor, role Role) error {
	if d == nil {
		return kernelerr.New("timemgt", kernelerr.NullPointer)
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.bound[role] != nil {
		return kernelerr.New("timemgt", kernelerr.AlreadyExist)
	}
	m.bound[role] = d
	switch role {
	case MAIN:
		d.SetHandler(m.fireMainTick)
	case RTC:
		d.SetHandler(m.fireRTCTick)
	}
	return nil
}

// Timer returns the descriptor bound to role, if any.
func (m *Manager) Timer(role Role) (Descriptor, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	d := m.bound[role]
	return d, d != nil
}

// SetCurrentThreadProvider installs the function used to fetch "the current
// thread" when the MAIN tick fires, set by internal/kernel once the
// scheduler exists.
func (m *Manager) SetCurrentThreadProvider(fn func() any) { m.currentThread = fn }

// SetMainTickHandler installs the scheduler's tick hook.
func (m *Manager) SetMainTickHandler(h MainTickHandler) { m.mainHandler = h }

// SetRTCTickHandler installs the RTC role's date/time-advance hook.
func (m *Manager) SetRTCTickHandler(h RTCTickHandler) { m.rtcHandler = h }

func (m *Manager) fireMainTick() {
	if d := m.bound[MAIN]; d != nil {
		d.TickAck()
	}
	if m.mainHandler == nil {
		return
	}
	var cur any
	if m.currentThread != nil {
		cur = m.currentThread()
	}
	m.mainHandler(cur)
}

func (m *Manager) fireRTCTick() {
	if d := m.bound[RTC]; d != nil {
		d.TickAck()
	}
	if m.rtcHandler != nil {
		m.rtcHandler()
	}
}
