// Package interrupt implements the interrupt/exception dispatch pipeline of
// §4.B: a table of line -> handler, exception defaults seeded at init, and
// the registration contract guarded by one table lock. The table is not a
// single global: internal/kernel builds one Dispatcher per core.
package interrupt

import (
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
)

// Line counts and ranges. Exception lines occupy the low range; IRQ lines
// the customizable range above them, matching the CPU exception vectors of a
// real x86 IDT (0-31 reserved for exceptions).
const (
	ExceptionLineMin = 0
	ExceptionLineMax = 31
	CustomLineMin    = 32
	CustomLineMax    = 255
	LineCount        = CustomLineMax + 1

	// PanicLine is the reserved software interrupt line kernelPanic raises
	// (§7); it is outside the customizable range and is never available to
	// interruptRegister.
	PanicLine = 2
)

// Handler processes an interrupt or exception on the current core. thread is
// the TCB that was RUNNING when the interrupt arrived, represented loosely
// as `any` here to avoid a dependency cycle with internal/sched (which
// depends on interrupt, not the other way around).
type Handler func(line int, thread any)

// Dispatcher is one line -> handler dispatch table; each core gets its own.
type Dispatcher struct {
	lock     ksync.Spinlock
	handlers [LineCount]Handler
}

// New constructs an empty dispatcher with no handlers registered. Exception
// defaults are installed separately via SeedExceptionDefaults so tests can
// exercise bare registration semantics.
func New() *Dispatcher {
	return &Dispatcher{}
}

func inRange(line, lo, hi int) bool { return line >= lo && line <= hi }

// Register installs handler at an IRQ line in the customizable range.
func (d *Dispatcher) Register(line int, handler Handler) error {
	if !inRange(line, CustomLineMin, CustomLineMax) {
		return kernelerr.New("interrupt", kernelerr.UnauthorizedInterruptLine)
	}
	return d.register(line, handler)
}

// RegisterException installs handler at an exception line.
func (d *Dispatcher) RegisterException(line int, handler Handler) error {
	if !inRange(line, ExceptionLineMin, ExceptionLineMax) {
		return kernelerr.New("interrupt", kernelerr.UnauthorizedInterruptLine)
	}
	return d.register(line, handler)
}

func (d *Dispatcher) register(line int, handler Handler) error {
	if handler == nil {
		return kernelerr.New("interrupt", kernelerr.NullPointer)
	}
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.handlers[line] != nil {
		return kernelerr.New("interrupt", kernelerr.AlreadyExist)
	}
	d.handlers[line] = handler
	return nil
}

// Remove clears a previously registered IRQ line.
func (d *Dispatcher) Remove(line int) error {
	if !inRange(line, CustomLineMin, CustomLineMax) {
		return kernelerr.New("interrupt", kernelerr.UnauthorizedInterruptLine)
	}
	return d.remove(line)
}

// RemoveException clears a previously registered exception line.
func (d *Dispatcher) RemoveException(line int) error {
	if !inRange(line, ExceptionLineMin, ExceptionLineMax) {
		return kernelerr.New("interrupt", kernelerr.UnauthorizedInterruptLine)
	}
	return d.remove(line)
}

func (d *Dispatcher) remove(line int) error {
	d.lock.Lock()
	defer d.lock.Unlock()
	if d.handlers[line] == nil {
		return kernelerr.New("interrupt", kernelerr.NoSuchID)
	}
	d.handlers[line] = nil
	return nil
}

// Dispatch invokes the handler registered at line with thread, or reports
// that the line was spurious (no handler, no default). The slot is read under
// the same lock registration takes, so the lookup sees either the old or the
// new handler; the handler itself runs after the lock is released, so a
// handler removed concurrently may still complete one last invocation.
func (d *Dispatcher) Dispatch(line int, thread any) (handled bool) {
	d.lock.Lock()
	h := d.handlers[line]
	d.lock.Unlock()
	if h == nil {
		return false
	}
	h(line, thread)
	return true
}

// Raise triggers a software interrupt on line — cpuGetId()'s sibling
// contract raiseInterrupt() from §4.A, implemented here (rather than in
// internal/cpu) because only the dispatcher can validate and invoke it
// without introducing an import cycle.
func (d *Dispatcher) Raise(line int, thread any) error {
	if !inRange(line, CustomLineMin, CustomLineMax) && line != PanicLine {
		return kernelerr.New("interrupt", kernelerr.UnauthorizedAction)
	}
	d.Dispatch(line, thread)
	return nil
}
