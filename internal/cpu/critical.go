package cpu

// CriticalGuard is the scoped form of ENTER_CRITICAL_LOCAL / EXIT_CRITICAL_LOCAL
// (§9): acquiring one disables interrupts on the core; Release (typically
// deferred) restores the exact prior state. Holding a CriticalGuard across a
// suspension point is a bug — callers that block while holding one will
// deadlock the core, exactly as disabling interrupts across a sleep would on
// real hardware.
type CriticalGuard struct {
	core *Core
	prev bool
	done bool
}

// EnterCriticalLocal disables interrupts on core and returns a guard whose
// Release restores the previous state.
func EnterCriticalLocal(core *Core) *CriticalGuard {
	return &CriticalGuard{core: core, prev: core.DisableInterrupts()}
}

// Release restores the interrupt-enable state captured at Enter time. Safe to
// call more than once; only the first call has an effect.
func (g *CriticalGuard) Release() {
	if g.done {
		return
	}
	g.done = true
	g.core.RestoreInterrupts(g.prev)
}
