// Package cpu provides the architecture-abstraction layer: CPU identification,
// feature validation, atomic primitives, interrupt-enable state, and the
// virtual-CPU (vCPU) image that backs every schedulable thread.
//
// A real kernel owns this layer in assembly: IDT/GDT loads, register-window
// save areas, and a context-switch trampoline that never returns. Go gives us
// none of that, so each logical CPU core here is a dedicated goroutine and a
// vCPU image is a parked goroutine gated by a run token (see VCPU.RestoreContext).
// The contracts below are shaped to match what internal/sched needs from a
// real arch layer, so the simulation and a future assembly backend can share
// the same call sites.
package cpu

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Required feature set validated at boot. Checked against golang.org/x/sys/cpu
// rather than hand-decoded CPUID bits.
var requiredX86Features = []string{"SSE2"}

// coreKey is the context.Context key under which the calling core's *Core is stored.
type coreKey struct{}

// Core is the per-CPU state a real kernel would keep in a dedicated segment
// (GS-base on x86_64). It tracks the core's stable identifier and its
// current interrupt-enable state, which kernel spinlocks save and restore.
type Core struct {
	id int

	mu         sync.Mutex
	irqEnabled bool
}

// NewCore constructs the per-CPU state for a 0-based core id. The boot core is
// always id 0, per §4.A.
func NewCore(id int) *Core {
	return &Core{id: id, irqEnabled: true}
}

// WithCore returns a context carrying core as the calling CPU's local state.
func WithCore(ctx context.Context, core *Core) context.Context {
	return context.WithValue(ctx, coreKey{}, core)
}

// CoreFromContext recovers the Core stored by WithCore.
func CoreFromContext(ctx context.Context) (*Core, bool) {
	c, ok := ctx.Value(coreKey{}).(*Core)
	return c, ok
}

// ID returns the stable identifier of the calling core, i.e. cpuGetId().
func (c *Core) ID() int { return c.id }

// GetID is the free-function form of cpuGetId() for callers that only have a
// context.Context in hand.
func GetID(ctx context.Context) int {
	if c, ok := CoreFromContext(ctx); ok {
		return c.ID()
	}
	return -1
}

// InterruptsEnabled reports the core's current interrupt-enable state.
func (c *Core) InterruptsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.irqEnabled
}

// DisableInterrupts disables interrupts on the core and returns the prior
// enable state, for later restoration. This is the CPU-layer half of the
// local critical section in §4.C; internal/ksync builds the scoped guard on
// top of it.
func (c *Core) DisableInterrupts() (prevEnabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prevEnabled = c.irqEnabled
	c.irqEnabled = false
	return prevEnabled
}

// RestoreInterrupts restores a previously saved enable state exactly,
// matching §3's "release restores the exact prior enable state" invariant.
func (c *Core) RestoreInterrupts(prevEnabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.irqEnabled = prevEnabled
}

// AtomicIncrement32 increments *addr and returns the new value. Sequentially
// consistent with respect to other atomics on the same word, independent of
// any critical section.
func AtomicIncrement32(addr *int32) int32 {
	return atomic.AddInt32(addr, 1)
}

// AtomicDecrement32 decrements *addr and returns the new value.
func AtomicDecrement32(addr *int32) int32 {
	return atomic.AddInt32(addr, -1)
}

// ValidateFeatures checks that the host CPU advertises every feature the
// kernel requires, returning an error naming the first missing one.
func ValidateFeatures() error {
	for _, feat := range requiredX86Features {
		if !featureSupported(feat) {
			return fmt.Errorf("cpu: required feature %q not available", feat)
		}
	}
	return nil
}
