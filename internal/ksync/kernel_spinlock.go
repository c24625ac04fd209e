package ksync

import (
	"strconv"
	"sync/atomic"

	"github.com/nyxkernel/nyx/internal/cpu"
)

// KernelSpinlock is a Spinlock preceded by a local critical section whose
// state is saved into a per-CPU slot indexed by cpuGetId(), per §4.C. At most
// one CPU may hold a given KernelSpinlock at a time; nested acquisition by
// the same CPU is a design bug and panics rather than deadlocking silently,
// matching the fatal-category classification in §7.
type KernelSpinlock struct {
	inner      Spinlock
	savedState []bool
	heldBy     int32 // -1 when free, else the holding core's id
}

// NewKernelSpinlock allocates the per-CPU saved-state slots for numCores
// cores, sized at boot per the "per-CPU globals" design note in §9.
func NewKernelSpinlock(numCores int) *KernelSpinlock {
	return &KernelSpinlock{
		savedState: make([]bool, numCores),
		heldBy:     -1,
	}
}

// Lock disables interrupts on core, saves the prior enable state in the
// lock's per-CPU slot, then spins for the underlying Spinlock.
func (k *KernelSpinlock) Lock(core *cpu.Core) {
	prev := core.DisableInterrupts()
	if atomic.LoadInt32(&k.heldBy) == int32(core.ID()) {
		core.RestoreInterrupts(prev)
		panic("ksync: recursive acquisition of the same kernel spinlock by CPU " + strconv.Itoa(core.ID()))
	}
	k.inner.Lock()
	atomic.StoreInt32(&k.heldBy, int32(core.ID()))
	k.savedState[core.ID()] = prev
}

// Unlock restores the saved interrupt-enable state for core and releases the
// underlying spinlock.
func (k *KernelSpinlock) Unlock(core *cpu.Core) {
	prev := k.savedState[core.ID()]
	atomic.StoreInt32(&k.heldBy, -1)
	k.inner.Unlock()
	core.RestoreInterrupts(prev)
}

// HeldByOther reports whether some other core currently holds the lock.
func (k *KernelSpinlock) HeldByOther(core *cpu.Core) bool {
	h := atomic.LoadInt32(&k.heldBy)
	return h != -1 && h != int32(core.ID())
}
