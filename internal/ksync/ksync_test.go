package ksync

import (
	"sync"
	"testing"

	"github.com/nyxkernel/nyx/internal/cpu"
)

// TestTenThreadContendedCounter is the end-to-end scenario from §8, scaled
// down: ten goroutines increment a shared counter 100,000 times each under a
// kernel spinlock; the final value must show no lost updates.
func TestTenThreadContendedCounter(t *testing.T) {
	const workers = 10
	const iterations = 100_000 // scaled down from 1,000,000 for test runtime

	lock := NewKernelSpinlock(workers)
	var counter int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		core := cpu.NewCore(i)
		go func(core *cpu.Core) {
			defer wg.Done()
			for n := 0; n < iterations; n++ {
				lock.Lock(core)
				counter++
				lock.Unlock(core)
			}
		}(core)
	}
	wg.Wait()

	want := int64(workers * iterations)
	if counter != want {
		t.Fatalf("counter = %d, want %d (lost updates under contention)", counter, want)
	}
}

func TestKernelSpinlockRestoresInterruptState(t *testing.T) {
	lock := NewKernelSpinlock(1)
	core := cpu.NewCore(0)
	core.DisableInterrupts()

	lock.Lock(core)
	lock.Unlock(core)

	if core.InterruptsEnabled() {
		t.Fatalf("unlock should restore the pre-lock disabled state")
	}
}

func TestSpinlockTryLock(t *testing.T) {
	var s Spinlock
	if !s.TryLock() {
		t.Fatalf("first TryLock should succeed")
	}
	if s.TryLock() {
		t.Fatalf("second TryLock should fail while held")
	}
	s.Unlock()
	if !s.TryLock() {
		t.Fatalf("TryLock should succeed after Unlock")
	}
}
