// Package kernel wires every core component together in the boot order of
// §2's dependency table (A -> B -> D -> E -> F -> G -> H -> I -> J -> K -> L)
// and implements the fatal-error path, kernelPanic, that every component's
// "structural violation" failure mode ultimately funnels into.
package kernel

import (
	"context"
	"fmt"
	"os"

	"github.com/nyxkernel/nyx/internal/coremgt"
	"github.com/nyxkernel/nyx/internal/cpu"
	"github.com/nyxkernel/nyx/internal/deferred"
	"github.com/nyxkernel/nyx/internal/drivermgr"
	"github.com/nyxkernel/nyx/internal/fdt"
	"github.com/nyxkernel/nyx/internal/futex"
	"github.com/nyxkernel/nyx/internal/interrupt"
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/klog"
	"github.com/nyxkernel/nyx/internal/ksignal"
	"github.com/nyxkernel/nyx/internal/sched"
	"github.com/nyxkernel/nyx/internal/timemgt"
	"github.com/nyxkernel/nyx/internal/vmm"
)

// RamdiskVFS is the unexercised extension point for mounting a boot ramdisk
// as a filesystem; nothing in the core kernel subsystem implements it, but
// a board's FDT-attached driver may. Kept here, per §1's Non-goals, as a
// contract rather than an implementation.
type RamdiskVFS interface {
	Mount(image []byte) error
	Root() any
}

// Kernel holds the fully-wired instance of every core component.
type Kernel struct {
	Logger      *klog.Logger
	Syslog      *klog.Syslog
	Dispatchers []*interrupt.Dispatcher
	Tree        *fdt.Tree
	Drivers     *drivermgr.Manager
	Pool        *vmm.FramePool
	AddrSpace   *vmm.AddressSpace
	Time        *timemgt.Manager
	Sched       *sched.Scheduler
	Futex       *futex.Table
	Signals     *ksignal.Manager
	Deferred    *deferred.Queue
	Cores       *coremgt.Manager

	numCores int
}

// goroutineSpawner adapts a bare `go` statement to klog.ThreadSpawner. Syslog
// is deliberately kept outside the cooperative vCPU scheduling model (its
// drain loop blocks on a channel, not on a vCPU yield), so its thread is a
// real OS-scheduled goroutine rather than a Scheduler-managed TCB.
type goroutineSpawner struct{}

func (goroutineSpawner) SpawnSystemThread(name string, body func(ctx context.Context)) {
	go body(context.Background())
}

// Kickstart boots the kernel image against fdtBlob with numCores logical
// CPUs, wiring components in dependency order and bringing every secondary
// core online before returning.
func Kickstart(ctx context.Context, fdtBlob []byte, numCores int, minLevel klog.Level) (*Kernel, error) {
	if numCores < 1 {
		return nil, kernelerr.New("kernel", kernelerr.IncorrectValue)
	}

	// A: CPU feature validation.
	if err := cpu.ValidateFeatures(); err != nil {
		return nil, err
	}

	logger := klog.NewLogger(os.Stdout, minLevel)

	// B: one interrupt dispatcher per core, exception defaults seeded once
	// the signal manager (I) exists — seeded below, after G and I.
	dispatchers := make([]*interrupt.Dispatcher, numCores)
	for i := range dispatchers {
		dispatchers[i] = interrupt.New()
	}

	// D: parse the firmware device tree and attach matching drivers.
	tree, err := fdt.Parse(fdtBlob)
	if err != nil {
		return nil, fmt.Errorf("kernel: fdt parse: %w", err)
	}
	driverMgr := drivermgr.New(logger)
	driverMgr.AttachAll(tree)

	// E: virtual memory manager, built from the tree's memory map.
	pool := vmm.NewFramePool(tree.Available, tree.Reserved)
	addrSpace := vmm.NewAddressSpace(pool, numCores)

	// F: time manager, unbound until a board driver calls Time.AddTimer.
	timeMgr := timemgt.New()

	// G: scheduler, bootstrapped on the boot core (0).
	scheduler := sched.NewScheduler(numCores)
	scheduler.Bootstrap(0)
	timeMgr.SetCurrentThreadProvider(func() any { return scheduler.Current(0) })
	timeMgr.SetMainTickHandler(func(current any) { scheduler.TickHandler(current) })

	// H: futex table.
	futexTable := futex.NewTable(scheduler)

	// I: signal manager, wired to H's futex table so signalRaise can cancel a
	// blocked wait, then seed every dispatcher's exception defaults now that
	// a SignalRaiser exists.
	signals := ksignal.NewManager(scheduler)
	signals.SetFutexTable(futexTable)
	recordFault := func(thread any, line int) {
		logger.Warnf("interrupt", "fault on line %d, thread=%v", line, thread)
	}
	for _, d := range dispatchers {
		d.SeedExceptionDefaults(signals, recordFault)
	}

	// J: deferred-work executor, drained by a dedicated highest-band thread
	// on the boot core.
	deferredQueue := deferred.NewQueue(scheduler)
	if err := deferredQueue.Start(0); err != nil {
		return nil, err
	}

	// K: async syslog layered on the synchronous Logger.
	syslog := klog.NewSyslog(logger, 4096)
	syslog.Start(ctx, goroutineSpawner{})

	// L: bring every secondary core online and build the IPI manager over
	// every core's dispatcher.
	coreMgr := coremgt.NewManager(dispatchers, scheduler)
	go scheduler.RunCore(0)
	for id := 1; id < numCores; id++ {
		if err := coreMgr.ApInit(id); err != nil {
			return nil, err
		}
	}

	return &Kernel{
		Logger:      logger,
		Syslog:      syslog,
		Dispatchers: dispatchers,
		Tree:        tree,
		Drivers:     driverMgr,
		Pool:        pool,
		AddrSpace:   addrSpace,
		Time:        timeMgr,
		Sched:       scheduler,
		Futex:       futexTable,
		Signals:     signals,
		Deferred:    deferredQueue,
		Cores:       coreMgr,
		numCores:    numCores,
	}, nil
}

// panicExitStatus is the process exit status of a kernel panic, distinct from
// the status 1 cmd/kernel uses for ordinary boot and usage failures.
const panicExitStatus = 2

// Panic is kernelPanic (§7): it logs the fatal condition, sends an IPI
// (coremgt.IPILine, BroadcastExceptSelf) carrying reason to every other core,
// and halts — which in this hosted simulation means a distinguished process
// exit rather than a real HLT loop, since there is no other way to stop a Go
// process's other goroutines from making progress. interrupt.PanicLine itself
// is not raised.
func (k *Kernel) Panic(onCore int, reason string) {
	k.Logger.Panicf("kernel", "fatal: %s (core %d)", reason, onCore)
	if k.Cores != nil {
		_ = k.Cores.SendIPI(onCore, coremgt.BroadcastExceptSelf, 0, reason)
	}
	os.Exit(panicExitStatus)
}

// NumCores reports how many logical CPUs this kernel image was booted with.
func (k *Kernel) NumCores() int { return k.numCores }
