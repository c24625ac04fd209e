package vmm

import (
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
)

// Flags carries the per-mapping attributes of §3's page table hierarchy.
type Flags uint8

const (
	Present Flags = 1 << iota
	Writable
	UserAccessible
	CacheDisabled
	Hardware // covers device MMIO; must not be touched by the frame allocator
	GuardPage
)

// mapping is one entry in the simulated recursive-self-map table.
type mapping struct {
	phys  uint64
	size  uint64
	flags Flags
}

// AddressSpace is the kernel's (or, in a fuller build, a process's) virtual
// address space: a VA bump arena plus the VA->PA mapping table.
type AddressSpace struct {
	lock     ksync.Spinlock
	pool     *FramePool
	mappings map[uint64]*mapping // keyed by page-aligned VA

	nextVA uint64 // bump allocator for the kernel arena
}

// kernelArenaBase is an arbitrary but stable base for the simulated kernel
// virtual address range, sitting above a notional kernel image + heap.
const kernelArenaBase = 0xFFFF_8000_0000_0000

// NewAddressSpace builds an address space backed by pool. numCores is kept
// for call-site symmetry with the structural kernel spinlocks elsewhere and
// is currently unused here, since address-space bookkeeping is not touched
// from interrupt context.
func NewAddressSpace(pool *FramePool, numCores int) *AddressSpace {
	_ = numCores
	return &AddressSpace{
		pool:     pool,
		mappings: make(map[uint64]*mapping),
		nextVA:   kernelArenaBase,
	}
}

func (as *AddressSpace) reserveVA(size uint64) uint64 {
	va := as.nextVA
	as.nextVA += alignUp(size)
	return va
}

// KernelMap maps an existing physical range into the kernel arena. Inputs
// must be page-aligned. HARDWARE mappings skip the frame allocator, per §4.E.
func (as *AddressSpace) KernelMap(physAddr, size uint64, flags Flags) (uint64, error) {
	if physAddr%PageSize != 0 || size%PageSize != 0 {
		return 0, kernelerr.New("vmm", kernelerr.IncorrectValue)
	}
	as.lock.Lock()
	defer as.lock.Unlock()
	va := as.reserveVA(size)
	as.mappings[va] = &mapping{phys: physAddr, size: size, flags: flags | Present}
	return va, nil
}

// KernelAllocate allocates fresh frames and maps them. When flags includes
// GuardPage, a leading unmapped guard page precedes the mapping (used for
// per-thread kernel stacks, per §4.E).
func (as *AddressSpace) KernelAllocate(size uint64, flags Flags) (uint64, error) {
	size = alignUp(size)
	phys, err := as.pool.AllocRange(size)
	if err != nil {
		return 0, err
	}
	as.lock.Lock()
	defer as.lock.Unlock()
	extra := uint64(0)
	if flags&GuardPage != 0 {
		extra = PageSize
	}
	va := as.reserveVA(size + extra)
	mappedVA := va + extra
	as.mappings[mappedVA] = &mapping{phys: phys, size: size, flags: flags | Present}
	return mappedVA, nil
}

// KernelUnmap tears down the mapping at va. Unmapping an unaligned or
// nonexistent range is a structural violation and panics, per §4.E's failure
// model ("structural violations... panic").
func (as *AddressSpace) KernelUnmap(va, size uint64) {
	if va%PageSize != 0 {
		panic("vmm: unmap of unaligned virtual address")
	}
	as.lock.Lock()
	m, ok := as.mappings[va]
	if !ok || m.size != size {
		as.lock.Unlock()
		panic("vmm: unmap of a range with no live mapping")
	}
	delete(as.mappings, va)
	as.lock.Unlock()
	if m.flags&Hardware == 0 {
		as.pool.Free(m.phys, m.size)
	}
}

// GetPhysAddr walks the mapping table for va, returning PHYS_ADDR_ERROR
// (surfaced as a kernelerr.PageFault) if no level is present.
func (as *AddressSpace) GetPhysAddr(va uint64) (phys uint64, flags Flags, err error) {
	as.lock.Lock()
	defer as.lock.Unlock()
	for start, m := range as.mappings {
		if va >= start && va < start+m.size && m.flags&Present != 0 {
			return m.phys + (va - start), m.flags, nil
		}
	}
	return 0, 0, kernelerr.New("vmm", kernelerr.PageFault)
}
