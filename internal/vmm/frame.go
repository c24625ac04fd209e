// Package vmm implements the virtual memory manager of §4.E: a physical
// frame pool built from the firmware memory map, and a kernel address space
// with map/allocate/unmap operations over a recursive-self-map-style table.
//
// A hosted Go process has no page tables or physical RAM of its own to walk;
// this package tracks the *bookkeeping* a real paging layer would maintain
// (frame ownership, VA->PA mappings, flags) so every invariant in §8 holds,
// without backing the mappings with real bytes — actual heap storage is
// explicitly out of scope (§1).
package vmm

import (
	"sort"

	"github.com/nyxkernel/nyx/internal/fdt"
	"github.com/nyxkernel/nyx/internal/kernelerr"
	"github.com/nyxkernel/nyx/internal/ksync"
)

// PageSize is the frame granularity used throughout the VMM.
const PageSize = 4096

// extent is a half-open physical range [Base, Limit).
type extent struct {
	Base, Limit uint64
}

func (e extent) size() uint64 { return e.Limit - e.Base }

// FramePool is the ordered set of free physical extents of §3, constructed
// from the firmware memory map minus reserved regions.
type FramePool struct {
	lock ksync.Spinlock
	free []extent // kept sorted and coalesced
}

// NewFramePool builds a pool from the FDT's available memory ranges, carving
// out the reserved ranges (kernel image, page-table frames, ramdisk, FDT
// reservation block) up front.
func NewFramePool(available []fdt.MemoryRange, reserved []fdt.MemoryRange) *FramePool {
	p := &FramePool{}
	for _, r := range available {
		p.free = append(p.free, extent{Base: alignUp(r.Address), Limit: alignDown(r.Address + r.Size)})
	}
	sortExtents(p.free)
	for _, r := range reserved {
		p.reserveLocked(extent{Base: alignDown(r.Address), Limit: alignUp(r.Address + r.Size)})
	}
	return p
}

func alignUp(v uint64) uint64   { return (v + PageSize - 1) &^ (PageSize - 1) }
func alignDown(v uint64) uint64 { return v &^ (PageSize - 1) }

func sortExtents(es []extent) {
	sort.Slice(es, func(i, j int) bool { return es[i].Base < es[j].Base })
}

// reserveLocked removes r from the free set; callers must hold p.lock or call
// it only during construction (single-threaded).
func (p *FramePool) reserveLocked(r extent) {
	var out []extent
	for _, e := range p.free {
		if r.Limit <= e.Base || r.Base >= e.Limit {
			out = append(out, e)
			continue
		}
		if r.Base > e.Base {
			out = append(out, extent{e.Base, r.Base})
		}
		if r.Limit < e.Limit {
			out = append(out, extent{r.Limit, e.Limit})
		}
	}
	p.free = out
}

// AllocRange first-fits a contiguous run of size bytes (rounded up to a page)
// and returns its physical base address.
func (p *FramePool) AllocRange(size uint64) (uint64, error) {
	size = alignUp(size)
	p.lock.Lock()
	defer p.lock.Unlock()
	for i, e := range p.free {
		if e.size() >= size {
			base := e.Base
			if e.size() == size {
				p.free = append(p.free[:i], p.free[i+1:]...)
			} else {
				p.free[i] = extent{e.Base + size, e.Limit}
			}
			return base, nil
		}
	}
	return 0, kernelerr.New("vmm", kernelerr.NoMoreMemory)
}

// Free returns [base, base+size) to the pool, coalescing with adjacent
// extents so the round-trip law in §8 holds exactly.
func (p *FramePool) Free(base, size uint64) {
	size = alignUp(size)
	p.lock.Lock()
	defer p.lock.Unlock()
	p.free = append(p.free, extent{base, base + size})
	sortExtents(p.free)

	merged := p.free[:0]
	for _, e := range p.free {
		if n := len(merged); n > 0 && merged[n-1].Limit == e.Base {
			merged[n-1].Limit = e.Limit
			continue
		}
		merged = append(merged, e)
	}
	p.free = merged
}

// FreeBytes sums the pool's free extents, for diagnostics and tests.
func (p *FramePool) FreeBytes() uint64 {
	p.lock.Lock()
	defer p.lock.Unlock()
	var total uint64
	for _, e := range p.free {
		total += e.size()
	}
	return total
}
