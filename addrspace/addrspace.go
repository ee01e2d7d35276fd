// Package addrspace implements the address-space descriptor (C4): a
// region list bound to a page table, plus the force-read-write ELF-load
// flag and cached heap/stack bounds, grounded on
// original_source/kern/vm/addrspace.c's as_create/as_copy/as_destroy/
// as_define_region/as_define_stack.
package addrspace

import (
	"sync"
	"sync/atomic"

	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/klog"
	"github.com/hongfeiyang/OS161-VM/pagetable"
	"github.com/hongfeiyang/OS161-VM/pte"
	"github.com/hongfeiyang/OS161-VM/region"
	"github.com/hongfeiyang/OS161-VM/tlb"
	"github.com/hongfeiyang/OS161-VM/util"
)

const (
	PageSize = region.PageSize

	// UserStack is the highest user-addressable page, mirroring
	// OS/161's MIPS USERSPACETOP/USERSTACK.
	UserStack = 0x80000000

	// StackPages is the fixed stack size, YANG_VM_STACKPAGES in the
	// original source.
	StackPages = 18
)

// AddrSpace binds a region list to a page table.
type AddrSpace struct {
	Regions   *region.List
	PageTable *pagetable.PageTable

	forceReadWrite atomic.Bool

	HeapStart  uint32
	StackStart uint32

	// heapMu serializes Sbrk/AllocFileRegion/Munmap, which mutate a
	// region's bounds in place — one address space's heap syscalls run
	// one at a time, but independent address spaces never contend on
	// each other's mutex.
	heapMu sync.Mutex

	pool *pte.Pool
}

// New creates an empty address space whose page table allocates frames
// from pool.
func New(pool *pte.Pool) *AddrSpace {
	return &AddrSpace{
		Regions:   &region.List{},
		PageTable: pagetable.New(pool),
		pool:      pool,
	}
}

// Copy creates a new address space that is a COW clone of src: the
// region list is deep-copied and the page table is cloned entry-by-entry
// (shareable entries are reference-counted and marked read-only; private
// ones, like stack pages, are deep-copied).
func (as *AddrSpace) Copy() (*AddrSpace, errno.Errno) {
	npt, err := as.PageTable.Copy()
	if err != 0 {
		klog.Warn("addrspace: copy failed", "err", err)
		return nil, err
	}
	klog.Debug("addrspace: copy", "heapStart", as.HeapStart, "stackStart", as.StackStart)
	nas := &AddrSpace{
		Regions:    as.Regions.Copy(),
		PageTable:  npt,
		HeapStart:  as.HeapStart,
		StackStart: as.StackStart,
		pool:       as.pool,
	}
	nas.forceReadWrite.Store(as.forceReadWrite.Load())
	return nas, 0
}

// Pool returns the frame pool this address space's page table allocates
// from, the collaborator the fault handler needs alongside Regions and
// PageTable.
func (as *AddrSpace) Pool() *pte.Pool {
	return as.pool
}

// Destroy tears down the page table, dec-refing (and so possibly
// freeing) every frame it owns. Region nodes need no explicit teardown
// of their own — they never own frames, only describe them.
func (as *AddrSpace) Destroy() {
	klog.Debug("addrspace: destroy", "heapStart", as.HeapStart, "stackStart", as.StackStart)
	as.PageTable.Destroy()
}

// Activate flushes t, making as (conceptually) the address space the
// hardware TLB now reflects. There are no ASIDs in this model, so every
// switch invalidates everything.
func (as *AddrSpace) Activate(t *tlb.TLB) {
	t.FlushAll()
}

// Deactivate also flushes t, so that a destroyed address space's
// mappings cannot linger in the TLB.
func (as *AddrSpace) Deactivate(t *tlb.TLB) {
	t.FlushAll()
}

// ForceReadWrite reports whether ELF-load mode is active, which makes
// read-only regions writable for the duration of loading.
func (as *AddrSpace) ForceReadWrite() bool {
	return as.forceReadWrite.Load()
}

// PrepareLoad asserts force-read-write for the duration of an
// ELF-equivalent load.
func (as *AddrSpace) PrepareLoad() {
	as.forceReadWrite.Store(true)
}

// CompleteLoad re-enforces each region's declared permissions.
func (as *AddrSpace) CompleteLoad() {
	as.forceReadWrite.Store(false)
}

// DefineRegion sets up an Unnamed region of sz bytes starting at vaddr,
// rejecting it with ErrInvalidArgument if it overlaps an existing
// region, exactly as as_define_region does while the ELF segments are
// still being laid out (before DefineStack sorts everything).
func (as *AddrSpace) DefineRegion(vaddr, sz uint32, readable, writable, executable bool) (*region.Region, errno.Errno) {
	r := region.New(vaddr, sz, readable, writable, executable)

	var overlap bool
	as.Regions.Iterate(func(o *region.Region) {
		if util.Max(int(o.VBase), int(r.VBase)) < util.Min(int(o.VTop), int(r.VTop)) {
			overlap = true
		}
	})
	if overlap {
		return nil, errno.InvalidArgument
	}

	as.Regions.Insert(r)
	return r, 0
}

// DefineStack writes the initial user stack pointer, allocates the
// one-page heap region immediately above the topmost existing region and
// the fixed-size stack region ending at UserStack, sorts the region
// list, asserts no overlap, and caches HeapStart/StackStart. It must run
// after every ELF-equivalent region has been defined.
func (as *AddrSpace) DefineStack() (uint32, errno.Errno) {
	var heapBase uint32
	as.Regions.Iterate(func(r *region.Region) {
		if r.VTop > heapBase {
			heapBase = r.VTop
		}
	})

	heap := &region.Region{
		VBase: heapBase, VTop: heapBase + PageSize, NPages: 1,
		Readable: true, Writable: true, Type: region.Heap,
	}
	as.Regions.Insert(heap)

	stackBase := uint32(UserStack - StackPages*PageSize)
	stack := &region.Region{
		VBase: stackBase, VTop: uint32(UserStack), NPages: StackPages,
		Readable: true, Writable: true, Type: region.Stack,
	}
	as.Regions.Insert(stack)

	if err := as.Regions.SortAndCheckOverlap(); err != 0 {
		return 0, err
	}

	as.HeapStart = heapBase
	as.StackStart = stackBase
	return uint32(UserStack), 0
}
