// Heap and file-backed mapping operations (C7), grounded on
// original_source/kern/syscall/sbrk.c and kern/vm/mmap.c.
package addrspace

import (
	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/region"
	"github.com/hongfeiyang/OS161-VM/util"
	"github.com/hongfeiyang/OS161-VM/vfile"
)

// Sbrk grows or shrinks the heap region by amount bytes (which may be
// negative) and returns the break's value before the change, mirroring
// sys_sbrk. Shrinking below the original heap base or growing up to the
// base of the region immediately above the heap (the stack, or a file
// region placed below it) both fail with ErrOutOfMemory; amount == 0 is
// a pure query of the current break.
func (as *AddrSpace) Sbrk(amount int32) (uint32, errno.Errno) {
	as.heapMu.Lock()
	defer as.heapMu.Unlock()

	heap, ok := as.Regions.FindByVBase(as.HeapStart)
	if !ok {
		return 0, errno.InvalidArgument
	}
	if amount == 0 {
		return heap.VTop, 0
	}

	oldTop := heap.VTop
	var newTop uint32
	if amount > 0 {
		newTop = oldTop + uint32(util.Roundup(int(amount), PageSize))
	} else {
		shrink := uint32(util.Roundup(int(-amount), PageSize))
		if shrink > oldTop-heap.VBase {
			return 0, errno.OutOfMemory
		}
		newTop = oldTop - shrink
	}
	if newTop < heap.VBase {
		return 0, errno.OutOfMemory
	}

	var above *region.Region
	as.Regions.Iterate(func(o *region.Region) {
		if o.VBase > heap.VBase && (above == nil || o.VBase < above.VBase) {
			above = o
		}
	})
	if above != nil && newTop >= above.VBase {
		return 0, errno.OutOfMemory
	}

	heap.VTop = newTop
	heap.NPages = int(newTop-heap.VBase) / PageSize
	return oldTop, 0
}

// AllocFileRegion carves a File-backed region of npages pages out of the
// gap between the heap and the stack, placing it flush against the
// stack's base (the highest legal address in the gap) exactly as mmap
// lays out new mappings below USERSTACK. It fails with ErrOutOfMemory if
// the gap is too small.
func (as *AddrSpace) AllocFileRegion(npages int, readable, writable, executable bool, f *vfile.File, offset int) (*region.Region, errno.Errno) {
	as.heapMu.Lock()
	defer as.heapMu.Unlock()

	stack, ok := as.Regions.FindByVBase(as.StackStart)
	if !ok {
		return nil, errno.InvalidArgument
	}
	pred, ok := as.Regions.Predecessor(stack)
	gapBase := uint32(0)
	if ok {
		gapBase = pred.VTop
	}

	size := uint32(npages) * PageSize
	if stack.VBase < gapBase || stack.VBase-gapBase < size {
		return nil, errno.OutOfMemory
	}

	top := stack.VBase
	base := top - size
	r := &region.Region{
		VBase: base, VTop: top, NPages: npages,
		Readable: readable, Writable: writable, Executable: executable,
		Type: region.File, File: f, Offset: offset,
	}
	as.Regions.Insert(r)
	if err := as.Regions.SortAndCheckOverlap(); err != 0 {
		as.Regions.Remove(r)
		return nil, err
	}
	return r, 0
}

// Munmap removes the File region based at vbase and releases every PTE
// in its [VBase, VTop), eagerly freeing frames rather than waiting for
// address-space teardown (REDESIGN: the original leaks mmap'd PTEs until
// process exit; this core reclaims them at unmap time instead). For a
// writable region backed by a file, each mapped page is first written
// back to the file at its offset; the region is removed even if a
// write-back fails, and the first such error is returned.
func (as *AddrSpace) Munmap(vbase uint32) errno.Errno {
	as.heapMu.Lock()
	defer as.heapMu.Unlock()

	r, ok := as.Regions.FindByVBase(vbase)
	if !ok || r.Type != region.File {
		return errno.InvalidArgument
	}

	var werr errno.Errno
	for v := r.VBase; v < r.VTop; v += PageSize {
		if p := as.PageTable.RemoveEntry(v); p != nil {
			if r.File != nil && r.Writable {
				var page [vfile.PageSize]byte
				copy(page[:], p.Frame().Bytes())
				if err := r.File.WritePage(r.Offset+int(v-r.VBase), page); err != 0 && werr == 0 {
					werr = err
				}
			}
			p.DecRef(as.pool)
		}
	}
	as.Regions.Remove(r)
	return werr
}
