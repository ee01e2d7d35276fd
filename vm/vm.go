// Package vm wires the process-context registry (C9) to the fault
// handler (C5) and the heap/mmap syscall envelopes (C7), the entry
// points a kernel trap dispatcher or syscall layer would call.
// Grounded on original_source/kern/vm/vm.c's vm_fault and
// kern/syscall/sbrk.c/mmap.c's syscall wrappers around the address-space
// core.
package vm

import (
	"github.com/hongfeiyang/OS161-VM/addrspace"
	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/fault"
	"github.com/hongfeiyang/OS161-VM/proc"
	"github.com/hongfeiyang/OS161-VM/vfile"
)

// HandleFault resolves one hardware fault on behalf of ctx's currently
// bound address space, failing ErrBadAddress if none is bound.
func HandleFault(ctx *proc.Context, faultType fault.Type, faultVaddr uint32) error {
	as := ctx.AddrSpace()
	if as == nil {
		return errno.Wrapf("fault", errno.BadAddress)
	}
	return fault.Handle(as.Regions, as.PageTable, as.Pool(), ctx.TLB, as.ForceReadWrite(), faultType, faultVaddr)
}

// Sbrk grows or shrinks ctx's heap.
func Sbrk(ctx *proc.Context, amount int32) (uint32, error) {
	as := ctx.AddrSpace()
	if as == nil {
		return 0, errno.Wrapf("sbrk", errno.InvalidArgument)
	}
	prev, err := as.Sbrk(amount)
	if err != 0 {
		return 0, errno.Wrapf("sbrk", err)
	}
	return prev, nil
}

// Mmap maps npages pages of f starting at offset into ctx's address
// space, returning the mapping's base virtual address.
func Mmap(ctx *proc.Context, npages int, readable, writable, executable bool, f *vfile.File, offset int) (uint32, error) {
	as := ctx.AddrSpace()
	if as == nil {
		return 0, errno.Wrapf("mmap", errno.InvalidArgument)
	}
	if npages <= 0 || offset < 0 || offset%addrspace.PageSize != 0 {
		return 0, errno.Wrapf("mmap", errno.InvalidArgument)
	}
	if !f.Valid() {
		return 0, errno.Wrapf("mmap", errno.BadDescriptor)
	}
	r, err := as.AllocFileRegion(npages, readable, writable, executable, f, offset)
	if err != 0 {
		return 0, errno.Wrapf("mmap", err)
	}
	return r.VBase, nil
}

// Munmap unmaps the file-backed region based at vaddr in ctx's address
// space, eagerly releasing its frames.
func Munmap(ctx *proc.Context, vaddr uint32) error {
	as := ctx.AddrSpace()
	if as == nil {
		return errno.Wrapf("munmap", errno.InvalidArgument)
	}
	if err := as.Munmap(vaddr); err != 0 {
		return errno.Wrapf("munmap", err)
	}
	return nil
}
