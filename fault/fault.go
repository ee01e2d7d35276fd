// Package fault implements the page-fault handler (C5): the policy tree
// that turns a (fault type, faulting address) pair into an allocation,
// a COW split, or a permission error, and finishes by loading the
// software TLB. Grounded on original_source/kern/vm/vm.c's vm_fault.
package fault

import (
	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/klog"
	"github.com/hongfeiyang/OS161-VM/pte"
	"github.com/hongfeiyang/OS161-VM/region"
)

// vpnOf masks a virtual address down to its page number, i.e. clears
// the low OffsetBits bits.
func vpnOf(vaddr uint32) uint32 {
	return vaddr &^ pteOffsetMask
}

// Type is the hardware trap kind delivered to the handler.
type Type int

const (
	Read Type = iota
	Write
	ReadOnly
)

func (t Type) String() string {
	switch t {
	case Read:
		return "read"
	case Write:
		return "write"
	case ReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

func (t Type) valid() bool {
	return t == Read || t == Write || t == ReadOnly
}

// regionFinder and pteTable are satisfied by *region.List and
// *pagetable.PageTable respectively, kept narrow here so this package
// depends only on region and pte and never on addrspace (addrspace is
// the caller, not a collaborator, of fault handling in this layering).
type regionFinder interface {
	Find(vaddr uint32) (*region.Region, bool)
}

type pteTable interface {
	Lookup(vaddr uint32) (*pte.PTE, bool)
	AddEntry(vaddr uint32, p *pte.PTE)
}

// TLBLoader is the narrow surface Handle needs from a TLB.
type TLBLoader interface {
	Load(vpn, frm uint32, writable, forceReadWrite bool)
}

// Pool supplies frames for newly faulted pages.
type Pool = pte.Pool

// Handle resolves one hardware fault against regions, table and pool,
// loading the result into tlbw. forceReadWrite mirrors the owning
// address space's ELF-load flag.
func Handle(regions regionFinder, table pteTable, pool *Pool, tlbw TLBLoader, forceReadWrite bool, faultType Type, faultVaddr uint32) error {
	if !faultType.valid() {
		return errno.Wrapf("fault", errno.InvalidArgument)
	}

	r, ok := regions.Find(faultVaddr)
	if !ok {
		klog.Warn("fault: address outside every region", "vaddr", faultVaddr)
		return errno.Wrapf("fault", errno.BadAddress)
	}

	switch faultType {
	case Read:
		if !r.Readable {
			return errno.Wrapf("fault", errno.BadAddress)
		}
	case Write, ReadOnly:
		if !r.Writable && !forceReadWrite {
			return errno.Wrapf("fault", errno.BadAddress)
		}
	}

	vpn := vpnOf(faultVaddr)

	if existing, ok := table.Lookup(faultVaddr); ok {
		p := existing
		if faultType == ReadOnly {
			np, err := existing.CowCopy(pool)
			if err != 0 {
				return errno.Wrapf("fault", err)
			}
			if np != existing {
				table.AddEntry(faultVaddr, np)
			}
			p = np
		}
		tlbw.Load(vpn, frameNumber(p), p.Writable() && r.Writable, forceReadWrite)
		return nil
	}

	p, err := pte.New(pool)
	if err != 0 {
		return errno.Wrapf("fault", err)
	}

	switch r.Type {
	case region.Unnamed, region.Heap:
		p.Shared = true
	case region.File:
		p.Shared = true
		if r.File != nil {
			off := r.Offset + int(vpn-r.VBase)
			page, ferr := r.File.ReadPage(off)
			if ferr != 0 {
				return errno.Wrapf("fault", ferr)
			}
			copy(p.Frame().Bytes(), page[:])
		}
	case region.Stack:
		p.Shared = false
	default:
		return errno.Wrapf("fault", errno.NotImplemented)
	}

	table.AddEntry(faultVaddr, p)
	tlbw.Load(vpn, frameNumber(p), p.Writable() && r.Writable, forceReadWrite)
	klog.Debug("fault: resolved", "vaddr", faultVaddr, "type", faultType.String(), "region", r.Type.String())
	return nil
}

const pteOffsetMask = uint32(1<<12 - 1)

// frameNumber reports the frame backing p's page as the TLB's notion of
// a physical frame number.
func frameNumber(p *pte.PTE) uint32 {
	return uint32(p.Frame().Index())
}
