// Package pagetable implements the two-level hierarchical page table
// (C2), grounded on original_source/kern/vm/page_table.c and
// kern/include/addrspace.h's PageTable/L2Table/PTE layout: an L1_BITS=11
// array of pointers to L2_BITS=9 leaf tables, OFFSET_BITS=12 page offset,
// covering a 32-bit virtual address space.
package pagetable

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/klog"
	"github.com/hongfeiyang/OS161-VM/pte"
)

const (
	L1Bits     = 11
	L2Bits     = 9
	OffsetBits = 12

	l1Size = 1 << L1Bits
	l2Size = 1 << L2Bits
)

// l1Index and l2Index split a virtual address the way L1_INDEX/L2_INDEX
// do in addrspace.h.
func l1Index(vaddr uint32) int { return int(vaddr >> (L2Bits + OffsetBits)) }
func l2Index(vaddr uint32) int { return int((vaddr >> OffsetBits) & (l2Size - 1)) }

// l2Table is the lower tier: a dense array of PTE slots plus a live
// count, created lazily and freed once empty.
type l2Table struct {
	entries [l2Size]*pte.PTE
	count   int
}

// PageTable is the upper tier plus its single table-wide lock. All
// lookups, insertions and removals serialize on mu; per-entry locks
// (inside *pte.PTE) govern PTE contents once a slot is found.
type PageTable struct {
	mu   sync.Mutex
	l1   [l1Size]*l2Table
	pool *pte.Pool
}

// New creates an empty page table backed by pool for frame allocation.
func New(pool *pte.Pool) *PageTable {
	return &PageTable{pool: pool}
}

// Lookup returns the PTE mapped at vaddr, if any.
func (t *PageTable) Lookup(vaddr uint32) (*pte.PTE, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l2 := t.l1[l1Index(vaddr)]
	if l2 == nil {
		return nil, false
	}
	p := l2.entries[l2Index(vaddr)]
	return p, p != nil
}

// AddEntry installs p at vaddr, allocating the L2 table on first use. An
// existing non-nil slot is overwritten without touching its ref count —
// callers use this to atomically swap a shared PTE for a freshly split
// one, having already accounted for the old reference through their own
// call path (see pte.PTE.CowCopy).
func (t *PageTable) AddEntry(vaddr uint32, p *pte.PTE) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i1, i2 := l1Index(vaddr), l2Index(vaddr)
	l2 := t.l1[i1]
	if l2 == nil {
		l2 = &l2Table{}
		t.l1[i1] = l2
	}
	if l2.entries[i2] == nil {
		l2.count++
	}
	l2.entries[i2] = p
}

// RemoveEntry unlinks and returns the PTE at vaddr, freeing the L2 table
// if it becomes empty. The caller owns the returned PTE's reference and
// must DecRef it.
func (t *PageTable) RemoveEntry(vaddr uint32) *pte.PTE {
	t.mu.Lock()
	defer t.mu.Unlock()
	i1, i2 := l1Index(vaddr), l2Index(vaddr)
	l2 := t.l1[i1]
	if l2 == nil {
		return nil
	}
	p := l2.entries[i2]
	if p == nil {
		return nil
	}
	l2.entries[i2] = nil
	l2.count--
	if l2.count == 0 {
		t.l1[i1] = nil
	}
	return p
}

// Copy clones the table for fork. It holds the source table's lock for
// the entire walk so that a concurrent fault in the source cannot split
// a shared PTE mid-copy while the child ends up with the now-stale
// pointer; a single PTE lock is taken only for the duration of one
// slot's IncRef or deep Copy.
func (t *PageTable) Copy() (*PageTable, errno.Errno) {
	nt := New(t.pool)

	t.mu.Lock()
	defer t.mu.Unlock()

	for i1, l2 := range t.l1 {
		if l2 == nil {
			continue
		}
		for i2, p := range l2.entries {
			if p == nil {
				continue
			}
			vaddr := uint32(i1)<<(L2Bits+OffsetBits) | uint32(i2)<<OffsetBits
			var np *pte.PTE
			var err errno.Errno
			if p.Shared {
				p.IncRef()
				np = p
			} else {
				np, err = p.Copy(t.pool)
			}
			if err != 0 {
				klog.Warn("pagetable: copy failed, unwinding", "err", err)
				nt.destroyLocked()
				return nil, err
			}
			nt.addEntryLocked(vaddr, np)
		}
	}
	return nt, 0
}

// addEntryLocked is AddEntry without taking nt's lock, used while
// building a brand-new table that no other goroutine can yet observe.
func (t *PageTable) addEntryLocked(vaddr uint32, p *pte.PTE) {
	i1, i2 := l1Index(vaddr), l2Index(vaddr)
	l2 := t.l1[i1]
	if l2 == nil {
		l2 = &l2Table{}
		t.l1[i1] = l2
	}
	if l2.entries[i2] == nil {
		l2.count++
	}
	l2.entries[i2] = p
}

// Destroy releases every live PTE (dec-refing, which frees frames whose
// last sharer just dropped out) and frees the L2 tables.
func (t *PageTable) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	klog.Debug("pagetable: destroy")
	t.destroyLocked()
}

func (t *PageTable) destroyLocked() {
	for i1, l2 := range t.l1 {
		if l2 == nil {
			continue
		}
		for _, p := range l2.entries {
			if p != nil {
				p.DecRef(t.pool)
			}
		}
		t.l1[i1] = nil
	}
}
