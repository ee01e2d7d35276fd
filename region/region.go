// Package region implements the virtual memory region list (C3): an
// ordered, doubly linked set of non-overlapping virtual ranges with
// permission bits and a type tag, grounded on
// original_source/kern/include/addrspace.h's struct region/Regions and
// kern/vm/addrspace.c's as_define_region.
package region

import (
	"sort"
	"sync"

	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/util"
	"github.com/hongfeiyang/OS161-VM/vfile"
)

const PageSize = 1 << 12

// Type tags the purpose of a region, mirroring UNNAMED_REGION/HEAP_REGION/
// STACK_REGION/FILE_REGION.
type Type int

const (
	Unnamed Type = iota
	Heap
	Stack
	File
)

func (t Type) String() string {
	switch t {
	case Unnamed:
		return "unnamed"
	case Heap:
		return "heap"
	case Stack:
		return "stack"
	case File:
		return "file"
	default:
		return "unknown"
	}
}

// Region is one contiguous, page-aligned virtual range.
type Region struct {
	VBase, VTop                    uint32
	NPages                         int
	Readable, Writable, Executable bool
	Type                           Type

	// File and Offset are meaningful only when Type == File.
	File   *vfile.File
	Offset int

	prev, next *Region
}

// Contains reports whether vaddr falls in this region's half-open range.
func (r *Region) Contains(vaddr uint32) bool {
	return vaddr >= r.VBase && vaddr < r.VTop
}

// New builds a page-aligned region of type Unnamed covering [vaddr,
// vaddr+size), rounding the base down and the size up to page
// granularity exactly as as_define_region does.
func New(vaddr, size uint32, readable, writable, executable bool) *Region {
	top := vaddr + size
	base := util.Rounddown(int(vaddr), PageSize)
	alignedTop := util.Roundup(int(top), PageSize)
	npages := (alignedTop - base) / PageSize
	return &Region{
		VBase:      uint32(base),
		VTop:       uint32(alignedTop),
		NPages:     npages,
		Readable:   readable,
		Writable:   writable,
		Executable: executable,
		Type:       Unnamed,
	}
}

// clone deep-copies a single region (file handles are shared, not
// duplicated — a File region's fd survives fork the same way an open
// file descriptor does).
func (r *Region) clone() *Region {
	c := *r
	c.prev, c.next = nil, nil
	return &c
}

// Equal compares the five per-region fields the round-trip-copy test
// cares about.
func (r *Region) Equal(o *Region) bool {
	return r.VBase == o.VBase && r.NPages == o.NPages && r.VTop == o.VTop &&
		r.Readable == o.Readable && r.Writable == o.Writable
}

// List is the doubly linked region list belonging to one address space.
type List struct {
	mu         sync.Mutex
	head, tail *Region
}

// Insert appends r at the tail.
func (l *List) Insert(r *Region) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(r)
}

func (l *List) insertLocked(r *Region) {
	r.prev, r.next = l.tail, nil
	if l.tail != nil {
		l.tail.next = r
	} else {
		l.head = r
	}
	l.tail = r
}

// Remove unlinks r from the list. r must currently be a member.
func (l *List) Remove(r *Region) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.prev != nil {
		r.prev.next = r.next
	} else {
		l.head = r.next
	}
	if r.next != nil {
		r.next.prev = r.prev
	} else {
		l.tail = r.prev
	}
	r.prev, r.next = nil, nil
}

// Find returns the region containing vaddr, if any.
func (l *List) Find(vaddr uint32) (*Region, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for r := l.head; r != nil; r = r.next {
		if r.Contains(vaddr) {
			return r, true
		}
	}
	return nil, false
}

// FindByVBase returns the region whose base exactly matches vbase.
func (l *List) FindByVBase(vbase uint32) (*Region, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for r := l.head; r != nil; r = r.next {
		if r.VBase == vbase {
			return r, true
		}
	}
	return nil, false
}

// Iterate calls f for every region in ascending list order.
func (l *List) Iterate(f func(*Region)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for r := l.head; r != nil; r = r.next {
		f(r)
	}
}

// Last returns the tail region, if the list is non-empty.
func (l *List) Last() (*Region, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tail == nil {
		return nil, false
	}
	return l.tail, true
}

// Copy deep-copies every node, preserving order.
func (l *List) Copy() *List {
	l.mu.Lock()
	defer l.mu.Unlock()
	nl := &List{}
	for r := l.head; r != nil; r = r.next {
		nl.insertLocked(r.clone())
	}
	return nl
}

// SortAndCheckOverlap sorts the list in place by VBase and asserts no two
// regions overlap, the invariant enforced once at the end of
// address-space setup (define_stack in the original).
func (l *List) SortAndCheckOverlap() errno.Errno {
	l.mu.Lock()
	defer l.mu.Unlock()

	var nodes []*Region
	for r := l.head; r != nil; r = r.next {
		nodes = append(nodes, r)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].VBase < nodes[j].VBase })

	l.head, l.tail = nil, nil
	for _, r := range nodes {
		l.insertLocked(r)
	}

	for i := 1; i < len(nodes); i++ {
		if nodes[i].VBase < nodes[i-1].VTop {
			panic("region: overlapping regions after sort")
		}
	}
	return 0
}

// Predecessor returns the region immediately below r in vbase order, if
// any — used by AllocFileRegion (C7) to find the gap between the heap
// and the stack.
func (l *List) Predecessor(r *Region) (*Region, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if r.prev == nil {
		return nil, false
	}
	return r.prev, true
}
