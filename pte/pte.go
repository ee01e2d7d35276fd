// Package pte implements the page-table entry (C1): an owning handle on
// one physical frame with a reference count and its own lock, grounded on
// original_source/kern/vm/page_table.c's PTE/new_pte/pte_copy_on_write
// family and on the teacher's pattern of mutex-guarded, pointer-shared
// kernel structs (mem.Physmem_t, vm.Vm_t).
package pte

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/errno"
	"github.com/hongfeiyang/OS161-VM/frame"
)

// PTE owns one physical frame. It is always reached through a pointer;
// multiple page-table slots may hold the same pointer, which is how
// sharing (and COW) is expressed — never by two PTEs pointing at one
// frame.
type PTE struct {
	mu       sync.Mutex
	frame    *frame.Frame
	writable bool
	// Shared marks the entry eligible for COW sharing across fork. True
	// for unnamed/heap/file mappings, false for stack.
	Shared   bool
	refCount int
}

// Pool supplies the physical frames PTEs allocate from.
type Pool = frame.Pool

// New allocates one zero-filled frame and wraps it in a fresh PTE with
// refCount 1.
func New(pool *Pool) (*PTE, errno.Errno) {
	f, err := pool.Alloc()
	if err != 0 {
		return nil, err
	}
	return &PTE{frame: f, writable: true, refCount: 1}, 0
}

// Frame returns the physical frame currently owned by the PTE. Frame,
// Writable and RefCount each take the PTE's lock on their own, so
// separate calls do not form one consistent snapshot.
func (p *PTE) Frame() *frame.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Writable reports whether writes through this PTE are currently
// permitted without trapping.
func (p *PTE) Writable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writable
}

// RefCount returns the number of page-table slots currently referencing
// this PTE.
func (p *PTE) RefCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refCount
}

// IncRef bumps the reference count and clears the writable bit, the point
// at which the page becomes read-only in every sharer. Precondition:
// refCount >= 1, i.e. the PTE is still live.
func (p *PTE) IncRef() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.refCount < 1 {
		panic("pte: IncRef on dead entry")
	}
	p.refCount++
	p.writable = false
}

// DecRef drops one reference. If other references remain it simply
// decrements; otherwise it tears the PTE down. pool must be the same pool
// the PTE's frame was allocated from.
func (p *PTE) DecRef(pool *Pool) {
	p.mu.Lock()
	if p.refCount < 1 {
		p.mu.Unlock()
		panic("pte: DecRef on dead entry")
	}
	if p.refCount > 1 {
		p.refCount--
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	p.destroy(pool)
}

// destroy zero-fills the page, returns the frame to pool, and leaves the
// PTE unusable. Precondition: refCount == 1 — asserted, since any other
// value means a caller violated the owning contract.
func (p *PTE) destroy(pool *Pool) {
	p.mu.Lock()
	if p.refCount != 1 {
		p.mu.Unlock()
		panic("pte: destroy with refCount != 1")
	}
	f := p.frame
	f.Zero()
	p.frame = nil
	p.refCount = 0
	p.mu.Unlock()
	pool.Free(f)
}

// Copy deep-copies the PTE: a new frame is allocated, the source page's
// bytes are copied into it, and the new PTE inherits the source's
// writable bit. The source is left untouched (no ref-count change).
func (p *PTE) Copy(pool *Pool) (*PTE, errno.Errno) {
	p.mu.Lock()
	defer p.mu.Unlock()
	nf, err := pool.Alloc()
	if err != 0 {
		return nil, err
	}
	copy(nf.Bytes(), p.frame.Bytes())
	return &PTE{frame: nf, writable: p.writable, refCount: 1}, 0
}

// CowCopy resolves a write fault against a possibly-shared PTE. If this
// is the only sharer, the fast path simply flips the writable bit and
// returns the same PTE. Otherwise it allocates and populates a private
// copy, marks it writable, and drops one reference from the source
// (which must remain live afterward — it is still reachable from every
// other sharer's slot).
func (p *PTE) CowCopy(pool *Pool) (*PTE, errno.Errno) {
	p.mu.Lock()
	if p.refCount == 1 {
		p.writable = true
		p.mu.Unlock()
		return p, 0
	}

	nf, err := pool.Alloc()
	if err != 0 {
		p.mu.Unlock()
		return nil, err
	}
	copy(nf.Bytes(), p.frame.Bytes())
	p.refCount--
	if p.refCount < 1 {
		p.mu.Unlock()
		panic("pte: cow split left refCount < 1")
	}
	p.mu.Unlock()

	return &PTE{frame: nf, writable: true, refCount: 1}, 0
}
