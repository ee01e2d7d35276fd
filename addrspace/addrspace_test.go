package addrspace

import (
	"testing"

	"github.com/hongfeiyang/OS161-VM/frame"
	"github.com/hongfeiyang/OS161-VM/pte"
	"github.com/hongfeiyang/OS161-VM/region"
	"github.com/hongfeiyang/OS161-VM/tlb"
)

func TestDefineRegionRejectsOverlap(t *testing.T) {
	pool := frame.NewPool(64)
	as := New(pool)
	if _, err := as.DefineRegion(0x00400000, PageSize, true, true, false); err != 0 {
		t.Fatalf("first DefineRegion failed: %v", err)
	}
	if _, err := as.DefineRegion(0x00400000, PageSize, true, true, false); err == 0 {
		t.Fatalf("expected overlap rejection")
	}
}

func TestDefineStackLaysOutHeapAndStack(t *testing.T) {
	pool := frame.NewPool(64)
	as := New(pool)
	as.DefineRegion(0x00400000, PageSize, true, true, true)

	sp, err := as.DefineStack()
	if err != 0 {
		t.Fatalf("DefineStack failed: %v", err)
	}
	if sp != UserStack {
		t.Fatalf("stack pointer = %#x, want %#x", sp, UserStack)
	}
	if as.HeapStart != 0x00401000 {
		t.Fatalf("heapStart = %#x, want %#x", as.HeapStart, 0x00401000)
	}
	if as.StackStart != UserStack-StackPages*PageSize {
		t.Fatalf("stackStart = %#x, want %#x", as.StackStart, UserStack-StackPages*PageSize)
	}
}

func TestCopySharesRegionCounts(t *testing.T) {
	pool := frame.NewPool(64)
	as := New(pool)
	as.DefineRegion(0x00400000, PageSize, true, true, true)
	as.DefineStack()

	p, _ := pte.New(pool)
	p.Shared = true
	as.PageTable.AddEntry(as.HeapStart, p)

	child, err := as.Copy()
	if err != 0 {
		t.Fatalf("Copy failed: %v", err)
	}
	if p.RefCount() != 2 {
		t.Fatalf("refCount = %d, want 2 after Copy", p.RefCount())
	}
	if cp, ok := child.PageTable.Lookup(as.HeapStart); !ok || cp != p {
		t.Fatalf("child does not share the parent's heap PTE")
	}
}

func TestActivateFlushesTLB(t *testing.T) {
	pool := frame.NewPool(4)
	as := New(pool)
	tl := tlb.New()
	tl.Load(0x1000, 1, true, false)
	as.Activate(tl)
	if tl.Count() != 0 {
		t.Fatalf("Activate did not flush the TLB")
	}
}

func TestSbrkGrowsAndRejectsOutOfMemory(t *testing.T) {
	pool := frame.NewPool(64)
	as := New(pool)
	as.DefineStack()

	prev, err := as.Sbrk(PageSize)
	if err != 0 {
		t.Fatalf("Sbrk growth failed: %v", err)
	}
	if prev != as.HeapStart+PageSize {
		t.Fatalf("Sbrk returned unexpected previous break: %#x", prev)
	}

	stack, _ := as.Regions.FindByVBase(as.StackStart)
	huge := int32(stack.VBase - as.HeapStart)
	if _, err := as.Sbrk(huge); err == 0 {
		t.Fatalf("expected OutOfMemory growing into the stack")
	}
}

func TestAllocFileRegionPlacesFlushAgainstStack(t *testing.T) {
	pool := frame.NewPool(64)
	as := New(pool)
	as.DefineStack()

	r, err := as.AllocFileRegion(2, true, true, false, nil, 0)
	if err != 0 {
		t.Fatalf("AllocFileRegion failed: %v", err)
	}
	if r.VTop != as.StackStart {
		t.Fatalf("file region top = %#x, want flush against stack base %#x", r.VTop, as.StackStart)
	}
	if r.Type != region.File {
		t.Fatalf("wrong region type: %v", r.Type)
	}
}

func TestMunmapReleasesPTEs(t *testing.T) {
	pool := frame.NewPool(64)
	as := New(pool)
	as.DefineStack()

	r, _ := as.AllocFileRegion(1, true, true, false, nil, 0)
	p, _ := pte.New(pool)
	as.PageTable.AddEntry(r.VBase, p)

	before := pool.Available()
	if err := as.Munmap(r.VBase); err != 0 {
		t.Fatalf("Munmap failed: %v", err)
	}
	if pool.Available() != before+1 {
		t.Fatalf("Munmap did not release the frame")
	}
	if _, ok := as.Regions.FindByVBase(r.VBase); ok {
		t.Fatalf("region still present after Munmap")
	}
}
