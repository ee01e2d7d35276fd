package fault

import (
	"testing"

	"github.com/hongfeiyang/OS161-VM/frame"
	"github.com/hongfeiyang/OS161-VM/pagetable"
	"github.com/hongfeiyang/OS161-VM/region"
	"github.com/hongfeiyang/OS161-VM/tlb"
)

func setup() (*region.List, *pagetable.PageTable, *frame.Pool, *tlb.TLB) {
	pool := frame.NewPool(16)
	table := pagetable.New(pool)
	regions := &region.List{}
	return regions, table, pool, tlb.New()
}

// S1 — lazy allocation.
func TestLazyAllocationOnReadFault(t *testing.T) {
	regions, table, pool, tl := setup()
	regions.Insert(region.New(0x00400000, PageSize(), true, true, false))

	if err := Handle(regions, table, pool, tl, false, Read, 0x00400010); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	p, ok := table.Lookup(0x00400000)
	if !ok {
		t.Fatalf("fault did not install a PTE")
	}
	if p.Frame().Bytes()[0] != 0 {
		t.Fatalf("freshly faulted frame must be zeroed")
	}
}

// S2 — invalid address.
func TestBadAddressOutsideAnyRegion(t *testing.T) {
	regions, table, pool, tl := setup()
	regions.Insert(region.New(0x00400000, PageSize(), true, true, false))

	err := Handle(regions, table, pool, tl, false, Read, 0x00500000)
	if err == nil {
		t.Fatalf("expected BadAddress")
	}
}

// S3 — write to read-only region.
func TestWriteToReadOnlyRegionFails(t *testing.T) {
	regions, table, pool, tl := setup()
	regions.Insert(region.New(0x00400000, PageSize(), true, false, false))

	err := Handle(regions, table, pool, tl, false, Write, 0x00400004)
	if err == nil {
		t.Fatalf("expected BadAddress writing to a read-only region")
	}
}

func TestInvalidFaultType(t *testing.T) {
	regions, table, pool, tl := setup()
	err := Handle(regions, table, pool, tl, false, Type(99), 0x00400000)
	if err == nil {
		t.Fatalf("expected InvalidArgument for an unknown fault type")
	}
}

func TestForceReadWriteBypassesPermissions(t *testing.T) {
	regions, table, pool, tl := setup()
	regions.Insert(region.New(0x00400000, PageSize(), true, false, false))

	if err := Handle(regions, table, pool, tl, true, Write, 0x00400004); err != nil {
		t.Fatalf("forceReadWrite must permit the write: %v", err)
	}
}

func TestUnnamedFaultTLBEntryMatchesVPN(t *testing.T) {
	regions, table, pool, tl := setup()
	regions.Insert(region.New(0x00400000, PageSize(), true, true, false))

	if err := Handle(regions, table, pool, tl, false, Read, 0x00400abc); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if _, ok := tl.Lookup(0x00400000); !ok {
		t.Fatalf("TLB entry not loaded for the faulting page")
	}
}

func PageSize() uint32 { return 1 << 12 }
