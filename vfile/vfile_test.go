package vfile

import (
	"testing"

	"github.com/hongfeiyang/OS161-VM/errno"
)

func TestReadPageZeroExtendsPastEOF(t *testing.T) {
	f := Open("data", []byte{1, 2, 3})
	page, err := f.ReadPage(0)
	if err != 0 {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if page[0] != 1 || page[1] != 2 || page[2] != 3 {
		t.Fatalf("ReadPage lost leading bytes")
	}
	for i := 3; i < PageSize; i++ {
		if page[i] != 0 {
			t.Fatalf("byte %d past EOF not zero", i)
		}
	}
}

func TestWritePageGrowsBuffer(t *testing.T) {
	f := Open("data", nil)
	var page [PageSize]byte
	page[0] = 0xFF
	if err := f.WritePage(PageSize, page); err != 0 {
		t.Fatalf("WritePage failed: %v", err)
	}
	readBack, err := f.ReadPage(PageSize)
	if err != 0 {
		t.Fatalf("ReadPage failed: %v", err)
	}
	if readBack[0] != 0xFF {
		t.Fatalf("write did not persist")
	}
}

func TestUnopenedFailsBadDescriptor(t *testing.T) {
	f := Unopened()
	if f.Valid() {
		t.Fatalf("Unopened file must be invalid")
	}
	if _, err := f.ReadPage(0); err != errno.BadDescriptor {
		t.Fatalf("expected BadDescriptor, got %v", err)
	}
}

func TestCloseInvalidates(t *testing.T) {
	f := Open("data", []byte{1})
	f.Close()
	if f.Valid() {
		t.Fatalf("closed file must be invalid")
	}
}
