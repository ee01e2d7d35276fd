package errno

import (
	"errors"
	"testing"
)

func TestErrorStrings(t *testing.T) {
	if OutOfMemory.Error() != "out of memory" {
		t.Fatalf("unexpected message: %v", OutOfMemory.Error())
	}
	unknown := Errno(99)
	if unknown.Error() != "errno(99)" {
		t.Fatalf("unexpected fallback message: %v", unknown.Error())
	}
}

func TestWrapfUnwrap(t *testing.T) {
	err := Wrapf("fault", BadAddress)
	if err.Error() != "fault: bad address" {
		t.Fatalf("unexpected wrapped message: %v", err.Error())
	}
	var target Errno
	if !errors.As(err, &target) {
		t.Fatalf("errors.As failed to unwrap to Errno")
	}
	if target != BadAddress {
		t.Fatalf("unwrapped to %v, want %v", target, BadAddress)
	}
}
