// Package errno defines the small set of error codes the vm core surfaces
// to its callers, mirroring the teacher's defs.Err_t: a lightweight integer
// code that still satisfies the standard error interface.
package errno

import "fmt"

// Errno is a kernel-style error code.
type Errno int

const (
	// OutOfMemory is raised when the frame pool is exhausted (so a PTE
	// or its copy cannot be allocated), or no gap exists for a file
	// region.
	OutOfMemory Errno = iota + 1
	// BadAddress is raised when a fault address lies outside every
	// region, or violates a region's permission bits.
	BadAddress
	// InvalidArgument is raised for a malformed fault type or bad
	// mmap/munmap arguments.
	InvalidArgument
	// BadDescriptor is raised when mmap targets an unopened file handle.
	BadDescriptor
	// NotImplemented is raised when a region carries an unknown type tag.
	NotImplemented
	// IO is the code for a failed file transfer. The in-memory vfile
	// source never returns it: its reads and writes fail only with
	// BadDescriptor or InvalidArgument.
	IO
)

var names = map[Errno]string{
	OutOfMemory:      "out of memory",
	BadAddress:       "bad address",
	InvalidArgument:  "invalid argument",
	BadDescriptor:    "bad descriptor",
	NotImplemented:   "not implemented",
	IO:               "i/o error",
}

func (e Errno) Error() string {
	if s, ok := names[e]; ok {
		return s
	}
	return fmt.Sprintf("errno(%d)", int(e))
}

// WrappedErrno attaches a descriptive prefix to an Errno while keeping it matchable
// with errors.Is via errors.As/Unwrap.
type WrappedErrno struct {
	Op  string
	Err Errno
}

func (w *WrappedErrno) Error() string {
	return fmt.Sprintf("%s: %s", w.Op, w.Err.Error())
}

func (w *WrappedErrno) Unwrap() error {
	return w.Err
}

// Wrapf returns an error that reports op failed with the given Errno.
func Wrapf(op string, err Errno) error {
	return &WrappedErrno{Op: op, Err: err}
}
