// Package vfile is a minimal in-memory stand-in for the VFS collaborator
// (VOP_READ/VOP_WRITE) that file-backed regions and mmap read and write
// through. It is deliberately small: a named byte buffer guarded by a
// mutex, exposing page-sized transfers.
package vfile

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/errno"
)

const PageSize = 1 << 12

// File is an open, page-addressable byte store.
type File struct {
	mu     sync.Mutex
	name   string
	data   []byte
	closed bool
}

// Open returns an open File backed by the given initial contents
// (copied). The name is used only for diagnostics; an unopened
// descriptor comes from Unopened or Close — see Valid.
func Open(name string, contents []byte) *File {
	data := make([]byte, len(contents))
	copy(data, contents)
	return &File{name: name, data: data}
}

// Unopened returns a descriptor in the "not open" state, so that mmap
// callers can exercise ErrBadDescriptor.
func Unopened() *File {
	return &File{closed: true}
}

// Valid reports whether the descriptor refers to an open file.
func (f *File) Valid() bool {
	if f == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

// ReadPage reads exactly one page's worth of bytes starting at the
// page-aligned byte offset off, zero-extending past end-of-file.
func (f *File) ReadPage(off int) ([PageSize]byte, errno.Errno) {
	var page [PageSize]byte
	if !f.Valid() {
		return page, errno.BadDescriptor
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if off < 0 {
		return page, errno.InvalidArgument
	}
	if off >= len(f.data) {
		return page, 0
	}
	n := copy(page[:], f.data[off:])
	_ = n
	return page, 0
}

// WritePage writes one page's worth of bytes back to the page-aligned
// byte offset off, growing the backing buffer as needed.
func (f *File) WritePage(off int, page [PageSize]byte) errno.Errno {
	if !f.Valid() {
		return errno.BadDescriptor
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if off < 0 {
		return errno.InvalidArgument
	}
	need := off + PageSize
	if need > len(f.data) {
		grown := make([]byte, need)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[off:need], page[:])
	return 0
}

// Close marks the descriptor unopened.
func (f *File) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// Name returns the file's name, for diagnostics.
func (f *File) Name() string {
	return f.name
}
