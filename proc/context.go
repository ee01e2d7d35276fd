// Package proc supplies the explicit "current process" handle (C9),
// grounded on the teacher's Proc_t but deliberately not kept as a
// package-level global: every fault-handler and syscall-envelope call
// site takes a *Context argument instead of reading ambient state, per
// SPEC_FULL's REDESIGN FLAGS.
package proc

import (
	"sync"

	"github.com/hongfeiyang/OS161-VM/addrspace"
	"github.com/hongfeiyang/OS161-VM/tlb"
)

// Context binds one simulated kernel thread to its currently active
// address space and the hardware TLB it faults against. The TLB is
// carried here rather than on AddrSpace because it is a per-CPU
// resource that outlives any single address space switch.
type Context struct {
	mu  sync.RWMutex
	as  *addrspace.AddrSpace
	TLB *tlb.TLB
	id  string
}

// New returns a Context with a fresh TLB and no address space bound,
// identified by id for diagnostics (process name, goroutine label, etc).
func New(id string) *Context {
	return &Context{id: id, TLB: tlb.New()}
}

// AddrSpace returns the context's currently bound address space, or nil
// if none is bound.
func (c *Context) AddrSpace() *addrspace.AddrSpace {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.as
}

// SetAddrSpace rebinds the context to as, activating it (which flushes
// the TLB), the explicit equivalent of assigning curproc->p_addrspace
// followed by as_activate.
func (c *Context) SetAddrSpace(as *addrspace.AddrSpace) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.as = as
	if as != nil {
		as.Activate(c.TLB)
	}
}

// ID returns the context's diagnostic label.
func (c *Context) ID() string {
	return c.id
}
