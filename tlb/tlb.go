// Package tlb models the software-managed translation lookaside buffer
// (C6): a fixed-size array of entries loaded by the fault handler and
// flushed wholesale on every address-space switch, grounded on
// original_source/kern/vm/vm.c's load_tlb/tlb_probe/tlb_random and
// addrspace.c's flush_tlb.
package tlb

import (
	"math/rand"
	"sync"
)

// NumTLB is the number of hardware TLB slots, mirroring mips/tlb.h's
// NUM_TLB in the original source.
const NumTLB = 64

// Entry is one translation: a virtual page number mapped to a physical
// frame number plus control bits, kept as separate typed fields rather
// than one hardware-format word (see SPEC_FULL design notes on avoiding
// the mask/unmask bugs of OR-ing control bits into the frame number).
type Entry struct {
	VPN      uint32
	Frame    uint32
	Valid    bool
	Writable bool
}

// TLB is the simulated hardware TLB. mu stands in for the elevated
// interrupt level (splhigh/splx) the original raises around every probe
// and write: it is held only across the probe-or-install step, never
// across a blocking call, since TLB programming never blocks.
type TLB struct {
	mu      sync.Mutex
	entries [NumTLB]Entry
	rng     *rand.Rand
}

// New returns an empty TLB.
func New() *TLB {
	return &TLB{rng: rand.New(rand.NewSource(1))}
}

// probeLocked returns the index of the entry mapping vpn, if present.
func (t *TLB) probeLocked(vpn uint32) (int, bool) {
	for i := range t.entries {
		if t.entries[i].Valid && t.entries[i].VPN == vpn {
			return i, true
		}
	}
	return 0, false
}

// Load installs (or overwrites) the translation for vpn -> frame. If
// forceReadWrite is set, the writable bit is forced on before loading,
// mirroring load_tlb's handling of as->force_readwrite during ELF load.
// An existing entry for vpn is overwritten in place; otherwise a random
// slot is evicted, exactly as tlb_probe/tlb_random behave when there is
// no LRU policy.
func (t *TLB) Load(vpn, frm uint32, writable, forceReadWrite bool) {
	if forceReadWrite {
		writable = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	e := Entry{VPN: vpn, Frame: frm, Valid: true, Writable: writable}
	if idx, ok := t.probeLocked(vpn); ok {
		t.entries[idx] = e
		return
	}
	t.entries[t.rng.Intn(NumTLB)] = e
}

// Lookup reports the current translation for vpn, if loaded.
func (t *TLB) Lookup(vpn uint32) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.probeLocked(vpn)
	if !ok {
		return Entry{}, false
	}
	return t.entries[idx], true
}

// FlushAll invalidates every entry — there are no ASIDs in this model,
// so every address-space switch clears the whole TLB.
func (t *TLB) FlushAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.entries {
		t.entries[i] = Entry{}
	}
}

// Count reports how many entries are currently valid, used by the
// idempotence-of-activate test.
func (t *TLB) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.entries {
		if t.entries[i].Valid {
			n++
		}
	}
	return n
}
