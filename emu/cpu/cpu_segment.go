/*
   x86emu - segment register reload and descriptor cache.

   Copyright (c) 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a
   copy of this software and associated documentation files (the "Software"),
   to deal in the Software without restriction, including without limitation
   the rights to use, copy, modify, merge, publish, distribute, sublicense,
   and/or sell copies of the Software, and to permit persons to whom the
   Software is furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.  IN NO EVENT SHALL
   ROBERT M SUPNIK BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.

*/

package cpu

import mem "github.com/rcornwell/x86emu/emu/memory"

// Segment descriptor reloads only happen here: on a selector write or a
// mode change, never on each memory reference, following the teacher's
// TLB-is-sticky-until-invalidated discipline in transAddr.

// loadSegmentReal caches {base=selector<<4, limit=0xFFFF, default=16}
// for real mode, per §4.3.
func (cpu *CPU) loadSegmentReal(seg int, selector uint16) {
	cpu.seg[seg] = segReg{
		selector: selector,
		base:     uint64(selector) << 4,
		limit:    0xFFFF,
		flags:    segPresent,
	}
}

// loadSegmentProtected refetches and validates the descriptor for
// selector from the GDT or LDT, the protected-mode half of §4.3's
// load_segment contract.
func (cpu *CPU) loadSegmentProtected(seg int, selector uint16) *Fault {
	if selector&0xfffc == 0 {
		// Null selector: legal to load into DS/ES/FS/GS, not CS/SS.
		cpu.seg[seg] = segReg{selector: selector}
		return nil
	}

	table := cpu.gdtr
	if selector&4 != 0 {
		table = descTable{base: cpu.ldtr.base, limit: cpu.ldtr.limit}
	}
	index := uint32(selector >> 3)
	off := table.base + uint64(index)*8
	if uint32(index)*8+7 > table.limit {
		return faultCode(vecGP, uint32(selector)&0xfff8)
	}

	desc := make([]byte, 8)
	if f := cpu.ReadLinear(off, desc); f != nil {
		return f
	}

	limit := uint32(desc[0]) | uint32(desc[1])<<8 | (uint32(desc[6]&0xf) << 16)
	base := uint32(desc[2]) | uint32(desc[3])<<8 | uint32(desc[4])<<16 | uint32(desc[7])<<24
	access := desc[5]
	gran := desc[6]

	if access&0x80 == 0 { // not present
		return faultCode(vecNP, uint32(selector)&0xfff8)
	}
	if gran&0x80 != 0 { // granularity: scale by 4 KiB
		limit = (limit << 12) | 0xfff
	}

	var flags uint8 = segPresent
	if access&0x18 == 0x18 { // code segment, executable bit
		flags |= segExec
	}
	if gran&0x40 != 0 {
		flags |= segDef32
	}
	if gran&0x20 != 0 {
		flags |= segLong
	}

	cpu.seg[seg] = segReg{
		selector: selector,
		base:     uint64(base),
		limit:    limit,
		access:   access,
		flags:    flags,
	}

	if seg == segCS {
		cpu.cpl = int(selector & 3)
		cpu.recomputeMode()
	}
	return nil
}

// loadLDTR refetches the LDT descriptor (a GDT-only system descriptor,
// selector table bit notwithstanding) into cpu.ldtr, the same shape as
// loadSegmentProtected's GDT branch, needed so a later selector with
// its table bit set resolves against real LDT base/limit instead of
// the zero value left by a bare selector-field write.
func (cpu *CPU) loadLDTR(selector uint16) *Fault {
	if selector&0xfffc == 0 {
		cpu.ldtr = segReg{selector: selector}
		return nil
	}
	off := cpu.gdtr.base + uint64(selector>>3)*8
	desc := make([]byte, 8)
	if f := cpu.ReadLinear(off, desc); f != nil {
		return f
	}
	limit := uint32(desc[0]) | uint32(desc[1])<<8 | (uint32(desc[6]&0xf) << 16)
	base := uint32(desc[2]) | uint32(desc[3])<<8 | uint32(desc[4])<<16 | uint32(desc[7])<<24
	if desc[6]&0x80 != 0 {
		limit = (limit << 12) | 0xfff
	}
	cpu.ldtr = segReg{selector: selector, base: uint64(base), limit: limit, flags: segPresent}
	return nil
}

// loadSegment dispatches to the real- or protected-mode loader
// depending on current mode.
func (cpu *CPU) loadSegment(seg int, selector uint16) *Fault {
	if cpu.mode == modeReal {
		cpu.loadSegmentReal(seg, selector)
		return nil
	}
	return cpu.loadSegmentProtected(seg, selector)
}

// Segment returns the selector/base/limit/attributes of seg for the
// external inspection API of §6.
func (cpu *CPU) Segment(seg int) (selector uint16, base uint64, limit uint32, attrs uint8) {
	s := cpu.seg[seg]
	return s.selector, s.base, s.limit, s.flags
}

// linearToPhysical walks the page tables (if enabled) and dispatches to
// MMIO-aware physical memory, following transAddr's "translate, then
// access" split.
func (cpu *CPU) linearToPhysical(linear uint64, write bool) (uint64, *Fault) {
	if cpu.mode != modeReal && cpu.cr[0]&cr0PG != 0 {
		return cpu.walkPageTables(linear, write)
	}
	if cpu.mode == modeReal {
		return linear & 0xfffff, nil // 20-bit real-mode address space, A20 handled by caller
	}
	return linear, nil
}

// ReadLinear reads len(buf) bytes starting at the given linear address,
// part of the external inspection API of §6.
func (cpu *CPU) ReadLinear(addr uint64, buf []byte) *Fault {
	for i := range buf {
		phys, f := cpu.linearToPhysical(addr+uint64(i), false)
		if f != nil {
			return f
		}
		buf[i] = mem.ReadByte(phys)
	}
	return nil
}

// WriteLinear writes buf starting at the given linear address.
func (cpu *CPU) WriteLinear(addr uint64, buf []byte) *Fault {
	for i, b := range buf {
		phys, f := cpu.linearToPhysical(addr+uint64(i), true)
		if f != nil {
			return f
		}
		mem.WriteByte(phys, b)
	}
	return nil
}
