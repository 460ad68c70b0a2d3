/*
   x86emu - linear-to-physical page table walk.

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

import (
	mem "github.com/rcornwell/x86emu/emu/memory"
	"github.com/rcornwell/x86emu/util/debug"
)

// Page table entry bits.
const (
	pteP   = 1 << 0
	pteRW  = 1 << 1
	pteUS  = 1 << 2
	pteA   = 1 << 5
	pteD   = 1 << 6
	ptePS  = 1 << 7
)

// walkPageTables is the x86 analogue of the teacher's transAddr: a
// multi-level table walk ending in a physical address, with a
// present/permission check at each level. Unlike transAddr there is no
// TLB (§4.7 explicitly excludes TLB modeling beyond "every access walks
// the page tables").
func (cpu *CPU) walkPageTables(linear uint64, write bool) (uint64, *Fault) {
	if debugMsk&debugPage != 0 {
		debug.Debugf("CPU", debugMsk, debugPage, "walk linear=%010x write=%v", linear, write)
	}
	switch {
	case cpu.mode == modeLong:
		return cpu.walkLongMode(linear, write)
	case cpu.cr[4]&cr4PAE != 0:
		return cpu.walkPAE(linear, write)
	default:
		return cpu.walk32(linear, write)
	}
}

func pfCode(write, user, rsvd bool) uint32 {
	var c uint32
	// bit0: present (0 here means not-present fault already distinguished
	// by caller only setting this when the entry WAS present but access
	// violated permissions; we set P=1 for permission faults, P=0 for
	// not-present faults via the caller passing presentFault).
	if write {
		c |= 1 << 1
	}
	if user {
		c |= 1 << 2
	}
	if rsvd {
		c |= 1 << 3
	}
	return c
}

func (cpu *CPU) pfNotPresent(linear uint64, write bool) *Fault {
	user := cpu.cpl == 3
	_ = linear
	return faultCode(vecPF, pfCode(write, user, false))
}

func (cpu *CPU) pfProtection(linear uint64, write bool) *Fault {
	user := cpu.cpl == 3
	_ = linear
	return faultCode(vecPF, pfCode(write, user, false)|1)
}

// walk32 implements classic 32-bit paging: CR3 is the PD base; PDE
// indexes linear[31:22]; PDE.PS=1 with CR4.PSE=1 maps a 4 MiB page,
// else the PDE points to a PT indexed by linear[21:12] mapping a 4 KiB
// page, per §4.7.
func (cpu *CPU) walk32(linear uint64, write bool) (uint64, *Fault) {
	pdIndex := (linear >> 22) & 0x3ff
	ptIndex := (linear >> 12) & 0x3ff
	offset := linear & 0xfff

	pdeAddr := (cpu.cr[3] &^ 0xfff) + pdIndex*4
	pde := uint64(mem.ReadDword(pdeAddr))
	if pde&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	if write && pde&pteRW == 0 && cpu.cpl == 3 {
		return 0, cpu.pfProtection(linear, write)
	}
	mem.WriteDword(pdeAddr, uint32(pde|pteA))

	if pde&ptePS != 0 && cpu.cr[4]&cr4PSE != 0 {
		base := pde &^ 0x3fffff
		return base | (linear & 0x3fffff), nil
	}

	ptAddr := (pde &^ 0xfff) + ptIndex*4
	pte := uint64(mem.ReadDword(ptAddr))
	if pte&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	if write && pte&pteRW == 0 && cpu.cpl == 3 {
		return 0, cpu.pfProtection(linear, write)
	}
	flags := uint32(pteA)
	if write {
		flags |= pteD
	}
	mem.WriteDword(ptAddr, uint32(pte)|flags)

	return (pte &^ 0xfff) | offset, nil
}

// walkPAE implements the 3-level PDPT/PD/PT walk with 64-bit entries
// and 2 MiB large-page support (CR4.PAE=1, not long mode), per §4.7.
func (cpu *CPU) walkPAE(linear uint64, write bool) (uint64, *Fault) {
	pdptIndex := (linear >> 30) & 0x3
	pdIndex := (linear >> 21) & 0x1ff
	ptIndex := (linear >> 12) & 0x1ff
	offset := linear & 0xfff

	pdptAddr := (cpu.cr[3] &^ 0x1f) + pdptIndex*8
	pdpte := mem.ReadQword(pdptAddr)
	if pdpte&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}

	pdAddr := (pdpte &^ 0xfff) + pdIndex*8
	pde := mem.ReadQword(pdAddr)
	if pde&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	if pde&ptePS != 0 {
		base := pde &^ 0x1fffff
		return base | (linear & 0x1fffff), nil
	}

	ptAddr := (pde &^ 0xfff) + ptIndex*8
	pte := mem.ReadQword(ptAddr)
	if pte&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	return (pte &^ 0xfff) | offset, nil
}

// walkLongMode implements the 4-level PML4/PDPT/PD/PT walk with
// 1 GiB/2 MiB/4 KiB page sizes, per §4.7.
func (cpu *CPU) walkLongMode(linear uint64, write bool) (uint64, *Fault) {
	pml4Index := (linear >> 39) & 0x1ff
	pdptIndex := (linear >> 30) & 0x1ff
	pdIndex := (linear >> 21) & 0x1ff
	ptIndex := (linear >> 12) & 0x1ff

	pml4Addr := (cpu.cr[3] &^ 0xfff) + pml4Index*8
	pml4e := mem.ReadQword(pml4Addr)
	if pml4e&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}

	pdptAddr := (pml4e &^ 0xfff) + pdptIndex*8
	pdpte := mem.ReadQword(pdptAddr)
	if pdpte&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	if pdpte&ptePS != 0 {
		base := pdpte &^ 0x3fffffff
		return base | (linear & 0x3fffffff), nil
	}

	pdAddr := (pdpte &^ 0xfff) + pdIndex*8
	pde := mem.ReadQword(pdAddr)
	if pde&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	if pde&ptePS != 0 {
		base := pde &^ 0x1fffff
		return base | (linear & 0x1fffff), nil
	}

	ptAddr := (pde &^ 0xfff) + ptIndex*8
	pte := mem.ReadQword(ptAddr)
	if pte&pteP == 0 {
		return 0, cpu.pfNotPresent(linear, write)
	}
	return (pte &^ 0xfff) | (linear & 0xfff), nil
}

// invlpg consumes its address operand and is otherwise a no-op, since
// no TLB is modeled, per §4.7.
func (cpu *CPU) invlpg(_ uint64) {}
