/*
   x86emu - interrupt dispatcher: IVT/IDT vectoring, task switch, sysenter.

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

// BIOSHandler services a software interrupt whose IDT/IVT entry still
// points at the default ROM stub, per §6's interrupt service
// collaborator contract.
type BIOSHandler func(cpu *CPU) int

const (
	BIOSSuccess = iota
	BIOSExit
)

// defaultStubSeg/Off is the canonical ROM stub address (F000:FF53) that
// marks an IVT/IDT entry as "not yet claimed by a real handler," per §6.
const (
	defaultStubSeg = 0xF000
	defaultStubOff = 0xFF53
)

// RegisterBIOS installs a handler for software interrupt vector v.
func (cpu *CPU) RegisterBIOS(vector uint8, handler BIOSHandler) {
	if cpu.bios == nil {
		cpu.bios = map[uint8]BIOSHandler{}
	}
	cpu.bios[vector] = handler
}

// raiseInterrupt vectors to v with an optional error code, dispatching
// through the IVT in real mode or the IDT in protected/long mode. The
// push-old-state / vector-fetch / load-new-state shape mirrors
// storePSW/suppress/lpsw in the teacher's interrupt path, generalized
// from a 2-word PSW to the IP/CS/FLAGS (plus outer SS/ESP on a
// privilege transition) pushed here.
func (cpu *CPU) raiseInterrupt(v uint8, errorCode *uint32, isSoftware bool) *Fault {
	cpu.reentry++
	defer func() { cpu.reentry-- }()
	if cpu.reentry > maxReentry {
		// Implementation-limit abort, kind 4 of §7: exceeding the
		// nested-interrupt cap does not attempt double-fault semantics.
		panic(&haltAbort{at: cpu.rip, why: "nested interrupt delivery exceeded reentry bound"})
	}
	if debugMsk&debugInt != 0 {
		cpu.traceInt(v)
	}

	if cpu.mode == modeReal {
		return cpu.raiseInterruptReal(v)
	}
	return cpu.raiseInterruptProtected(v, errorCode, isSoftware)
}

func (cpu *CPU) raiseInterruptReal(v uint8) *Fault {
	entry := uint64(v) * 4
	offset := uint64(mem.ReadWord(entry))
	segment := uint64(mem.ReadWord(entry + 2))
	if segment == 0 && offset == 0 {
		// A zeroed IVT entry has no handler: abort rather than jump to 0.
		panic(&haltAbort{at: cpu.rip, why: "interrupt vector has no handler installed"})
	}

	if f := cpu.Push(16, cpu.rflags&0xffff); f != nil {
		return f
	}
	if f := cpu.Push(16, uint64(cpu.seg[segCS].selector)); f != nil {
		return f
	}
	if f := cpu.Push(16, cpu.rip-cpu.seg[segCS].base); f != nil {
		return f
	}
	cpu.setFlagBit(flagIF, false)
	cpu.setFlagBit(flagTF, false)
	cpu.loadSegmentReal(segCS, uint16(segment))
	cpu.rip = cpu.seg[segCS].base + offset
	return nil
}

// idtGate mirrors an 8-byte IDT gate descriptor.
type idtGate struct {
	offset  uint64
	selector uint16
	gateType uint8
	dpl      uint8
	present  bool
}

func (cpu *CPU) readIDTGate(v uint8) (idtGate, *Fault) {
	off := cpu.idtr.base + uint64(v)*8
	buf := make([]byte, 8)
	if f := cpu.ReadLinear(off, buf); f != nil {
		return idtGate{}, f
	}
	offset := uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[6])<<16 | uint64(buf[7])<<24
	selector := uint16(buf[2]) | uint16(buf[3])<<8
	access := buf[5]
	return idtGate{
		offset:   offset,
		selector: selector,
		gateType: access & 0xf,
		dpl:      (access >> 5) & 3,
		present:  access&0x80 != 0,
	}, nil
}

const (
	gateTypeTask = 0x5
	gateTypeInt  = 0xE
	gateTypeTrap = 0xF
)

// raiseInterruptProtected implements the protected-mode half of §4.8:
// validate present and gate type, check DPL on software INT, switch to
// the TSS-recorded ring-0 stack on a privilege transition, and clear
// IF only for interrupt gates.
func (cpu *CPU) raiseInterruptProtected(v uint8, errorCode *uint32, isSoftware bool) *Fault {
	gate, f := cpu.readIDTGate(v)
	if f != nil {
		return f
	}
	if !gate.present {
		return faultCode(vecNP, uint32(v)*8+2)
	}
	if isSoftware && gate.dpl < uint8(cpu.cpl) {
		return faultCode(vecGP, uint32(v)*8+2)
	}
	if gate.gateType == gateTypeTask {
		return cpu.taskSwitchToSelector(gate.selector)
	}

	targetDPL := uint8(gate.selector & 3)
	crossRing := targetDPL < uint8(cpu.cpl)

	oldSS, oldSP := cpu.seg[segSS].selector, cpu.GPR(regRSP, cpu.stackAddrWidth())
	oldCS, oldIP, oldFlags := cpu.seg[segCS].selector, cpu.rip-cpu.seg[segCS].base, cpu.rflags

	if crossRing {
		newSS, newSP, f := cpu.tssStackForRing(targetDPL)
		if f != nil {
			return f
		}
		if f := cpu.loadSegment(segSS, newSS); f != nil {
			return f
		}
		cpu.WriteGPR(regRSP, cpu.stackAddrWidth(), newSP)
		if f := cpu.Push(32, uint64(oldSS)); f != nil {
			return f
		}
		if f := cpu.Push(32, oldSP); f != nil {
			return f
		}
	}

	if f := cpu.Push(32, oldFlags); f != nil {
		return f
	}
	if f := cpu.Push(32, uint64(oldCS)); f != nil {
		return f
	}
	if f := cpu.Push(32, oldIP); f != nil {
		return f
	}
	if errorCode != nil {
		if f := cpu.Push(32, uint64(*errorCode)); f != nil {
			return f
		}
	}

	if gate.gateType == gateTypeInt {
		cpu.setFlagBit(flagIF, false)
	}
	cpu.setFlagBit(flagTF, false)

	if f := cpu.loadSegment(segCS, gate.selector); f != nil {
		return f
	}
	cpu.rip = cpu.seg[segCS].base + gate.offset
	return nil
}

// tssStackForRing reads SSn/ESPn from the current TSS, the ring-0 (or
// ring-n) stack pointer used on a privilege-escalating transfer.
func (cpu *CPU) tssStackForRing(ring uint8) (ss uint16, sp uint64, f *Fault) {
	base := cpu.tr.base
	entry := uint64(ring) * 8
	buf := make([]byte, 8)
	if err := cpu.ReadLinear(base+4+entry, buf); err != nil {
		return 0, 0, err
	}
	sp = uint64(buf[0]) | uint64(buf[1])<<8 | uint64(buf[2])<<16 | uint64(buf[3])<<24
	ss = uint16(buf[4]) | uint16(buf[5])<<8
	return ss, sp, nil
}

// iret pops IP/CS/FLAGS (and, from an outer ring, SS:ESP too),
// restoring IOPL and NT, per §4.5/§4.8. If NT=1, a task switch to the
// TSS backlink is performed instead.
func (cpu *CPU) iret(ctx *decodeCtx) *Fault {
	if cpu.flag(flagNT) {
		return cpu.taskSwitchToBacklink()
	}

	w := ctx.opSize
	if cpu.mode != modeReal {
		w = 32
	}
	off, f := cpu.Pop(w)
	if f != nil {
		return f
	}
	sel, f := cpu.Pop(w)
	if f != nil {
		return f
	}
	flags, f := cpu.Pop(w)
	if f != nil {
		return f
	}

	outerRing := cpu.mode != modeReal && uint8(sel)&3 > uint8(cpu.cpl)

	if cpu.mode == modeReal {
		cpu.loadSegmentReal(segCS, uint16(sel))
	} else if f := cpu.loadSegment(segCS, uint16(sel)); f != nil {
		return f
	}
	cpu.rip = cpu.seg[segCS].base + off
	cpu.setRFlags((cpu.rflags &^ 0xffffffff) | (flags & 0xffffffff))

	if outerRing {
		newSP, f := cpu.Pop(w)
		if f != nil {
			return f
		}
		newSS, f := cpu.Pop(w)
		if f != nil {
			return f
		}
		if f := cpu.loadSegment(segSS, uint16(newSS)); f != nil {
			return f
		}
		cpu.WriteGPR(regRSP, cpu.stackAddrWidth(), newSP)
	}
	return nil
}

// taskSwitchToSelector validates the target TSS descriptor (present,
// type 0x1/0x3/0x9/0xB) and performs a full state swap, per §4.5.
func (cpu *CPU) taskSwitchToSelector(selector uint16) *Fault {
	return cpu.tssSelectorLoad(selector, false)
}

func (cpu *CPU) taskSwitchToBacklink() *Fault {
	buf := make([]byte, 2)
	if f := cpu.ReadLinear(cpu.tr.base, buf); f != nil {
		return f
	}
	backlink := uint16(buf[0]) | uint16(buf[1])<<8
	return cpu.tssSelectorLoad(backlink, true)
}

// tssSelectorLoad writes the current TSS state (GPRs, segment
// selectors, EIP, EFLAGS, CR3, LDTR) then loads the target TSS state
// and sets the busy bit on the new TSS, clearing it on the old unless
// the switch came through a task gate from CALL, per §4.5.
func (cpu *CPU) tssSelectorLoad(selector uint16, clearNT bool) *Fault {
	// Save current state into the old TSS and clear its busy bit -
	// except on the very first task switch, where cpu.tr.selector==0
	// means there is no prior TSS and base==0 would otherwise alias
	// linear address zero.
	oldSelector := cpu.tr.selector
	if oldSelector != 0 {
		cpu.writeTSSState(cpu.tr.base)
		if f := cpu.setTSSBusy(oldSelector, false); f != nil {
			return f
		}
	}

	table := cpu.gdtr
	off := table.base + uint64(selector>>3)*8
	desc := make([]byte, 8)
	if f := cpu.ReadLinear(off, desc); f != nil {
		return f
	}
	base := uint64(desc[2]) | uint64(desc[3])<<8 | uint64(desc[4])<<16 | uint64(desc[7])<<24
	limit := uint32(desc[0]) | uint32(desc[1])<<8

	cpu.tr = segReg{selector: selector, base: base, limit: limit, flags: segPresent}
	if f := cpu.readTSSState(base); f != nil {
		return f
	}
	if f := cpu.setTSSBusy(selector, true); f != nil {
		return f
	}
	if clearNT {
		cpu.setFlagBit(flagNT, false)
	} else {
		cpu.setFlagBit(flagNT, true)
	}
	return nil
}

// setTSSBusy flips bit 0x2 of the GDT descriptor's access byte
// (desc[5]) for selector - the bit that distinguishes TSS descriptor
// type 0x1/0x9 (available) from 0x3/0xB (busy).
func (cpu *CPU) setTSSBusy(selector uint16, busy bool) *Fault {
	addr := cpu.gdtr.base + uint64(selector>>3)*8 + 5
	access := make([]byte, 1)
	if f := cpu.ReadLinear(addr, access); f != nil {
		return f
	}
	if busy {
		access[0] |= 0x2
	} else {
		access[0] &^= 0x2
	}
	return cpu.WriteLinear(addr, access)
}

// tssSegSlots lists the TSS's dword-spaced segment-selector fields in
// the order they appear at base+72: ES, CS, SS, DS, FS, GS.
var tssSegSlots = [6]int{segES, segCS, segSS, segDS, segFS, segGS}

// writeTSSState/readTSSState persist the standard 32-bit TSS layout:
// CR3 @28, EIP @32, EFLAGS @36, EAX..EDI @40-68 (the same order as
// cpu.regs), ES/CS/SS/DS/FS/GS @72-92 (4 bytes apart, selector in the
// low word), LDTR @96. ESPn/SSn (read by tssStackForRing) are left
// alone here - they are kernel-provided ring stacks set up before a
// task is ever switched into, not part of the switched-out state.
func (cpu *CPU) writeTSSState(base uint64) {
	mem.WriteDword(base+28, uint32(cpu.cr[3]))
	mem.WriteDword(base+32, uint32(cpu.rip-cpu.seg[segCS].base))
	mem.WriteDword(base+36, uint32(cpu.rflags))
	for i := 0; i < 8; i++ {
		mem.WriteDword(base+40+uint64(i)*4, uint32(cpu.regs[i]))
	}
	for i, seg := range tssSegSlots {
		mem.WriteWord(base+72+uint64(i)*4, cpu.seg[seg].selector)
	}
	mem.WriteWord(base+96, cpu.ldtr.selector)
}

func (cpu *CPU) readTSSState(base uint64) *Fault {
	eip := uint64(mem.ReadDword(base + 32))
	cpu.setRFlags((cpu.rflags &^ 0xffffffff) | uint64(mem.ReadDword(base+36)))
	for i := 0; i < 8; i++ {
		cpu.regs[i] = uint64(mem.ReadDword(base + 40 + uint64(i)*4))
	}
	cpu.writeCR(3, uint64(mem.ReadDword(base+28)))
	if f := cpu.loadLDTR(mem.ReadWord(base + 96)); f != nil {
		return f
	}
	// CS loads first (and out of tssSegSlots order) since it drives
	// cpl/mode recompute and the base that eip is relative to.
	if f := cpu.loadSegment(segCS, mem.ReadWord(base+76)); f != nil {
		return f
	}
	cpu.rip = cpu.seg[segCS].base + eip
	for i, seg := range tssSegSlots {
		if seg == segCS {
			continue
		}
		if f := cpu.loadSegment(seg, mem.ReadWord(base+72+uint64(i)*4)); f != nil {
			return f
		}
	}
	return nil
}

// sysenter transfers via MSRs 0x174 (CS), 0x175 (ESP), 0x176 (EIP),
// forcing CPL=0, per §4.5.
func (cpu *CPU) sysenter() *Fault {
	csSel := uint16(cpu.msr[msrSysenterCS])
	cpu.loadSegmentProtected(segCS, csSel&0xfffc)
	cpu.loadSegmentProtected(segSS, (csSel+8)&0xfffc)
	cpu.WriteGPR(regRSP, 32, cpu.msr[msrSysenterESP])
	cpu.rip = cpu.seg[segCS].base + cpu.msr[msrSysenterEIP]
	cpu.cpl = 0
	return nil
}

// sysexit requires CPL=0 and returns to CPL=3 with derived
// CS=csbase+16 and SS=csbase+24, per §4.5.
func (cpu *CPU) sysexit() *Fault {
	if cpu.cpl != 0 {
		return fault(vecGP)
	}
	csSel := uint16(cpu.msr[msrSysenterCS])
	cpu.loadSegmentProtected(segCS, (csSel+16)|3)
	cpu.loadSegmentProtected(segSS, (csSel+24)|3)
	cpu.rip = cpu.seg[segCS].base + cpu.GPR(regRDX, 32)
	cpu.WriteGPR(regRSP, 32, cpu.GPR(regRCX, 32))
	cpu.cpl = 3
	return nil
}

const (
	msrSysenterCS  = 0x174
	msrSysenterESP = 0x175
	msrSysenterEIP = 0x176
)
