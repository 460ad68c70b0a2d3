/*
   x86emu - control-transfer engine: CALL/RET/JMP/Jcc/LOOP/INT/IRET.

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

// condIndex names match the 16-condition table of §4.5, shared by
// Jcc, CMOVcc, and SETcc, the way opBC's mask table is reused by every
// branch-on-condition handler in the teacher.
const (
	condO = iota
	condNO
	condB
	condNB
	condE
	condNE
	condBE
	condNBE
	condS
	condNS
	condP
	condNP
	condL
	condNL
	condLE
	condNLE
)

// evalCond evaluates one of the 16 conditions against the current
// EFLAGS, per §4.5.
func (cpu *CPU) evalCond(cond uint8) bool {
	cf := cpu.flag(flagCF)
	zf := cpu.flag(flagZF)
	sf := cpu.flag(flagSF)
	of := cpu.flag(flagOF)
	pf := cpu.flag(flagPF)
	switch cond & 0xf {
	case condO:
		return of
	case condNO:
		return !of
	case condB:
		return cf
	case condNB:
		return !cf
	case condE:
		return zf
	case condNE:
		return !zf
	case condBE:
		return cf || zf
	case condNBE:
		return !cf && !zf
	case condS:
		return sf
	case condNS:
		return !sf
	case condP:
		return pf
	case condNP:
		return !pf
	case condL:
		return sf != of
	case condNL:
		return sf == of
	case condLE:
		return zf || sf != of
	default: // condNLE
		return !zf && sf == of
	}
}

// near branch/call targets stay within CS: target = (current_linear +
// displacement) mod segment_width, per §4.5.
func (cpu *CPU) nearTarget(disp uint64, ctx *decodeCtx) uint64 {
	base := cpu.seg[segCS].base
	off := (cpu.rip - base + disp) & widthMask(ctx.opSize)
	return base + off
}

// jumpNear redirects RIP to a near target, raising the kind-2
// distinguished abort of §7 if the resolved linear address is 0 — a
// CALL/JMP to linear 0 is almost always a dereferenced null function
// pointer in boot code, not an architectural fault.
func (cpu *CPU) jumpNear(target uint64) *Fault {
	if target == 0 {
		panic(&haltAbort{at: cpu.rip, why: "control transfer to linear address 0"})
	}
	cpu.rip = target
	return nil
}

// callNear pushes the return offset (relative to CS base) at operand
// size, then jumps, per §4.5.
func (cpu *CPU) callNear(disp uint64, ctx *decodeCtx) *Fault {
	retOff := cpu.rip - cpu.seg[segCS].base
	if f := cpu.Push(ctx.opSize, retOff); f != nil {
		return f
	}
	return cpu.jumpNear(cpu.nearTarget(disp, ctx))
}

// callFar pushes CS then the return offset and jumps to selector:offset
// directly, unless selector names a protected-mode call gate, in which
// case callThroughGate performs the gate transfer instead (§4.5).
func (cpu *CPU) callFar(selector uint16, offset uint64, ctx *decodeCtx) *Fault {
	gate, isGate, f := cpu.callGateFor(selector)
	if f != nil {
		return f
	}
	if isGate {
		return cpu.callThroughGate(gate)
	}

	retOff := cpu.rip - cpu.seg[segCS].base
	if f := cpu.Push(ctx.opSize, uint64(cpu.seg[segCS].selector)); f != nil {
		return f
	}
	if f := cpu.Push(ctx.opSize, retOff); f != nil {
		return f
	}
	if f := cpu.loadSegment(segCS, selector); f != nil {
		return f
	}
	return cpu.jumpNear(cpu.seg[segCS].base + offset)
}

const (
	descTypeCallGate16 = 0x4
	descTypeCallGate32 = 0xC
)

// callGate mirrors the fields of an 8-byte call-gate descriptor that
// matter for a transfer: the decoded target and the parameter count to
// copy across a privilege-escalating stack switch.
type callGate struct {
	selector   uint16
	offset     uint64
	paramCount uint8
	is32       bool
}

// readSystemDescriptor fetches the raw 8-byte GDT/LDT descriptor for
// selector, the same table-selection rule loadSegmentProtected uses.
func (cpu *CPU) readSystemDescriptor(selector uint16) ([8]byte, *Fault) {
	table := cpu.gdtr
	if selector&4 != 0 {
		table = descTable{base: cpu.ldtr.base, limit: cpu.ldtr.limit}
	}
	off := table.base + uint64(selector>>3)*8
	var desc [8]byte
	f := cpu.ReadLinear(off, desc[:])
	return desc, f
}

// callGateFor reports whether selector names a call gate - a system
// descriptor (S bit clear) of type 0x4 (16-bit) or 0xC (32-bit) - and
// decodes it if so. Real mode has no descriptor tables to consult, and
// a null selector can never be a gate.
func (cpu *CPU) callGateFor(selector uint16) (callGate, bool, *Fault) {
	if cpu.mode == modeReal || selector&0xfffc == 0 {
		return callGate{}, false, nil
	}
	desc, f := cpu.readSystemDescriptor(selector)
	if f != nil {
		return callGate{}, false, f
	}
	access := desc[5]
	if access&0x10 != 0 { // S bit set: ordinary code/data segment
		return callGate{}, false, nil
	}
	typ := access & 0xf
	if typ != descTypeCallGate16 && typ != descTypeCallGate32 {
		return callGate{}, false, nil
	}
	is32 := typ == descTypeCallGate32
	offset := uint64(desc[0]) | uint64(desc[1])<<8
	if is32 {
		offset |= uint64(desc[6])<<16 | uint64(desc[7])<<24
	}
	return callGate{
		selector:   uint16(desc[2]) | uint16(desc[3])<<8,
		offset:     offset,
		paramCount: desc[4] & 0x1f,
		is32:       is32,
	}, true, nil
}

// callThroughGate performs the gate transfer of §4.5: on privilege
// escalation, switch SS:ESP to the TSS-recorded stack for the gate's
// target code segment's DPL (the same tssStackForRing helper
// raiseInterruptProtected uses for its cross-ring push), copy
// paramCount stack words from the caller's old stack onto the new one,
// then push the old SS:ESP (cross-ring only) and old CS:IP before
// jumping to the gate's target.
func (cpu *CPU) callThroughGate(gate callGate) *Fault {
	targetDesc, f := cpu.readSystemDescriptor(gate.selector)
	if f != nil {
		return f
	}
	targetDPL := (targetDesc[5] >> 5) & 3
	crossRing := targetDPL < uint8(cpu.cpl)

	w := 16
	if gate.is32 {
		w = 32
	}

	oldSS, oldSP := cpu.seg[segSS].selector, cpu.GPR(regRSP, cpu.stackAddrWidth())
	oldCS, oldIP := cpu.seg[segCS].selector, cpu.rip-cpu.seg[segCS].base

	var params []uint64
	if crossRing {
		for i := uint8(0); i < gate.paramCount; i++ {
			v, f := cpu.readStack(oldSP+uint64(i)*uint64(w/8), w)
			if f != nil {
				return f
			}
			params = append(params, v)
		}

		newSS, newSP, f := cpu.tssStackForRing(targetDPL)
		if f != nil {
			return f
		}
		if f := cpu.loadSegment(segSS, newSS); f != nil {
			return f
		}
		cpu.WriteGPR(regRSP, cpu.stackAddrWidth(), newSP)

		if f := cpu.Push(w, uint64(oldSS)); f != nil {
			return f
		}
		if f := cpu.Push(w, oldSP); f != nil {
			return f
		}
		for i := len(params) - 1; i >= 0; i-- {
			if f := cpu.Push(w, params[i]); f != nil {
				return f
			}
		}
	}

	if f := cpu.Push(w, uint64(oldCS)); f != nil {
		return f
	}
	if f := cpu.Push(w, oldIP); f != nil {
		return f
	}

	if f := cpu.loadSegment(segCS, gate.selector); f != nil {
		return f
	}
	return cpu.jumpNear(cpu.seg[segCS].base + gate.offset)
}

// retNear pops IP/EIP/RIP, optionally adding an immediate count to
// (E/R)SP afterward (the C2/CA forms), per §4.5.
func (cpu *CPU) retNear(ctx *decodeCtx, extraPop uint64) *Fault {
	off, f := cpu.Pop(ctx.opSize)
	if f != nil {
		return f
	}
	if extraPop != 0 {
		aw := cpu.stackAddrWidth()
		cpu.WriteGPR(regRSP, aw, cpu.GPR(regRSP, aw)+extraPop)
	}
	cpu.rip = cpu.seg[segCS].base + off
	return nil
}

// retFar pops IP then CS (and, across a privilege boundary, the outer
// SS:ESP — the ring-3 return path), per §4.5.
func (cpu *CPU) retFar(ctx *decodeCtx, extraPop uint64) *Fault {
	off, f := cpu.Pop(ctx.opSize)
	if f != nil {
		return f
	}
	sel, f := cpu.Pop(ctx.opSize)
	if f != nil {
		return f
	}
	outerRing := cpu.mode != modeReal && uint8(sel)&3 > uint8(cpu.cpl)
	if f := cpu.loadSegment(segCS, uint16(sel)); f != nil {
		return f
	}
	cpu.rip = cpu.seg[segCS].base + off
	if extraPop != 0 {
		aw := cpu.stackAddrWidth()
		cpu.WriteGPR(regRSP, aw, cpu.GPR(regRSP, aw)+extraPop)
	}
	if outerRing {
		newSP, f := cpu.Pop(ctx.opSize)
		if f != nil {
			return f
		}
		newSS, f := cpu.Pop(ctx.opSize)
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

// loopInstr decrements (E)CX at the address width and branches if
// nonzero, per §4.5.
func (cpu *CPU) loopInstr(disp uint64, ctx *decodeCtx, checkZF bool, wantZF bool) *Fault {
	cw := ctx.addrSize
	if cw == 64 {
		cw = 64
	} else if cw == 32 {
		cw = 32
	} else {
		cw = 16
	}
	count := cpu.GPR(regRCX, cw) - 1
	cpu.WriteGPR(regRCX, cw, count)
	take := count != 0
	if take && checkZF {
		take = cpu.flag(flagZF) == wantZF
	}
	if take {
		return cpu.jumpNear(cpu.nearTarget(disp, ctx))
	}
	return nil
}
