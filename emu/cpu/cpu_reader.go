/*
   x86emu - instruction stream reader and ModR/M + SIB decode.

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

// fetchByte/fetchWord/.../ advance cpu.rip as each field is consumed,
// the stream-reader cursor contract of §4.2, grounded on the
// cpu.PC-advances-per-field shape of the teacher's readFullAligned
// family in the original fetch loop.

func (cpu *CPU) fetchByte() (byte, *Fault) {
	var b [1]byte
	if f := cpu.ReadLinear(cpu.rip, b[:]); f != nil {
		return 0, f
	}
	cpu.rip++
	return b[0], nil
}

func (cpu *CPU) fetchBytes(n int) (uint64, *Fault) {
	buf := make([]byte, n)
	if f := cpu.ReadLinear(cpu.rip, buf); f != nil {
		return 0, f
	}
	cpu.rip += uint64(n)
	return getLE(buf), nil
}

func (cpu *CPU) fetchImm(width int) (uint64, *Fault) {
	return cpu.fetchBytes(width / 8)
}

func signExtend(v uint64, width int) uint64 {
	switch width {
	case 8:
		return uint64(int64(int8(v)))
	case 16:
		return uint64(int64(int16(v)))
	case 32:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

// decodeModRM reads the ModR/M byte (and SIB/displacement if present),
// computing the effective address exactly once per instruction — the
// single-consumption rule of §4.2's side contract, addressing the
// REDESIGN FLAG about re-consumed displacement bytes. Any immediate
// that follows must be fetched by the caller only after this returns.
func (cpu *CPU) decodeModRM(ctx *decodeCtx) *Fault {
	b, f := cpu.fetchByte()
	if f != nil {
		return f
	}
	ctx.modrm = b
	ctx.haveModRM = true
	ctx.mod = b >> 6
	reg := (b >> 3) & 7
	rm := b & 7
	if ctx.rexR {
		reg |= 8
	}
	ctx.regField = reg

	if ctx.mod == 3 {
		ctx.eaIsReg = true
		if ctx.rexB {
			rm |= 8
		}
		ctx.rm = rm
		return nil
	}
	ctx.eaIsReg = false
	ctx.rm = rm

	if ctx.addrSize == 16 {
		return cpu.decodeModRM16(ctx, rm)
	}
	return cpu.decodeModRM3264(ctx, rm)
}

// decodeModRM16 implements the legacy 16-bit addressing table of §4.2.
func (cpu *CPU) decodeModRM16(ctx *decodeCtx, rm uint8) *Fault {
	var base uint64
	haveDisp16Only := false

	switch rm {
	case 0:
		base = cpu.GPR(regRBX, 16) + cpu.GPR(regRSI, 16)
	case 1:
		base = cpu.GPR(regRBX, 16) + cpu.GPR(regRDI, 16)
	case 2:
		base = cpu.GPR(regRBP, 16) + cpu.GPR(regRSI, 16)
	case 3:
		base = cpu.GPR(regRBP, 16) + cpu.GPR(regRDI, 16)
	case 4:
		base = cpu.GPR(regRSI, 16)
	case 5:
		base = cpu.GPR(regRDI, 16)
	case 6:
		if ctx.mod == 0 {
			haveDisp16Only = true
		} else {
			base = cpu.GPR(regRBP, 16)
		}
	case 7:
		base = cpu.GPR(regRBX, 16)
	}

	var disp uint64
	switch {
	case haveDisp16Only:
		v, f := cpu.fetchBytes(2)
		if f != nil {
			return f
		}
		disp = v
	case ctx.mod == 1:
		v, f := cpu.fetchByte()
		if f != nil {
			return f
		}
		disp = signExtend(uint64(v), 8)
	case ctx.mod == 2:
		v, f := cpu.fetchBytes(2)
		if f != nil {
			return f
		}
		disp = v
	}

	ctx.ea = cpu.effectiveSegmentBase(ctx, rm) + ((base + disp) & 0xffff)
	ctx.eaValid = true
	return nil
}

// decodeModRM3264 implements 32/64-bit addressing: r/m as base, SIB
// escape on r/m=100, and the disp32/RIP-relative special case on
// r/m=101 with mod=00, per §4.2.
func (cpu *CPU) decodeModRM3264(ctx *decodeCtx, rm uint8) *Fault {
	var base uint64
	haveBase := true
	isRipRel := false

	rmFull := rm
	if ctx.rexB {
		rmFull |= 8
	}

	if rm == 4 {
		sib, f := cpu.fetchByte()
		if f != nil {
			return f
		}
		scale := uint(1) << (sib >> 6)
		index := (sib >> 3) & 7
		sibBase := sib & 7
		if ctx.rexX {
			index |= 8
		}
		if ctx.rexB {
			sibBase |= 8
		}

		var indexVal uint64
		if index != 4 { // index=100 means no index
			indexVal = cpu.GPR(int(index), ctx.addrSize) * uint64(scale)
		}

		if sibBase&7 == 5 && ctx.mod == 0 {
			disp, f := cpu.fetchBytes(4)
			if f != nil {
				return f
			}
			base = indexVal + signExtend(disp, 32)
		} else {
			base = indexVal + cpu.GPR(int(sibBase), ctx.addrSize)
		}
	} else if rm == 5 && ctx.mod == 0 {
		disp, f := cpu.fetchBytes(4)
		if f != nil {
			return f
		}
		if ctx.addrSize == 64 {
			isRipRel = true
			base = signExtend(disp, 32)
		} else {
			base = signExtend(disp, 32)
			haveBase = false
		}
	} else {
		base = cpu.GPR(int(rmFull), ctx.addrSize)
	}

	var disp uint64
	switch ctx.mod {
	case 1:
		v, f := cpu.fetchByte()
		if f != nil {
			return f
		}
		disp = signExtend(uint64(v), 8)
	case 2:
		v, f := cpu.fetchBytes(4)
		if f != nil {
			return f
		}
		disp = signExtend(v, 32)
	}

	addrMask := uint64(0xffffffff)
	if ctx.addrSize == 64 {
		addrMask = ^uint64(0)
	}

	if isRipRel {
		ctx.ea = cpu.effectiveSegmentBase(ctx, rmFull) + ((cpu.rip + base) & addrMask)
	} else if haveBase {
		ctx.ea = cpu.effectiveSegmentBase(ctx, rmFull) + ((base + disp) & addrMask)
	} else {
		ctx.ea = cpu.effectiveSegmentBase(ctx, rmFull) + (base & addrMask)
	}
	ctx.eaValid = true
	return nil
}

// effectiveSegmentBase picks the default segment (data segments default
// to DS, stack-pointing modes [BP-based r/m in 16-bit mode, RSP/RBP
// base in 32/64-bit] to SS) unless a segment-override prefix is
// present, per §4.2. In 64-bit mode only FS/GS contribute a nonzero
// base; CS/DS/ES/SS are treated as zero.
func (cpu *CPU) effectiveSegmentBase(ctx *decodeCtx, rm uint8) uint64 {
	if ctx.segOverride >= 0 {
		return cpu.segBaseForAddressing(ctx.segOverride)
	}
	stackPointing := false
	if ctx.addrSize == 16 {
		stackPointing = rm == 2 || rm == 3 || (rm == 6 && ctx.mod != 0)
	} else {
		stackPointing = (rm&7) == 4 || (rm&7) == 5
	}
	if stackPointing {
		return cpu.segBaseForAddressing(segSS)
	}
	return cpu.segBaseForAddressing(segDS)
}

func (cpu *CPU) segBaseForAddressing(seg int) uint64 {
	if cpu.mode == modeLong && seg != segFS && seg != segGS {
		return 0
	}
	return cpu.seg[seg].base
}

// readEA reads the operand at the decoded r/m: a register or the
// computed effective address.
func (cpu *CPU) readEA(ctx *decodeCtx, width int) (uint64, *Fault) {
	if ctx.eaIsReg {
		return cpu.GPR(int(ctx.rm), width), nil
	}
	buf := make([]byte, width/8)
	if f := cpu.ReadLinear(ctx.ea, buf); f != nil {
		return 0, f
	}
	return getLE(buf), nil
}

// writeEA writes value to the decoded r/m.
func (cpu *CPU) writeEA(ctx *decodeCtx, width int, value uint64) *Fault {
	if ctx.eaIsReg {
		cpu.WriteGPR(int(ctx.rm), width, value)
		return nil
	}
	buf := make([]byte, width/8)
	putLE(buf, value)
	return cpu.WriteLinear(ctx.ea, buf)
}
