/*
   x86emu - two-byte (0F-escape) opcode handlers.

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

// makeJccLong builds the 0F 80-8F family: Jcc rel16/32, sharing the
// condition table of §4.5 with the short form and with SETcc/CMOVcc.
func makeJccLong(cond uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		iw := ctx.opSize
		if iw > 32 {
			iw = 32
		}
		disp, f := cpu.fetchImm(iw)
		if f != nil {
			return f
		}
		if cpu.evalCond(cond) {
			return cpu.jumpNear(cpu.nearTarget(signExtend(disp, iw), ctx))
		}
		return nil
	}
}

// makeSetcc builds the 0F 90-9F family: SETcc Eb.
func makeSetcc(cond uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		v := uint64(0)
		if cpu.evalCond(cond) {
			v = 1
		}
		return cpu.writeRM(ctx, 8, v)
	}
}

// makeCmovcc builds the 0F 40-4F family: CMOVcc Gv,Ev.
func makeCmovcc(cond uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		v, f := cpu.readRM(ctx, ctx.opSize)
		if f != nil {
			return f
		}
		if cpu.evalCond(cond) {
			cpu.writeReg(ctx, ctx.opSize, v)
		}
		return nil
	}
}

func bsfOp(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	v, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	idx, ok := cpu.bsf(v, ctx.opSize)
	if ok {
		cpu.writeReg(ctx, ctx.opSize, idx)
	}
	return nil
}

func bsrOp(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	v, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	idx, ok := cpu.bsr(v, ctx.opSize)
	if ok {
		cpu.writeReg(ctx, ctx.opSize, idx)
	}
	return nil
}

func imulGvEv(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a := cpu.readReg(ctx, ctx.opSize)
	b, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	result := cpu.imul3(int64(signExtend(a, ctx.opSize)), int64(signExtend(b, ctx.opSize)), ctx.opSize)
	cpu.writeReg(ctx, ctx.opSize, result)
	return nil
}

// movzx/movsx zero- or sign-extend a narrower r/m into a wider
// register, per §4.3.
func makeMovx(srcWidth int, signed bool) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		v, f := cpu.readRM(ctx, srcWidth)
		if f != nil {
			return f
		}
		if signed {
			v = signExtend(v, srcWidth) & widthMask(ctx.opSize)
		}
		cpu.writeReg(ctx, ctx.opSize, v)
		return nil
	}
}

// bt/bts/btr/btc Ev,Gv: CF gets the tested bit.
func makeBt(mutate int) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		bitIndex := cpu.readReg(ctx, ctx.opSize) % uint64(ctx.opSize)
		a, f := cpu.readRM(ctx, ctx.opSize)
		if f != nil {
			return f
		}
		bit := (a >> bitIndex) & 1
		cpu.setFlagBit(flagCF, bit != 0)
		switch mutate {
		case 1: // BTS
			return cpu.writeRM(ctx, ctx.opSize, a|(1<<bitIndex))
		case 2: // BTR
			return cpu.writeRM(ctx, ctx.opSize, a&^(1<<bitIndex))
		case 3: // BTC
			return cpu.writeRM(ctx, ctx.opSize, a^(1<<bitIndex))
		default: // BT, read only
			return nil
		}
	}
}

func makeBswap(offset uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		r := int(offset)
		if ctx.rexB {
			r |= 8
		}
		w := ctx.opSize
		if w == 16 {
			w = 32 // BSWAP on a 16-bit operand is undefined; treat as 32
		}
		v := cpu.GPR(r, w)
		var out uint64
		n := w / 8
		for i := 0; i < n; i++ {
			out |= ((v >> (8 * i)) & 0xff) << (8 * (n - 1 - i))
		}
		cpu.WriteGPR(r, w, out)
		return nil
	}
}

// cpuid is a minimal stub returning fixed leaf-0/leaf-1 values
// sufficient for guest code that probes for long-mode support, per
// §6's external-interface notes.
func cpuid(cpu *CPU, ctx *decodeCtx) *Fault {
	switch cpu.GPR(regRAX, 32) {
	case 0:
		cpu.WriteGPR(regRAX, 32, 1)
		cpu.WriteGPR(regRBX, 32, 0x756e6547) // "Genu"
		cpu.WriteGPR(regRDX, 32, 0x49656e69) // "ineI"
		cpu.WriteGPR(regRCX, 32, 0x6c65746e) // "ntel"
	default:
		cpu.WriteGPR(regRAX, 32, 0)
		cpu.WriteGPR(regRBX, 32, 0)
		cpu.WriteGPR(regRCX, 32, 1<<29) // report long-mode present (bit kept stable for guests)
		cpu.WriteGPR(regRDX, 32, 1<<29)
	}
	return nil
}

// Group 7 (0F 01): SGDT/SIDT/LGDT/LIDT/SMSW/LMSW, the descriptor-table
// and machine-status loads a protected-mode boot sequence needs before
// the far JMP that actually enters protected mode, per §4.7.
func group7(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	digit := ctx.regField & 7
	switch digit {
	case 0, 1: // SGDT / SIDT
		if ctx.eaIsReg {
			return fault(vecUD)
		}
		table := &cpu.gdtr
		if digit == 1 {
			table = &cpu.idtr
		}
		buf := make([]byte, 2)
		putLE(buf[:2], uint64(table.limit))
		if f := cpu.WriteLinear(ctx.ea, buf); f != nil {
			return f
		}
		baseBuf := make([]byte, 4)
		putLE(baseBuf, table.base)
		return cpu.WriteLinear(ctx.ea+2, baseBuf)
	case 2, 3: // LGDT / LIDT
		if ctx.eaIsReg {
			return fault(vecUD)
		}
		limBuf := make([]byte, 2)
		if f := cpu.ReadLinear(ctx.ea, limBuf); f != nil {
			return f
		}
		baseBuf := make([]byte, 4)
		if f := cpu.ReadLinear(ctx.ea+2, baseBuf); f != nil {
			return f
		}
		table := &cpu.gdtr
		if digit == 3 {
			table = &cpu.idtr
		}
		table.limit = uint32(getLE(limBuf))
		table.base = getLE(baseBuf)
		return nil
	case 4: // SMSW
		return cpu.writeRM(ctx, ctx.opSize, cpu.cr[0]&0xffff)
	case 6: // LMSW
		v, f := cpu.readRM(ctx, 16)
		if f != nil {
			return f
		}
		cpu.writeCR(0, (cpu.cr[0]&^uint64(0xf))|(v&0xf))
		return nil
	default:
		return fault(vecUD)
	}
}

// Group 6 (0F 00): SLDT/STR/LLDT/LTR/VERR/VERW - minimal LDTR/TR
// handling, sufficient for a kernel that loads a flat LDT/TSS once.
func group6(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	digit := ctx.regField & 7
	switch digit {
	case 0: // SLDT
		return cpu.writeRM(ctx, ctx.opSize, uint64(cpu.ldtr.selector))
	case 1: // STR
		return cpu.writeRM(ctx, ctx.opSize, uint64(cpu.tr.selector))
	case 2: // LLDT
		v, f := cpu.readRM(ctx, 16)
		if f != nil {
			return f
		}
		return cpu.loadLDTR(uint16(v))
	case 3: // LTR
		v, f := cpu.readRM(ctx, 16)
		if f != nil {
			return f
		}
		cpu.tr.selector = uint16(v)
		return nil
	default:
		return nil // VERR/VERW: accept unconditionally
	}
}

func movCRFromGPR(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	n := int(ctx.regField & 7)
	cpu.writeCR(n, cpu.GPR(int(ctx.rm), 32))
	return nil
}

func movGPRFromCR(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	n := int(ctx.regField & 7)
	cpu.WriteGPR(int(ctx.rm), 32, cpu.readCR(n))
	return nil
}

func clts(cpu *CPU, _ *decodeCtx) *Fault {
	cpu.cr[0] &^= 1 << 3 // TS
	return nil
}
