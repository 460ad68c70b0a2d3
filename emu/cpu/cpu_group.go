/*
   x86emu - Group opcode dispatch: ALU Group 1, shift Group 2, Group 3
   (TEST/NOT/NEG/MUL/IMUL/DIV/IDIV), Group 4/5 (INC/DEC/CALL/JMP/PUSH).

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

// Group 1: 80 Eb,Ib / 81 Ev,Iz / 83 Ev,Ib. The /digit in ModRM.reg
// selects ADD/OR/ADC/SBB/AND/SUB/XOR/CMP, per §4.4's aluBinary table.
func makeGroup1(width int, immWidth int, signExtendImm bool) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		w := width
		if w == 0 {
			w = ctx.opSize
		}
		a, f := cpu.readRM(ctx, w)
		if f != nil {
			return f
		}
		iw := immWidth
		if iw == 0 {
			iw = w
			if iw > 32 {
				iw = 32
			}
		}
		imm, f := cpu.fetchImm(iw)
		if f != nil {
			return f
		}
		b := imm
		if signExtendImm {
			b = signExtend(imm, iw) & widthMask(w)
		}
		digit := ctx.regField & 7
		result := cpu.aluBinary(digit, a, b, w)
		if digit != 7 { // CMP does not write back
			return cpu.writeRM(ctx, w, result)
		}
		return nil
	}
}

// Group 2: shift/rotate family, C0/C1 (count = Ib), D0/D1 (count = 1),
// D2/D3 (count = CL), per §4.4.
func makeGroup2(width int, countKind int) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		w := width
		if w == 0 {
			w = ctx.opSize
		}
		var count uint64
		switch countKind {
		case 0: // immediate
			imm, f := cpu.fetchImm(8)
			if f != nil {
				return f
			}
			count = imm
		case 1: // fixed 1
			count = 1
		default: // CL
			count = cpu.GPR(regRCX, 8) & 0xff
		}
		a, f := cpu.readRM(ctx, w)
		if f != nil {
			return f
		}
		digit := ctx.regField & 7
		result, ok := cpu.aluShift(digit, a, count, w)
		if !ok {
			return nil
		}
		return cpu.writeRM(ctx, w, result)
	}
}

// Group 3 (F6/F7): TEST Ib/Iz, NOT, NEG, MUL, IMUL, DIV, IDIV,
// selected by the ModRM.reg /digit, per §4.4.
func makeGroup3(width int) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		w := width
		if w == 0 {
			w = ctx.opSize
		}
		digit := ctx.regField & 7
		a, f := cpu.readRM(ctx, w)
		if f != nil {
			return f
		}
		switch digit {
		case grp3Test0, grp3Test1:
			iw := w
			if iw > 32 {
				iw = 32
			}
			imm, f := cpu.fetchImm(iw)
			if f != nil {
				return f
			}
			cpu.logicFlags(a&signExtend(imm, iw)&widthMask(w), w)
		case grp3Not:
			return cpu.writeRM(ctx, w, (^a)&widthMask(w))
		case grp3Neg:
			return cpu.writeRM(ctx, w, cpu.negFlags(a, w))
		case grp3Mul:
			cpu.mulUnsigned(a, w)
		case grp3Imul:
			cpu.mulSigned(a, w)
		case grp3Div:
			return cpu.divUnsigned(a, w)
		default: // grp3IDiv
			return cpu.divSigned(a, w)
		}
		return nil
	}
}

const (
	grp3Test0 = iota
	grp3Test1
	grp3Not
	grp3Neg
	grp3Mul
	grp3Imul
	grp3Div
	grp3IDiv
)

// Group 4 (FE): INC/DEC Eb. Group 5 (FF): INC/DEC/CALL/JMP/PUSH Ev,
// per §4.5 for the control-transfer digits.
func makeGroup4(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, 8)
	if f != nil {
		return f
	}
	cf := cpu.flag(flagCF)
	var result uint64
	switch ctx.regField & 7 {
	case 0:
		result = cpu.incFlags(a, 8)
	default:
		result = cpu.decFlags(a, 8)
	}
	cpu.setFlagBit(flagCF, cf)
	return cpu.writeRM(ctx, 8, result)
}

func makeGroup5(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	digit := ctx.regField & 7
	switch digit {
	case 0, 1: // INC/DEC Ev
		w := ctx.opSize
		a, f := cpu.readRM(ctx, w)
		if f != nil {
			return f
		}
		cf := cpu.flag(flagCF)
		var result uint64
		if digit == 0 {
			result = cpu.incFlags(a, w)
		} else {
			result = cpu.decFlags(a, w)
		}
		cpu.setFlagBit(flagCF, cf)
		return cpu.writeRM(ctx, w, result)
	case 2: // CALL near indirect
		target, f := cpu.readRM(ctx, ctx.opSize)
		if f != nil {
			return f
		}
		retOff := cpu.rip - cpu.seg[segCS].base
		if f := cpu.Push(ctx.opSize, retOff); f != nil {
			return f
		}
		return cpu.jumpNear(cpu.seg[segCS].base + target)
	case 3: // CALL far indirect (m16:16/32)
		if ctx.eaIsReg {
			return fault(vecUD)
		}
		offBuf := make([]byte, ctx.opSize/8)
		if f := cpu.ReadLinear(ctx.ea, offBuf); f != nil {
			return f
		}
		selBuf := make([]byte, 2)
		if f := cpu.ReadLinear(ctx.ea+uint64(ctx.opSize/8), selBuf); f != nil {
			return f
		}
		return cpu.callFar(uint16(getLE(selBuf)), getLE(offBuf), ctx)
	case 4: // JMP near indirect
		target, f := cpu.readRM(ctx, ctx.opSize)
		if f != nil {
			return f
		}
		return cpu.jumpNear(cpu.seg[segCS].base + target)
	case 5: // JMP far indirect
		if ctx.eaIsReg {
			return fault(vecUD)
		}
		offBuf := make([]byte, ctx.opSize/8)
		if f := cpu.ReadLinear(ctx.ea, offBuf); f != nil {
			return f
		}
		selBuf := make([]byte, 2)
		if f := cpu.ReadLinear(ctx.ea+uint64(ctx.opSize/8), selBuf); f != nil {
			return f
		}
		if f := cpu.loadSegment(segCS, uint16(getLE(selBuf))); f != nil {
			return f
		}
		return cpu.jumpNear(cpu.seg[segCS].base + getLE(offBuf))
	default: // 6: PUSH Ev
		v, f := cpu.readRM(ctx, ctx.opSize)
		if f != nil {
			return f
		}
		return cpu.Push(ctx.opSize, v)
	}
}
