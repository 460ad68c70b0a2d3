/*
   x86emu - primary one-byte opcode handlers.

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

import "github.com/rcornwell/x86emu/emu/ioport"

// byteReg reads/writes an 8-bit GPR slot honoring the AH/BH/CH/DH vs
// SPL/BPL/SIL/DIL switch of §4.3.
func (cpu *CPU) readByteReg(ctx *decodeCtx, index uint8) uint64 {
	if !ctx.rexPresent && index >= 4 && index < 8 {
		return cpu.read8h(int(index - 4))
	}
	return cpu.GPR(int(index), 8)
}

func (cpu *CPU) writeByteReg(ctx *decodeCtx, index uint8, value uint64) {
	if !ctx.rexPresent && index >= 4 && index < 8 {
		cpu.write8h(int(index-4), value)
		return
	}
	cpu.WriteGPR(int(index), 8, value)
}

// readRM/writeRM read or write the decoded r/m honoring the byte-reg
// alias rule when width is 8.
func (cpu *CPU) readRM(ctx *decodeCtx, width int) (uint64, *Fault) {
	if ctx.eaIsReg && width == 8 {
		return cpu.readByteReg(ctx, ctx.rm), nil
	}
	return cpu.readEA(ctx, width)
}

func (cpu *CPU) writeRM(ctx *decodeCtx, width int, value uint64) *Fault {
	if ctx.eaIsReg && width == 8 {
		cpu.writeByteReg(ctx, ctx.rm, value)
		return nil
	}
	return cpu.writeEA(ctx, width, value)
}

func (cpu *CPU) readReg(ctx *decodeCtx, width int) uint64 {
	if width == 8 {
		return cpu.readByteReg(ctx, ctx.regField)
	}
	return cpu.GPR(int(ctx.regField), width)
}

func (cpu *CPU) writeReg(ctx *decodeCtx, width int, value uint64) {
	if width == 8 {
		cpu.writeByteReg(ctx, ctx.regField, value)
		return
	}
	cpu.WriteGPR(int(ctx.regField), width, value)
}

// binOpEbGb etc. implement the eight-opcode families (ADD, OR, ADC,
// SBB, AND, SUB, XOR, CMP), each laid out in the classic four-form
// block (Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev / AL,Ib / Ax,Iz).
func makeBinOp(digit uint8) func(direction int, immForm bool) opHandler {
	return func(direction int, immForm bool) opHandler {
		return func(cpu *CPU, ctx *decodeCtx) *Fault {
			if immForm {
				width := ctx.opSize
				if direction == 0 {
					width = 8
				}
				a := cpu.readReg2(regRAX, width, ctx)
				immWidth := width
				if immWidth > 32 {
					immWidth = 32
				}
				imm, f := cpu.fetchImm(immWidth)
				if f != nil {
					return f
				}
				result := cpu.aluBinary(digit, a, signExtend(imm, immWidth)&widthMask(width), width)
				if digit != 7 {
					cpu.WriteGPR(regRAX, width, result)
				}
				return nil
			}
			width := 8
			if direction&1 != 0 {
				width = ctx.opSize
			}
			if f := cpu.decodeModRM(ctx); f != nil {
				return f
			}
			if direction < 2 {
				// Eb,Gb / Ev,Gv : r/m is destination
				a, f := cpu.readRM(ctx, width)
				if f != nil {
					return f
				}
				b := cpu.readReg(ctx, width)
				result := cpu.aluBinary(digit, a, b, width)
				if digit != 7 {
					return cpu.writeRM(ctx, width, result)
				}
				return nil
			}
			// Gb,Eb / Gv,Ev : register is destination
			a := cpu.readReg(ctx, width)
			b, f := cpu.readRM(ctx, width)
			if f != nil {
				return f
			}
			result := cpu.aluBinary(digit, a, b, width)
			if digit != 7 {
				cpu.writeReg(ctx, width, result)
			}
			return nil
		}
	}
}

func (cpu *CPU) readReg2(index int, width int, _ *decodeCtx) uint64 {
	return cpu.GPR(index, width)
}

// mov handlers.

func movEbGb(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	return cpu.writeRM(ctx, 8, cpu.readReg(ctx, 8))
}

func movEvGv(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	return cpu.writeRM(ctx, ctx.opSize, cpu.readReg(ctx, ctx.opSize))
}

func movGbEb(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	v, f := cpu.readRM(ctx, 8)
	if f != nil {
		return f
	}
	cpu.writeReg(ctx, 8, v)
	return nil
}

func movGvEv(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	v, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	cpu.writeReg(ctx, ctx.opSize, v)
	return nil
}

func movEbIb(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	return cpu.writeRM(ctx, 8, imm)
}

func movEvIz(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	immWidth := ctx.opSize
	if immWidth > 32 {
		immWidth = 32
	}
	imm, f := cpu.fetchImm(immWidth)
	if f != nil {
		return f
	}
	return cpu.writeRM(ctx, ctx.opSize, signExtend(imm, immWidth)&widthMask(ctx.opSize))
}

// makeMovRegImm builds the B0-BF family: MOV r, imm.
func makeMovRegImm(byteForm bool) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		regIndex := int(ctx.opcode&0xf) % 8
		if ctx.rexB {
			regIndex |= 8
		}
		width := ctx.opSize
		if byteForm {
			width = 8
		}
		imm, f := cpu.fetchImm(width)
		if f != nil {
			return f
		}
		if byteForm {
			if !ctx.rexPresent && regIndex >= 4 && regIndex < 8 {
				cpu.write8h(regIndex-4, imm)
			} else {
				cpu.WriteGPR(regIndex, 8, imm)
			}
			return nil
		}
		cpu.WriteGPR(regIndex, width, imm)
		return nil
	}
}

func lea(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	if ctx.eaIsReg {
		return fault(vecUD)
	}
	cpu.writeReg(ctx, ctx.opSize, ctx.ea)
	return nil
}

func movEvSw(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	seg := int(ctx.regField) & 7
	return cpu.writeRM(ctx, 16, uint64(cpu.seg[seg%6].selector))
}

func movSwEv(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	seg := int(ctx.regField) & 7 % 6
	v, f := cpu.readRM(ctx, 16)
	if f != nil {
		return f
	}
	return cpu.loadSegment(seg, uint16(v))
}

// xchg

func xchgEbGb(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, 8)
	if f != nil {
		return f
	}
	b := cpu.readReg(ctx, 8)
	if f := cpu.writeRM(ctx, 8, b); f != nil {
		return f
	}
	cpu.writeReg(ctx, 8, a)
	return nil
}

func xchgEvGv(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	b := cpu.readReg(ctx, ctx.opSize)
	if f := cpu.writeRM(ctx, ctx.opSize, b); f != nil {
		return f
	}
	cpu.writeReg(ctx, ctx.opSize, a)
	return nil
}

func makeXchgAX(regOffset uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		r := int(regOffset)
		if ctx.rexB {
			r |= 8
		}
		if regOffset == 0 {
			return nil // 0x90 is NOP
		}
		a := cpu.GPR(regRAX, ctx.opSize)
		b := cpu.GPR(r, ctx.opSize)
		cpu.WriteGPR(regRAX, ctx.opSize, b)
		cpu.WriteGPR(r, ctx.opSize, a)
		return nil
	}
}

// push/pop reg

func makePushReg(offset uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		r := int(offset)
		if ctx.rexB {
			r |= 8
		}
		w := ctx.opSize
		if w == 32 && cpu.mode == modeLong {
			w = 64
		}
		return cpu.Push(w, cpu.GPR(r, w))
	}
}

func makePopReg(offset uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		r := int(offset)
		if ctx.rexB {
			r |= 8
		}
		w := ctx.opSize
		if w == 32 && cpu.mode == modeLong {
			w = 64
		}
		v, f := cpu.Pop(w)
		if f != nil {
			return f
		}
		cpu.WriteGPR(r, w, v)
		return nil
	}
}

func pushIz(cpu *CPU, ctx *decodeCtx) *Fault {
	immWidth := ctx.opSize
	if immWidth > 32 {
		immWidth = 32
	}
	imm, f := cpu.fetchImm(immWidth)
	if f != nil {
		return f
	}
	return cpu.Push(ctx.opSize, signExtend(imm, immWidth))
}

func pushIb(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	return cpu.Push(ctx.opSize, signExtend(imm, 8))
}

func makePushSeg(seg int) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		return cpu.Push(ctx.opSize, uint64(cpu.seg[seg].selector))
	}
}

func makePopSeg(seg int) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		v, f := cpu.Pop(ctx.opSize)
		if f != nil {
			return f
		}
		return cpu.loadSegment(seg, uint16(v))
	}
}

// inc/dec reg (legacy 0x40-0x4F - unused in long mode, that range is REX).

func makeIncReg(offset uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		cf := cpu.flag(flagCF)
		r := int(offset)
		cpu.WriteGPR(r, ctx.opSize, cpu.incFlags(cpu.GPR(r, ctx.opSize), ctx.opSize))
		cpu.setFlagBit(flagCF, cf)
		return nil
	}
}

func makeDecReg(offset uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		cf := cpu.flag(flagCF)
		r := int(offset)
		cpu.WriteGPR(r, ctx.opSize, cpu.decFlags(cpu.GPR(r, ctx.opSize), ctx.opSize))
		cpu.setFlagBit(flagCF, cf)
		return nil
	}
}

// test

func testEbGb(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, 8)
	if f != nil {
		return f
	}
	cpu.logicFlags(a&cpu.readReg(ctx, 8), 8)
	return nil
}

func testEvGv(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	cpu.logicFlags(a&cpu.readReg(ctx, ctx.opSize), ctx.opSize)
	return nil
}

func testALIb(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	cpu.logicFlags(cpu.GPR(regRAX, 8)&imm, 8)
	return nil
}

func testAXIz(cpu *CPU, ctx *decodeCtx) *Fault {
	w := ctx.opSize
	iw := w
	if iw > 32 {
		iw = 32
	}
	imm, f := cpu.fetchImm(iw)
	if f != nil {
		return f
	}
	cpu.logicFlags(cpu.GPR(regRAX, w)&signExtend(imm, iw), w)
	return nil
}

// string instruction widths are byte for the *b forms, operand size
// for the *z/*w/*d forms.

func movsb(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repMovs(ctx, 8) }
func movsz(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repMovs(ctx, ctx.opSize) }
func stosb(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repStos(ctx, 8) }
func stosz(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repStos(ctx, ctx.opSize) }
func lodsb(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repLods(ctx, 8) }
func lodsz(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repLods(ctx, ctx.opSize) }
func cmpsb(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repCmps(ctx, 8) }
func cmpsz(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repCmps(ctx, ctx.opSize) }
func scasb(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repScas(ctx, 8) }
func scasz(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repScas(ctx, ctx.opSize) }
func insb(cpu *CPU, ctx *decodeCtx) *Fault  { return cpu.repIns(ctx, 8) }
func insz(cpu *CPU, ctx *decodeCtx) *Fault  { return cpu.repIns(ctx, ctx.opSize) }
func outsb(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repOuts(ctx, 8) }
func outsz(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.repOuts(ctx, ctx.opSize) }

// flag instructions

func clc(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagCF, false); return nil }
func stc(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagCF, true); return nil }
func cmc(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagCF, !cpu.flag(flagCF)); return nil }
func cli(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagIF, false); return nil }
func sti(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagIF, true); return nil }
func cld(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagDF, false); return nil }
func std(cpu *CPU, _ *decodeCtx) *Fault { cpu.setFlagBit(flagDF, true); return nil }

func hlt(cpu *CPU, _ *decodeCtx) *Fault { cpu.halted = true; return nil }

func nop(cpu *CPU, _ *decodeCtx) *Fault { return nil }

func pushf(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.Push(ctx.opSize, cpu.rflags) }

func popf(cpu *CPU, ctx *decodeCtx) *Fault {
	v, f := cpu.Pop(ctx.opSize)
	if f != nil {
		return f
	}
	cpu.setRFlags((cpu.rflags &^ widthMask(ctx.opSize)) | (v & widthMask(ctx.opSize)))
	return nil
}

func sahf(cpu *CPU, _ *decodeCtx) *Fault {
	ah := cpu.read8h(regRAX)
	cpu.setRFlags((cpu.rflags &^ 0xff) | (ah & 0xd5) | flagR1)
	return nil
}

func lahf(cpu *CPU, _ *decodeCtx) *Fault {
	cpu.write8h(regRAX, cpu.rflags&0xff)
	return nil
}

// jcc short, rel8

func makeJccShort(cond uint8) opHandler {
	return func(cpu *CPU, ctx *decodeCtx) *Fault {
		disp, f := cpu.fetchImm(8)
		if f != nil {
			return f
		}
		if cpu.evalCond(cond) {
			return cpu.jumpNear(cpu.nearTarget(signExtend(disp, 8), ctx))
		}
		return nil
	}
}

func jmpShort(cpu *CPU, ctx *decodeCtx) *Fault {
	disp, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	return cpu.jumpNear(cpu.nearTarget(signExtend(disp, 8), ctx))
}

func jmpNear(cpu *CPU, ctx *decodeCtx) *Fault {
	iw := ctx.opSize
	if iw > 32 {
		iw = 32
	}
	disp, f := cpu.fetchImm(iw)
	if f != nil {
		return f
	}
	return cpu.jumpNear(cpu.nearTarget(signExtend(disp, iw), ctx))
}

func callNearOp(cpu *CPU, ctx *decodeCtx) *Fault {
	iw := ctx.opSize
	if iw > 32 {
		iw = 32
	}
	disp, f := cpu.fetchImm(iw)
	if f != nil {
		return f
	}
	return cpu.callNear(signExtend(disp, iw), ctx)
}

func callFarOp(cpu *CPU, ctx *decodeCtx) *Fault {
	offset, f := cpu.fetchImm(ctx.opSize)
	if f != nil {
		return f
	}
	sel, f := cpu.fetchImm(16)
	if f != nil {
		return f
	}
	return cpu.callFar(uint16(sel), offset, ctx)
}

func jmpFarOp(cpu *CPU, ctx *decodeCtx) *Fault {
	offset, f := cpu.fetchImm(ctx.opSize)
	if f != nil {
		return f
	}
	sel, f := cpu.fetchImm(16)
	if f != nil {
		return f
	}
	if f := cpu.loadSegment(segCS, uint16(sel)); f != nil {
		return f
	}
	return cpu.jumpNear(cpu.seg[segCS].base + offset)
}

func retNearOp(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.retNear(ctx, 0) }

func retNearIwOp(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(16)
	if f != nil {
		return f
	}
	return cpu.retNear(ctx, imm)
}

func retFarOp(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.retFar(ctx, 0) }

func retFarIwOp(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(16)
	if f != nil {
		return f
	}
	return cpu.retFar(ctx, imm)
}

func loopnz(cpu *CPU, ctx *decodeCtx) *Fault {
	disp, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	return cpu.loopInstr(signExtend(disp, 8), ctx, true, false)
}

func loopz(cpu *CPU, ctx *decodeCtx) *Fault {
	disp, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	return cpu.loopInstr(signExtend(disp, 8), ctx, true, true)
}

func loopInsn(cpu *CPU, ctx *decodeCtx) *Fault {
	disp, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	return cpu.loopInstr(signExtend(disp, 8), ctx, false, false)
}

func jcxz(cpu *CPU, ctx *decodeCtx) *Fault {
	disp, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	if cpu.GPR(regRCX, ctx.addrSize) == 0 {
		return cpu.jumpNear(cpu.nearTarget(signExtend(disp, 8), ctx))
	}
	return nil
}

func int3(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.raiseInterrupt(vecBP, nil, true) }

func intIb(cpu *CPU, ctx *decodeCtx) *Fault {
	v, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	if h, ok := cpu.bios[uint8(v)]; ok && cpu.idtEntryIsStub(uint8(v)) {
		h(cpu)
		return nil
	}
	return cpu.raiseInterrupt(uint8(v), nil, true)
}

func into(cpu *CPU, ctx *decodeCtx) *Fault {
	if cpu.flag(flagOF) {
		return cpu.raiseInterrupt(vecOF, nil, true)
	}
	return nil
}

func iretOp(cpu *CPU, ctx *decodeCtx) *Fault { return cpu.iret(ctx) }

// idtEntryIsStub checks whether the real-mode IVT entry for v still
// points at the canonical ROM stub, per §6's interrupt service
// collaborator contract.
func (cpu *CPU) idtEntryIsStub(v uint8) bool {
	if cpu.mode != modeReal {
		return false
	}
	entry := uint64(v) * 4
	buf := make([]byte, 4)
	if f := cpu.ReadLinear(entry, buf); f != nil {
		return false
	}
	off := uint16(buf[0]) | uint16(buf[1])<<8
	seg := uint16(buf[2]) | uint16(buf[3])<<8
	return seg == defaultStubSeg && off == defaultStubOff
}

// in/out, port-relative immediate and DX forms.

func inALIb(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	cpu.WriteGPR(regRAX, 8, uint64(ioport.In(uint16(imm), 1)))
	return nil
}

func inAXIb(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	cpu.WriteGPR(regRAX, ctx.opSize, uint64(ioport.In(uint16(imm), ctx.opSize/8)))
	return nil
}

func outIbAL(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	ioport.Out(uint16(imm), 1, uint32(cpu.GPR(regRAX, 8)))
	return nil
}

func outIbAX(cpu *CPU, ctx *decodeCtx) *Fault {
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	ioport.Out(uint16(imm), ctx.opSize/8, uint32(cpu.GPR(regRAX, ctx.opSize)))
	return nil
}

func inALDX(cpu *CPU, ctx *decodeCtx) *Fault {
	cpu.WriteGPR(regRAX, 8, uint64(ioport.In(uint16(cpu.GPR(regRDX, 16)), 1)))
	return nil
}

func inAXDX(cpu *CPU, ctx *decodeCtx) *Fault {
	cpu.WriteGPR(regRAX, ctx.opSize, uint64(ioport.In(uint16(cpu.GPR(regRDX, 16)), ctx.opSize/8)))
	return nil
}

func outDXAL(cpu *CPU, ctx *decodeCtx) *Fault {
	ioport.Out(uint16(cpu.GPR(regRDX, 16)), 1, uint32(cpu.GPR(regRAX, 8)))
	return nil
}

func outDXAX(cpu *CPU, ctx *decodeCtx) *Fault {
	ioport.Out(uint16(cpu.GPR(regRDX, 16)), ctx.opSize/8, uint32(cpu.GPR(regRAX, ctx.opSize)))
	return nil
}

// cbw/cwde/cdqe and cwd/cdq/cqo sign-extend AX into AX:DX-style pairs.

func cbw(cpu *CPU, ctx *decodeCtx) *Fault {
	switch ctx.opSize {
	case 16:
		cpu.WriteGPR(regRAX, 16, uint64(int64(int8(cpu.GPR(regRAX, 8))))&0xffff)
	case 32:
		cpu.WriteGPR(regRAX, 32, uint64(int64(int16(cpu.GPR(regRAX, 16))))&0xffffffff)
	default:
		cpu.WriteGPR(regRAX, 64, uint64(int64(int32(cpu.GPR(regRAX, 32)))))
	}
	return nil
}

func cwd(cpu *CPU, ctx *decodeCtx) *Fault {
	switch ctx.opSize {
	case 16:
		v := int16(cpu.GPR(regRAX, 16))
		if v < 0 {
			cpu.WriteGPR(regRDX, 16, 0xffff)
		} else {
			cpu.WriteGPR(regRDX, 16, 0)
		}
	case 32:
		v := int32(cpu.GPR(regRAX, 32))
		if v < 0 {
			cpu.WriteGPR(regRDX, 32, 0xffffffff)
		} else {
			cpu.WriteGPR(regRDX, 32, 0)
		}
	default:
		v := int64(cpu.GPR(regRAX, 64))
		if v < 0 {
			cpu.WriteGPR(regRDX, 64, ^uint64(0))
		} else {
			cpu.WriteGPR(regRDX, 64, 0)
		}
	}
	return nil
}

func xlat(cpu *CPU, ctx *decodeCtx) *Fault {
	seg := segDS
	if ctx.segOverride >= 0 {
		seg = ctx.segOverride
	}
	addr := cpu.seg[seg].base + cpu.GPR(regRBX, ctx.addrSize) + (cpu.GPR(regRAX, 8) & 0xff)
	buf := make([]byte, 1)
	if f := cpu.ReadLinear(addr, buf); f != nil {
		return f
	}
	cpu.WriteGPR(regRAX, 8, uint64(buf[0]))
	return nil
}

func imulGvEvIz(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	iw := ctx.opSize
	if iw > 32 {
		iw = 32
	}
	imm, f := cpu.fetchImm(iw)
	if f != nil {
		return f
	}
	result := cpu.imul3(int64(signExtend(a, ctx.opSize)), int64(signExtend(imm, iw)), ctx.opSize)
	cpu.writeReg(ctx, ctx.opSize, result)
	return nil
}

func imulGvEvIb(cpu *CPU, ctx *decodeCtx) *Fault {
	if f := cpu.decodeModRM(ctx); f != nil {
		return f
	}
	a, f := cpu.readRM(ctx, ctx.opSize)
	if f != nil {
		return f
	}
	imm, f := cpu.fetchImm(8)
	if f != nil {
		return f
	}
	result := cpu.imul3(int64(signExtend(a, ctx.opSize)), int64(signExtend(imm, 8)), ctx.opSize)
	cpu.writeReg(ctx, ctx.opSize, result)
	return nil
}

// opSizePrefix/segment override/REX bytes never reach the handler
// table - the decoder consumes them in the prefix loop - so 0x26,
// 0x2E, 0x36, 0x3E, 0x64-0x67, 0xF0, 0xF2, 0xF3 have no entries here.
