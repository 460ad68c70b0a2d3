/*
   x86emu - REP string engine: MOVS/STOS/LODS/CMPS/SCAS/INS/OUTS.

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

// stringStep returns the per-iteration address delta: the unit width
// in bytes, signed by DF (negative when DF=1), per §4.6.
func (cpu *CPU) stringStep(width int) int64 {
	step := int64(width / 8)
	if cpu.flag(flagDF) {
		return -step
	}
	return step
}

func (cpu *CPU) countWidth(ctx *decodeCtx) int {
	if ctx.addrSize == 64 {
		return 64
	}
	if ctx.addrSize == 32 {
		return 32
	}
	return 16
}

// repLoop is the driver shared by every string instruction: decrement
// count, execute one iteration, continue per the rep kind and, for
// CMPS/SCAS, the ZF-gated termination rule. This is the generalization
// of the teacher's MVCL/CLCL move/compare-long shape — a count-driven,
// per-step-address-updating loop — to DF-signed stepping and the
// ZF-gate, per §4.6.
func (cpu *CPU) repLoop(ctx *decodeCtx, zfGated bool, iter func() *Fault) *Fault {
	cw := cpu.countWidth(ctx)
	if ctx.repKind == repNone {
		return iter()
	}
	count := cpu.GPR(regRCX, cw)
	if count == 0 {
		return nil
	}
	for count != 0 {
		count--
		cpu.WriteGPR(regRCX, cw, count)
		if f := iter(); f != nil {
			// Cancellation: ECX already reflects the unfinished
			// iteration (decremented before the fault), per §4.6.
			return f
		}
		if !zfGated {
			if count == 0 {
				break
			}
			continue
		}
		wantZF := ctx.repKind == repZ
		if count == 0 || cpu.flag(flagZF) != wantZF {
			break
		}
	}
	return nil
}

// movs copies one unit from DS:SI (or segment-override) to ES:DI.
func (cpu *CPU) movsIter(ctx *decodeCtx, width int) *Fault {
	srcSeg := segDS
	if ctx.segOverride >= 0 {
		srcSeg = ctx.segOverride
	}
	si := cpu.GPR(regRSI, ctx.addrSize)
	di := cpu.GPR(regRDI, ctx.addrSize)
	buf := make([]byte, width/8)
	if f := cpu.ReadLinear(cpu.seg[srcSeg].base+si, buf); f != nil {
		return f
	}
	if f := cpu.WriteLinear(cpu.seg[segES].base+di, buf); f != nil {
		return f
	}
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRSI, ctx.addrSize, uint64(int64(si)+step))
	cpu.WriteGPR(regRDI, ctx.addrSize, uint64(int64(di)+step))
	return nil
}

// repMovs runs the MOVS driver, applying the bulk fast path of §4.6
// when the source/destination ranges are disjoint and forward-stepping.
func (cpu *CPU) repMovs(ctx *decodeCtx, width int) *Fault {
	if ctx.repKind != repNone && !cpu.flag(flagDF) {
		cw := cpu.countWidth(ctx)
		count := cpu.GPR(regRCX, cw)
		if count > 0 {
			srcSeg := segDS
			if ctx.segOverride >= 0 {
				srcSeg = ctx.segOverride
			}
			si := cpu.GPR(regRSI, ctx.addrSize)
			di := cpu.GPR(regRDI, ctx.addrSize)
			unit := uint64(width / 8)
			src := cpu.seg[srcSeg].base + si
			dst := cpu.seg[segES].base + di
			span := count * unit
			disjoint := dst+span <= src || src+span <= dst
			if disjoint {
				buf := make([]byte, span)
				if f := cpu.ReadLinear(src, buf); f != nil {
					return f
				}
				if f := cpu.WriteLinear(dst, buf); f != nil {
					return f
				}
				cpu.WriteGPR(regRSI, ctx.addrSize, si+span)
				cpu.WriteGPR(regRDI, ctx.addrSize, di+span)
				cpu.WriteGPR(regRCX, cw, 0)
				return nil
			}
		}
	}
	return cpu.repLoop(ctx, false, func() *Fault { return cpu.movsIter(ctx, width) })
}

func (cpu *CPU) stosIter(ctx *decodeCtx, width int) *Fault {
	di := cpu.GPR(regRDI, ctx.addrSize)
	buf := make([]byte, width/8)
	putLE(buf, cpu.GPR(regRAX, width))
	if f := cpu.WriteLinear(cpu.seg[segES].base+di, buf); f != nil {
		return f
	}
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRDI, ctx.addrSize, uint64(int64(di)+step))
	return nil
}

func (cpu *CPU) repStos(ctx *decodeCtx, width int) *Fault {
	return cpu.repLoop(ctx, false, func() *Fault { return cpu.stosIter(ctx, width) })
}

func (cpu *CPU) lodsIter(ctx *decodeCtx, width int) *Fault {
	srcSeg := segDS
	if ctx.segOverride >= 0 {
		srcSeg = ctx.segOverride
	}
	si := cpu.GPR(regRSI, ctx.addrSize)
	buf := make([]byte, width/8)
	if f := cpu.ReadLinear(cpu.seg[srcSeg].base+si, buf); f != nil {
		return f
	}
	cpu.WriteGPR(regRAX, width, getLE(buf))
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRSI, ctx.addrSize, uint64(int64(si)+step))
	return nil
}

func (cpu *CPU) repLods(ctx *decodeCtx, width int) *Fault {
	return cpu.repLoop(ctx, false, func() *Fault { return cpu.lodsIter(ctx, width) })
}

func (cpu *CPU) cmpsIter(ctx *decodeCtx, width int) *Fault {
	srcSeg := segDS
	if ctx.segOverride >= 0 {
		srcSeg = ctx.segOverride
	}
	si := cpu.GPR(regRSI, ctx.addrSize)
	di := cpu.GPR(regRDI, ctx.addrSize)
	a := make([]byte, width/8)
	b := make([]byte, width/8)
	if f := cpu.ReadLinear(cpu.seg[srcSeg].base+si, a); f != nil {
		return f
	}
	if f := cpu.ReadLinear(cpu.seg[segES].base+di, b); f != nil {
		return f
	}
	cpu.subFlags(getLE(a), getLE(b), 0, width)
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRSI, ctx.addrSize, uint64(int64(si)+step))
	cpu.WriteGPR(regRDI, ctx.addrSize, uint64(int64(di)+step))
	return nil
}

func (cpu *CPU) repCmps(ctx *decodeCtx, width int) *Fault {
	return cpu.repLoop(ctx, true, func() *Fault { return cpu.cmpsIter(ctx, width) })
}

func (cpu *CPU) scasIter(ctx *decodeCtx, width int) *Fault {
	di := cpu.GPR(regRDI, ctx.addrSize)
	buf := make([]byte, width/8)
	if f := cpu.ReadLinear(cpu.seg[segES].base+di, buf); f != nil {
		return f
	}
	cpu.subFlags(cpu.GPR(regRAX, width), getLE(buf), 0, width)
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRDI, ctx.addrSize, uint64(int64(di)+step))
	return nil
}

func (cpu *CPU) repScas(ctx *decodeCtx, width int) *Fault {
	return cpu.repLoop(ctx, true, func() *Fault { return cpu.scasIter(ctx, width) })
}

func (cpu *CPU) insIter(ctx *decodeCtx, width int) *Fault {
	di := cpu.GPR(regRDI, ctx.addrSize)
	port := uint16(cpu.GPR(regRDX, 16))
	value := ioport.In(port, width/8)
	buf := make([]byte, width/8)
	putLE(buf, uint64(value))
	if f := cpu.WriteLinear(cpu.seg[segES].base+di, buf); f != nil {
		return f
	}
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRDI, ctx.addrSize, uint64(int64(di)+step))
	return nil
}

func (cpu *CPU) repIns(ctx *decodeCtx, width int) *Fault {
	return cpu.repLoop(ctx, false, func() *Fault { return cpu.insIter(ctx, width) })
}

func (cpu *CPU) outsIter(ctx *decodeCtx, width int) *Fault {
	srcSeg := segDS
	if ctx.segOverride >= 0 {
		srcSeg = ctx.segOverride
	}
	si := cpu.GPR(regRSI, ctx.addrSize)
	port := uint16(cpu.GPR(regRDX, 16))
	buf := make([]byte, width/8)
	if f := cpu.ReadLinear(cpu.seg[srcSeg].base+si, buf); f != nil {
		return f
	}
	ioport.Out(port, width/8, uint32(getLE(buf)))
	step := cpu.stringStep(width)
	cpu.WriteGPR(regRSI, ctx.addrSize, uint64(int64(si)+step))
	return nil
}

func (cpu *CPU) repOuts(ctx *decodeCtx, width int) *Fault {
	return cpu.repLoop(ctx, false, func() *Fault { return cpu.outsIter(ctx, width) })
}
