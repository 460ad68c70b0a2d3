/*
   x86emu - CPU construction, the fetch/execute step, and the dispatch
   tables that wire opcodes to handlers.

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
	"sync"

	op "github.com/rcornwell/x86emu/emu/opcodemap"
)

var (
	tableOnce   sync.Once
	table       [256]opHandler
	table0F     [256]opHandler
)

// New returns a CPU at its power-on reset state: real mode, CS:IP at
// the BIOS entry point F000:FFF0, per §3. Callers load a ROM image into
// memory before calling Step.
func New() *CPU {
	tableOnce.Do(buildTables)
	cpu := &CPU{
		msr: map[uint32]uint64{},
	}
	cpu.reset()
	return cpu
}

func (cpu *CPU) reset() {
	cpu.regs = [16]uint64{}
	cpu.rflags = flagR1
	cpu.cr = [5]uint64{}
	cpu.efer = 0
	cpu.mode = modeReal
	cpu.cpl = 0
	cpu.halted = false
	cpu.reentry = 0

	cpu.loadSegmentReal(segCS, 0xF000)
	cpu.seg[segCS].base = 0xFFFF0000 // reset vector alias, per §3
	cpu.rip = 0xFFFFFFF0
	cpu.loadSegmentReal(segDS, 0)
	cpu.loadSegmentReal(segES, 0)
	cpu.loadSegmentReal(segSS, 0)
	cpu.loadSegmentReal(segFS, 0)
	cpu.loadSegmentReal(segGS, 0)
	cpu.WriteGPR(regRSP, 16, 0)

	cpu.gdtr = descTable{}
	cpu.idtr = descTable{base: 0, limit: 0x3ff} // real-mode IVT
	cpu.ldtr = segReg{}
	cpu.tr = segReg{}
}

// ResetAt is a convenience used by tests and boot loaders that place
// CS:IP somewhere other than the hardware reset vector (e.g. a flat
// boot-sector load at 0000:7C00).
func (cpu *CPU) ResetAt(segment, offset uint16) {
	cpu.reset()
	cpu.loadSegmentReal(segCS, segment)
	cpu.rip = cpu.seg[segCS].base + uint64(offset)
}

// Halted reports whether the processor executed HLT and has not since
// been woken by an interrupt.
func (cpu *CPU) Halted() bool { return cpu.halted }

// Mode reports the current execution mode, for debuggers and tests.
func (cpu *CPU) Mode() string {
	switch cpu.mode {
	case modeReal:
		return "real"
	case modeProtected16:
		return "protected16"
	case modeProtected32:
		return "protected32"
	default:
		return "long"
	}
}

// Step fetches and executes exactly one instruction, the x86
// generalization of the teacher's CycleCPU: check for a pending
// unmasked interrupt first, then decode/execute, converting a
// haltAbort panic (the kind-2 distinguished error of §7) into a
// returned error instead of letting it escape to the caller.
func (cpu *CPU) Step(pending PendingInterrupt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ha, ok := r.(*haltAbort); ok {
				err = ha
				return
			}
			panic(r)
		}
	}()

	if cpu.halted {
		if pending == nil {
			return nil
		}
		if _, ok := pending.Pending(); !ok {
			return nil
		}
		cpu.halted = false
	}

	if pending != nil && cpu.flag(flagIF) {
		if vector, ok := pending.Pending(); ok {
			if f := cpu.raiseInterrupt(vector, nil, false); f != nil {
				return cpu.deliverFault(f)
			}
			return nil
		}
	}

	ctx, f := cpu.decode()
	if f != nil {
		return cpu.deliverFault(f)
	}
	if debugMsk&debugTrace != 0 {
		cpu.traceFetch(ctx)
	}
	if f := cpu.execute(ctx); f != nil {
		return cpu.deliverFault(f)
	}
	return nil
}

// PendingInterrupt is the narrow collaborator a PIC implements so Step
// can poll for a hardware interrupt without importing emu/ioport
// directly, per §6.
type PendingInterrupt interface {
	Pending() (vector uint8, ok bool)
}

// deliverFault routes a *Fault through the interrupt dispatcher,
// mirroring the teacher's program-check delivery in storePSW/lpsw. A
// fault raised while already delivering a fault (e.g. a page fault
// pushing the interrupt frame) is itself delivered in turn; the
// reentry counter in raiseInterrupt bounds this recursion and converts
// a runaway chain into the kind-4 implementation-limit abort of §7.
func (cpu *CPU) deliverFault(f *Fault) error {
	base := cpu.reentry
	defer func() { cpu.reentry = base }()
	for f != nil {
		if debugMsk&debugFault != 0 {
			cpu.traceFault(f)
		}
		// Each chained delivery stays counted until the chain ends.
		cpu.reentry++
		f = cpu.raiseInterrupt(f.Vector, f.Error, false)
	}
	return nil
}

func buildTables() {
	buildPrimaryTable()
	build0FTable()
}

// buildPrimaryTable wires the one-byte opcode map, the x86 analogue of
// the teacher's createTable() function-pointer dispatch.
func buildPrimaryTable() {
	add := makeBinOp(op.GrpAdd)
	or := makeBinOp(op.GrpOr)
	adc := makeBinOp(op.GrpAdc)
	sbb := makeBinOp(op.GrpSbb)
	and := makeBinOp(op.GrpAnd)
	sub := makeBinOp(op.GrpSub)
	xorOp := makeBinOp(op.GrpXor)
	cmp := makeBinOp(op.GrpCmp)

	wire := func(base uint8, fam func(direction int, immForm bool) opHandler) {
		table[base+0] = fam(0, false)
		table[base+1] = fam(1, false)
		table[base+2] = fam(2, false)
		table[base+3] = fam(3, false)
		table[base+4] = fam(0, true)
		table[base+5] = fam(1, true)
	}
	wire(op.OpAddEbGb, add)
	wire(op.OpOrEbGb, or)
	wire(op.OpAdcEbGb, adc)
	wire(op.OpSbbEbGb, sbb)
	wire(op.OpAndEbGb, and)
	wire(op.OpSubEbGb, sub)
	wire(op.OpXorEbGb, xorOp)
	wire(op.OpCmpEbGb, cmp)

	table[op.OpMovEbGb] = movEbGb
	table[op.OpMovEvGv] = movEvGv
	table[op.OpMovGbEb] = movGbEb
	table[op.OpMovGvEv] = movGvEv
	table[op.OpMovEbIb] = movEbIb
	table[op.OpMovEvIz] = movEvIz
	table[op.OpMovEvSw] = movEvSw
	table[op.OpMovSwEv] = movSwEv
	table[op.OpLea] = lea

	for i := uint8(0); i < 8; i++ {
		table[op.OpMovBIb+i] = makeMovRegImm(true)
		table[op.OpMovIz+i] = makeMovRegImm(false)
		table[op.OpPushBase+i] = makePushReg(i)
		table[op.OpPopBase+i] = makePopReg(i)
		table[op.OpIncBase+i] = makeIncReg(i)
		table[op.OpDecBase+i] = makeDecReg(i)
		table[op.OpNop+i] = makeXchgAX(i)
	}

	table[op.OpXchgEbGb] = xchgEbGb
	table[op.OpXchgEvGv] = xchgEvGv

	table[op.OpTestEbGb] = testEbGb
	table[op.OpTestEvGv] = testEvGv
	table[op.OpTestALIb] = testALIb
	table[op.OpTestAXIz] = testAXIz

	table[op.OpPushIz] = pushIz
	table[op.OpPushIb] = pushIb
	table[op.OpPushf] = pushf
	table[op.OpPopf] = popf
	table[op.OpPopEv] = func(cpu *CPU, ctx *decodeCtx) *Fault {
		if f := cpu.decodeModRM(ctx); f != nil {
			return f
		}
		v, f := cpu.Pop(ctx.opSize)
		if f != nil {
			return f
		}
		return cpu.writeRM(ctx, ctx.opSize, v)
	}

	table[op.OpPushES] = makePushSeg(segES)
	table[op.OpPopES] = makePopSeg(segES)
	table[op.OpPushCS] = makePushSeg(segCS)
	table[op.OpPushSS] = makePushSeg(segSS)
	table[op.OpPopSS] = makePopSeg(segSS)
	table[op.OpPushDS] = makePushSeg(segDS)
	table[op.OpPopDS] = makePopSeg(segDS)

	table[op.OpSahf] = sahf
	table[op.OpLahf] = lahf
	table[op.OpCbw] = cbw
	table[op.OpCwd] = cwd
	table[op.OpXlat] = xlat

	table[op.OpImulGvEvIz] = imulGvEvIz
	table[op.OpImulGvEvIb] = imulGvEvIb

	table[op.OpMovsb] = movsb
	table[op.OpMovsz] = movsz
	table[op.OpStosb] = stosb
	table[op.OpStosz] = stosz
	table[op.OpLodsb] = lodsb
	table[op.OpLodsz] = lodsz
	table[op.OpCmpsb] = cmpsb
	table[op.OpCmpsz] = cmpsz
	table[op.OpScasb] = scasb
	table[op.OpScasz] = scasz
	table[op.OpInsb] = insb
	table[op.OpInsz] = insz
	table[op.OpOutsb] = outsb
	table[op.OpOutsz] = outsz

	table[op.OpClc] = clc
	table[op.OpStc] = stc
	table[op.OpCmc] = cmc
	table[op.OpCli] = cli
	table[op.OpSti] = sti
	table[op.OpCld] = cld
	table[op.OpStd] = std
	table[op.OpHlt] = hlt
	table[op.OpWait] = nop

	for i := uint8(0); i < 16; i++ {
		table[op.OpJccBase+i] = makeJccShort(i)
	}
	table[op.OpJmpJb] = jmpShort
	table[op.OpJmpJz] = jmpNear
	table[op.OpJmpAp] = jmpFarOp
	table[op.OpCallJz] = callNearOp
	table[op.OpCallFar] = callFarOp
	table[op.OpRet] = retNearOp
	table[op.OpRetIw] = retNearIwOp
	table[op.OpRetf] = retFarOp
	table[op.OpRetfIw] = retFarIwOp
	table[op.OpLoopnz] = loopnz
	table[op.OpLoopz] = loopz
	table[op.OpLoop] = loopInsn
	table[op.OpJcxz] = jcxz

	table[op.OpInt3] = int3
	table[op.OpIntIb] = intIb
	table[op.OpInto] = into
	table[op.OpIret] = iretOp

	table[op.OpInALIb] = inALIb
	table[op.OpInAXIb] = inAXIb
	table[op.OpOutIbAL] = outIbAL
	table[op.OpOutIbAX] = outIbAX
	table[op.OpInALDX] = inALDX
	table[op.OpInAXDX] = inAXDX
	table[op.OpOutDXAL] = outDXAL
	table[op.OpOutDXAX] = outDXAX

	table[op.OpGrp1Eb] = makeGroup1(8, 8, false)
	table[op.OpGrp1Ev] = makeGroup1(0, 0, true)
	table[op.OpGrp1EbS] = makeGroup1(8, 8, true)
	table[op.OpGrp1EvIb] = makeGroup1(0, 8, true)

	table[op.OpGrp2Ib8] = makeGroup2(8, 0)
	table[op.OpGrp2Ib] = makeGroup2(0, 0)
	table[op.OpGrp2Eb1] = makeGroup2(8, 1)
	table[op.OpGrp2Ev1] = makeGroup2(0, 1)
	table[op.OpGrp2EbCL] = makeGroup2(8, 2)
	table[op.OpGrp2EvCL] = makeGroup2(0, 2)

	table[op.OpGrp3Eb] = makeGroup3(8)
	table[op.OpGrp3Ev] = makeGroup3(0)

	table[op.OpGrp4] = makeGroup4
	table[op.OpGrp5] = makeGroup5
}

// build0FTable wires the 0F-escape two-byte opcode map.
func build0FTable() {
	for i := uint8(0); i < 16; i++ {
		table0F[op.Op0FJccBase+i] = makeJccLong(i)
		table0F[op.Op0FSetBase+i] = makeSetcc(i)
		table0F[op.Op0FCmovBase+i] = makeCmovcc(i)
	}
	table0F[op.Op0FBsf] = bsfOp
	table0F[op.Op0FBsr] = bsrOp
	table0F[op.Op0FImul] = imulGvEv
	table0F[op.Op0FMovzxB] = makeMovx(8, false)
	table0F[op.Op0FMovzxW] = makeMovx(16, false)
	table0F[op.Op0FMovsxB] = makeMovx(8, true)
	table0F[op.Op0FMovsxW] = makeMovx(16, true)
	table0F[op.Op0FBt] = makeBt(0)
	table0F[op.Op0FBts] = makeBt(1)
	table0F[op.Op0FBtr] = makeBt(2)
	table0F[op.Op0FBtc] = makeBt(3)
	table0F[op.Op0FCpuid] = cpuid
	table0F[op.Op0FGrp6] = group6
	table0F[op.Op0FGrp7] = group7
	table0F[op.Op0FMovRdCr] = movGPRFromCR
	table0F[op.Op0FMovCrRd] = movCRFromGPR
	table0F[op.Op0FClts] = clts
	for i := uint8(0); i < 8; i++ {
		table0F[op.Op0FBswap+i] = makeBswap(i)
	}
}
