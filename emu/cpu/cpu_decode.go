/*
   x86emu - prefix loop and opcode dispatch.

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

import op "github.com/rcornwell/x86emu/emu/opcodemap"

// decode walks prefixes (LOCK, REP/REPNE, segment overrides,
// operand-/address-size overrides, REX) into ctx, then the opcode,
// exactly the contract of §4.1, grounded on fetch()'s byte walk in the
// teacher's cpu.go.
func (cpu *CPU) decode() (*decodeCtx, *Fault) {
	ctx := &decodeCtx{segOverride: -1}
	ctx.start = cpu.rip

	defaultOp, defaultAddr := cpu.defaultSizes()
	ctx.opSize = defaultOp
	ctx.addrSize = defaultAddr

	for {
		b, f := cpu.fetchByte()
		if f != nil {
			return nil, f
		}
		switch b {
		case op.OpLock:
			ctx.lock = true
			continue
		case op.OpRepne:
			ctx.repKind = repNZ
			continue
		case op.OpRep:
			ctx.repKind = repZ
			continue
		case op.OpSegES:
			ctx.segOverride = segES
			continue
		case op.OpSegCS:
			ctx.segOverride = segCS
			continue
		case op.OpSegSS:
			ctx.segOverride = segSS
			continue
		case op.OpSegDS:
			ctx.segOverride = segDS
			continue
		case op.OpSegFS:
			ctx.segOverride = segFS
			continue
		case op.OpSegGS:
			ctx.segOverride = segGS
			continue
		case op.OpOpSize:
			if defaultOp == 32 {
				ctx.opSize = 16
			} else {
				ctx.opSize = 32
			}
			continue
		case op.OpAddrSize:
			if defaultAddr == 64 {
				ctx.addrSize = 32
			} else if defaultAddr == 32 {
				ctx.addrSize = 16
			} else {
				ctx.addrSize = 32
			}
			continue
		}

		// REX must be the last prefix before the opcode (§4.1); only
		// recognized in long mode.
		if cpu.mode == modeLong && b >= 0x40 && b <= 0x4f {
			ctx.rexPresent = true
			ctx.rexW = b&8 != 0
			ctx.rexR = b&4 != 0
			ctx.rexX = b&2 != 0
			ctx.rexB = b&1 != 0
			if ctx.rexW {
				ctx.opSize = 64
			}
			continue
		}

		// Non-prefix byte: this is the opcode, possibly the 0F escape.
		if b == op.OpTwoByte {
			b2, f := cpu.fetchByte()
			if f != nil {
				return nil, f
			}
			ctx.opcode = 0x0F00 | uint16(b2)
			return ctx, nil
		}
		ctx.opcode = uint16(b)
		return ctx, nil
	}
}

func (cpu *CPU) defaultSizes() (opSize, addrSize int) {
	switch cpu.mode {
	case modeReal, modeProtected16:
		return 16, 16
	case modeProtected32:
		return 32, 32
	default: // modeLong
		return 32, 64
	}
}

// execute resolves the opcode to a handler and invokes it. Primary
// opcodes dispatch through table; 0F-escaped opcodes through table0F,
// mirroring cpu.table[step.opcode] in the teacher's createTable wiring.
func (cpu *CPU) execute(ctx *decodeCtx) *Fault {
	if ctx.opcode&0xFF00 == 0x0F00 {
		h := table0F[ctx.opcode&0xff]
		if h == nil {
			return cpu.unrecognizedOpcode()
		}
		return h(cpu, ctx)
	}
	h := table[ctx.opcode]
	if h == nil {
		return cpu.unrecognizedOpcode()
	}
	return h(cpu, ctx)
}

// unrecognizedOpcode raises #UD per §4.1/§9: legacy modes permit a
// no-op fallback only under an explicit leniency flag, not modeled
// here since no caller currently sets one.
func (cpu *CPU) unrecognizedOpcode() *Fault {
	return fault(vecUD)
}
