/*
   x86emu - opcode dispatch sanity test cases.

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
   RICHARD CORNWELL BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
   IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
   CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
*/

package cpu

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// regSnapshot captures the pieces of architectural state a "do
// nothing" instruction must leave untouched, so a single cmp.Diff
// call reports every field that moved instead of one assertion per
// register.
type regSnapshot struct {
	GPR    [16]uint64
	RFlags uint64
	RIP    uint64
}

func snapshot(cpu *CPU) regSnapshot {
	return regSnapshot{GPR: cpu.regs, RFlags: cpu.rflags, RIP: cpu.rip}
}

func TestNopLeavesRegistersAndFlagsUntouchedExceptRip(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 0x11111111)
	cpu.WriteGPR(regRCX, 32, 0x22222222)
	cpu.setFlagBit(flagCF, true)

	before := snapshot(cpu)
	load(cpu, 0x90) // XCHG AX,AX - NOP encoding
	step(t, cpu)
	after := snapshot(cpu)

	before.RIP++ // the only field a one-byte instruction may change
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("NOP changed more than RIP (-want +got):\n%s", diff)
	}
}

func TestXchgRegisterFormRoundTrips(t *testing.T) {
	cpu := newTestCPU()
	// 16-bit values: XCHG AX,CX in real mode operates on the 16-bit
	// halves only, so values that fit in 16 bits keep the expected
	// post-state a plain field swap.
	cpu.WriteGPR(regRAX, 16, 0xaaaa)
	cpu.WriteGPR(regRCX, 16, 0xcccc)

	before := snapshot(cpu)
	load(cpu, 0x91) // XCHG AX,CX (0x90 + 1)
	step(t, cpu)
	after := snapshot(cpu)

	before.RIP++
	before.GPR[regRAX], before.GPR[regRCX] = before.GPR[regRCX], before.GPR[regRAX]
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("XCHG AX,CX produced unexpected state (-want +got):\n%s", diff)
	}
}
