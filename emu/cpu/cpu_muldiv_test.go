/*
   x86emu - MUL/IMUL/DIV/IDIV test cases.

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

import "testing"

func TestMulUnsignedFitsInAccumulator(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 1000)
	cpu.WriteGPR(regRCX, 32, 2000)
	load(cpu, 0x66, 0xf7, 0xe1) // MUL ECX (66 F7 /4)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 2_000_000 {
		t.Errorf("EAX = %d, want 2000000", got)
	}
	if got := cpu.GPR(regRDX, 32); got != 0 {
		t.Errorf("EDX = %d, want 0", got)
	}
	if cpu.flag(flagCF) || cpu.flag(flagOF) {
		t.Error("CF/OF should be clear: product fit in EAX alone")
	}
}

func TestMulUnsignedOverflowsIntoEdx(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 1<<20)
	cpu.WriteGPR(regRCX, 32, 1<<20)
	load(cpu, 0x66, 0xf7, 0xe1) // MUL ECX
	step(t, cpu)

	if got := cpu.GPR(regRDX, 32); got != 1<<8 {
		t.Errorf("EDX = %#x, want %#x", got, 1<<8)
	}
	if !cpu.flag(flagCF) || !cpu.flag(flagOF) {
		t.Error("CF/OF should be set: product spans EDX:EAX")
	}
}

func TestDivUnsignedQuotientAndRemainder(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRDX, 32, 0)
	cpu.WriteGPR(regRAX, 32, 100)
	cpu.WriteGPR(regRCX, 32, 7)
	load(cpu, 0x66, 0xf7, 0xf1) // DIV ECX (66 F7 /6)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 14 {
		t.Errorf("EAX (quotient) = %d, want 14", got)
	}
	if got := cpu.GPR(regRDX, 32); got != 2 {
		t.Errorf("EDX (remainder) = %d, want 2", got)
	}
}

func TestDivByZeroFaultsThroughVectorZero(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRDX, 32, 0)
	cpu.WriteGPR(regRAX, 32, 100)
	cpu.WriteGPR(regRCX, 32, 0)
	load(cpu, 0x66, 0xf7, 0xf1) // DIV ECX, ECX=0

	// The real-mode IVT entry for vector 0 is still zeroed out from
	// reset, so the #DE delivery jumps straight at linear address 0 -
	// the distinguished null-target abort of the control-transfer
	// engine, not an architectural fault a test can observe as state.
	if err := cpu.Step(nil); err == nil {
		t.Error("expected Step to report the null-vector abort")
	}
}

func TestImulSignedOneOperandOverflow(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 0x10000)
	cpu.WriteGPR(regRCX, 32, 0x10000)
	load(cpu, 0x66, 0xf7, 0xe9) // IMUL ECX (66 F7 /5)
	step(t, cpu)

	if !cpu.flag(flagCF) || !cpu.flag(flagOF) {
		t.Error("CF/OF should be set: signed product overflows 32 bits")
	}
}

func TestImulThreeOperandImmediate(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 32, 6)
	// IMUL EAX,ECX,7 (66 69 /r id): Gv,Ev,Iz
	load(cpu, 0x66, 0x69,0xc1, 0x07, 0x00, 0x00, 0x00)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 42 {
		t.Errorf("EAX = %d, want 42", got)
	}
	if cpu.flag(flagCF) || cpu.flag(flagOF) {
		t.Error("CF/OF should be clear: 6*7 fits in 32 bits")
	}
}

func TestIdivSignedQuotientAndRemainderTruncateTowardZero(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRDX, 32, 0xffffffff) // sign extension of -17
	cpu.WriteGPR(regRAX, 32, 0xffffffef) // -17
	cpu.WriteGPR(regRCX, 32, 5)
	load(cpu, 0x66, 0xf7, 0xf9) // IDIV ECX (66 F7 /7)
	step(t, cpu)

	if got := int32(cpu.GPR(regRAX, 32)); got != -3 {
		t.Errorf("EAX (quotient) = %d, want -3", got)
	}
	if got := int32(cpu.GPR(regRDX, 32)); got != -2 {
		t.Errorf("EDX (remainder) = %d, want -2", got)
	}
}

// TestIdivSignedWidth64UsesFullDividend pins down the 64-bit IDIV path
// against a dividend whose high half (RDX) genuinely participates in
// the result - the low 64 bits alone decode to a small, very different
// number, so a path that silently drops RDX (as divSigned once did)
// produces a wrong quotient here instead of merely a less-general one.
func TestIdivSignedWidth64UsesFullDividend(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeLong
	// RDX:RAX = two's complement of -(2^64 + 100).
	cpu.WriteGPR(regRDX, 64, 0xfffffffffffffffe)
	cpu.WriteGPR(regRAX, 64, 0xffffffffffffff9c)
	cpu.WriteGPR(regRCX, 64, 3)
	load(cpu, 0x48, 0xf7, 0xf9) // REX.W IDIV RCX (F7 /7)
	step(t, cpu)

	var quot, rem int64 = -6148914691236517238, -2
	wantQ := uint64(quot)
	wantR := uint64(rem)
	if got := cpu.GPR(regRAX, 64); got != wantQ {
		t.Errorf("RAX (quotient) = %d, want %d", int64(got), int64(wantQ))
	}
	if got := cpu.GPR(regRDX, 64); got != wantR {
		t.Errorf("RDX (remainder) = %d, want %d", int64(got), int64(wantR))
	}
}

func TestIdivSignedWidth64QuotientOverflowFaults(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeLong
	cpu.WriteGPR(regRDX, 64, 0) // positive dividend, magnitude > MaxInt64
	cpu.WriteGPR(regRAX, 64, 0xffffffffffffffff)
	cpu.WriteGPR(regRCX, 64, 1)
	load(cpu, 0x48, 0xf7, 0xf9) // REX.W IDIV RCX

	if err := cpu.Step(nil); err == nil {
		t.Error("expected the #DE fault's null-vector delivery to surface as an error")
	}
}

func TestBsfFindsLeastSignificantSetBit(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 32, 0x10)
	// BSF EAX,ECX (66 0F BC /r)
	load(cpu, 0x66, 0x0f, 0xbc, 0xc1)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 4 {
		t.Errorf("EAX = %d, want 4", got)
	}
	if cpu.flag(flagZF) {
		t.Error("ZF should be clear: source was nonzero")
	}
}

func TestBsfOnZeroSourceSetsZfAndLeavesDestUnchanged(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 32, 0)
	cpu.WriteGPR(regRAX, 32, 0xdeadbeef)
	load(cpu, 0x66, 0x0f, 0xbc, 0xc1)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 0xdeadbeef {
		t.Errorf("EAX = %#x, want unchanged 0xdeadbeef", got)
	}
	if !cpu.flag(flagZF) {
		t.Error("ZF should be set: source was zero")
	}
}
