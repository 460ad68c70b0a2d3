/*
   x86emu - shift/rotate instruction test cases.

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

func TestShlEaxBy1SetsCarryFromVacatedBit(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 0x80000000)
	load(cpu, 0x66, 0xd1, 0xe0) // SHL EAX,1 (66 D1 /4)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 0 {
		t.Errorf("EAX = %#x, want 0", got)
	}
	if !cpu.flag(flagCF) {
		t.Error("CF not set: bit 31 shifted out")
	}
	if !cpu.flag(flagOF) {
		t.Error("OF not set: result sign differs from CF")
	}
	if !cpu.flag(flagZF) {
		t.Error("ZF not set")
	}
}

func TestShrEaxBy1(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 1)
	load(cpu, 0x66, 0xd1, 0xe8) // SHR EAX,1 (66 D1 /5)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 0 {
		t.Errorf("EAX = %#x, want 0", got)
	}
	if !cpu.flag(flagCF) {
		t.Error("CF not set: bit 0 shifted out")
	}
	if cpu.flag(flagOF) {
		t.Error("OF should be clear: original sign bit was 0")
	}
}

func TestSarPreservesSignBit(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 32, 0x80000000)
	load(cpu, 0x66, 0xd1, 0xf8) // SAR EAX,1 (66 D1 /7)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 0xc0000000 {
		t.Errorf("EAX = %#x, want 0xc0000000", got)
	}
	if cpu.flag(flagOF) {
		t.Error("OF must be clear for a count-1 SAR")
	}
}

func TestRolAlBy1Wraps(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 8, 0x81)
	load(cpu, 0xd0, 0xc0) // ROL AL,1 (D0 /0)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 8); got != 0x03 {
		t.Errorf("AL = %#x, want 0x03", got)
	}
	if !cpu.flag(flagCF) {
		t.Error("CF not set: bit 7 rotated into bit 0")
	}
}

func TestShlEvImmediateCount(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 32, 3)
	load(cpu, 0x66, 0xc1, 0xe1, 0x02) // SHL ECX,2 (66 C1 /4 ib)
	step(t, cpu)

	if got := cpu.GPR(regRCX, 32); got != 0x0c {
		t.Errorf("ECX = %#x, want 0xc", got)
	}
	if cpu.flag(flagCF) {
		t.Error("CF should be clear: no bit shifted past bit 31")
	}
}

func TestRcrAlRotatesCarryIn(t *testing.T) {
	cpu := newTestCPU()
	cpu.setFlagBit(flagCF, true)
	cpu.WriteGPR(regRAX, 8, 0x01)
	load(cpu, 0xd0, 0xd8) // RCR AL,1 (D0 /3)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 8); got != 0x80 {
		t.Errorf("AL = %#x, want 0x80", got)
	}
	if !cpu.flag(flagCF) {
		t.Error("CF not set: bit 0 rotated out through the carry chain")
	}
}

func TestShiftByZeroCountLeavesFlagsUnchanged(t *testing.T) {
	cpu := newTestCPU()
	cpu.setFlagBit(flagCF, true)
	cpu.WriteGPR(regRCX, 8, 0) // CL=0
	cpu.WriteGPR(regRAX, 32, 0x12345678)
	load(cpu, 0x66, 0xd3, 0xe0) // SHL EAX,CL (66 D3 /4)
	step(t, cpu)

	if got := cpu.GPR(regRAX, 32); got != 0x12345678 {
		t.Errorf("EAX = %#x, want unchanged 0x12345678", got)
	}
	if !cpu.flag(flagCF) {
		t.Error("a zero-count shift must not touch CF")
	}
}
