/*
   x86emu - REP string engine test cases.

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

	"github.com/rcornwell/x86emu/emu/memory"
)

func TestRepMovsbForwardTakesBulkPath(t *testing.T) {
	cpu := newTestCPU()
	memory.WriteBytes(0x300, []byte("ABCD"))
	cpu.WriteGPR(regRSI, 16, 0x300)
	cpu.WriteGPR(regRDI, 16, 0x400)
	cpu.WriteGPR(regRCX, 16, 4)
	load(cpu, 0xf3, 0xa4) // REP MOVSB
	step(t, cpu)

	got := make([]byte, 4)
	memory.ReadBytes(0x400, got)
	if string(got) != "ABCD" {
		t.Errorf("copied %q, want %q", got, "ABCD")
	}
	if got := cpu.GPR(regRCX, 16); got != 0 {
		t.Errorf("CX = %d, want 0", got)
	}
	if got := cpu.GPR(regRSI, 16); got != 0x304 {
		t.Errorf("SI = %#x, want 0x304", got)
	}
	if got := cpu.GPR(regRDI, 16); got != 0x404 {
		t.Errorf("DI = %#x, want 0x404", got)
	}
}

func TestRepMovsbBackwardWithDF(t *testing.T) {
	cpu := newTestCPU()
	memory.WriteBytes(0x300, []byte("ABCD"))
	cpu.setFlagBit(flagDF, true)
	cpu.WriteGPR(regRSI, 16, 0x303)
	cpu.WriteGPR(regRDI, 16, 0x403)
	cpu.WriteGPR(regRCX, 16, 4)
	load(cpu, 0xf3, 0xa4) // REP MOVSB
	step(t, cpu)

	got := make([]byte, 4)
	memory.ReadBytes(0x400, got)
	if string(got) != "ABCD" {
		t.Errorf("copied %q, want %q", got, "ABCD")
	}
	if got := cpu.GPR(regRSI, 16); got != 0x2ff {
		t.Errorf("SI = %#x, want 0x2ff", got)
	}
	if got := cpu.GPR(regRDI, 16); got != 0x3ff {
		t.Errorf("DI = %#x, want 0x3ff", got)
	}
}

func TestRepStosbFillsBuffer(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRAX, 8, 0x7a)
	cpu.WriteGPR(regRDI, 16, 0x500)
	cpu.WriteGPR(regRCX, 16, 3)
	load(cpu, 0xf3, 0xaa) // REP STOSB
	step(t, cpu)

	got := make([]byte, 3)
	memory.ReadBytes(0x500, got)
	for i, b := range got {
		if b != 0x7a {
			t.Errorf("byte %d = %#x, want 0x7a", i, b)
		}
	}
	if got := cpu.GPR(regRDI, 16); got != 0x503 {
		t.Errorf("DI = %#x, want 0x503", got)
	}
	if got := cpu.GPR(regRCX, 16); got != 0 {
		t.Errorf("CX = %d, want 0", got)
	}
}

func TestRepeScasbStopsOnFirstMismatch(t *testing.T) {
	cpu := newTestCPU()
	memory.WriteBytes(0x600, []byte{'A', 'A', 'A', 'B', 'A', 'A'})
	cpu.WriteGPR(regRAX, 8, 'A')
	cpu.WriteGPR(regRDI, 16, 0x600)
	cpu.WriteGPR(regRCX, 16, 6)
	load(cpu, 0xf3, 0xae) // REPE SCASB
	step(t, cpu)

	if got := cpu.GPR(regRDI, 16); got != 0x604 {
		t.Errorf("DI = %#x, want 0x604 (stopped at the mismatch)", got)
	}
	if got := cpu.GPR(regRCX, 16); got != 2 {
		t.Errorf("CX = %d, want 2 (two elements left unscanned)", got)
	}
	if cpu.flag(flagZF) {
		t.Error("ZF should be clear: scan stopped on a mismatch")
	}
}

func TestRepneCmpsbStopsOnFirstMatch(t *testing.T) {
	cpu := newTestCPU()
	memory.WriteBytes(0x700, []byte{1, 2, 3, 5})
	memory.WriteBytes(0x800, []byte{9, 9, 3, 9})
	cpu.WriteGPR(regRSI, 16, 0x700)
	cpu.WriteGPR(regRDI, 16, 0x800)
	cpu.WriteGPR(regRCX, 16, 4)
	load(cpu, 0xf2, 0xa6) // REPNE CMPSB
	step(t, cpu)

	if got := cpu.GPR(regRCX, 16); got != 1 {
		t.Errorf("CX = %d, want 1 (stopped once a match was found)", got)
	}
	if got := cpu.GPR(regRSI, 16); got != 0x703 {
		t.Errorf("SI = %#x, want 0x703", got)
	}
	if !cpu.flag(flagZF) {
		t.Error("ZF should be set: scan stopped on a match")
	}
}

func TestLodsbLoadsAlAndAdvancesSi(t *testing.T) {
	cpu := newTestCPU()
	memory.WriteBytes(0x900, []byte{0x5a})
	cpu.WriteGPR(regRSI, 16, 0x900)
	load(cpu, 0xac) // LODSB, no REP prefix
	step(t, cpu)

	if got := cpu.GPR(regRAX, 8); got != 0x5a {
		t.Errorf("AL = %#x, want 0x5a", got)
	}
	if got := cpu.GPR(regRSI, 16); got != 0x901 {
		t.Errorf("SI = %#x, want 0x901", got)
	}
}
