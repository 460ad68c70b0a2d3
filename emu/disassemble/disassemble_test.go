/*
   x86emu Disassembler Test routines.

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
package disassembler

import "testing"

func TestDisassembleNoOperand(t *testing.T) {
	inst, n := Disassemble([]byte{0xf4, 0x90})
	if inst != "HLT" {
		t.Errorf("wrong text, got %q want HLT", inst)
	}
	if n != 1 {
		t.Errorf("wrong length, got %d want 1", n)
	}
}

func TestDisassembleALIb(t *testing.T) {
	inst, n := Disassemble([]byte{0x04, 0x05})
	if inst != "ADD AL,05" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}

func TestDisassembleEAXIz(t *testing.T) {
	inst, n := Disassemble([]byte{0x05, 0x78, 0x56, 0x34, 0x12})
	if inst != "ADD eAX,12345678" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 5 {
		t.Errorf("wrong length, got %d want 5", n)
	}
}

func TestDisassembleModRMRegisters(t *testing.T) {
	// ADD EAX,ECX via 03 /r (ADD Gv,Ev): ModR/M = 11 000 001 = 0xC1
	inst, n := Disassemble([]byte{0x03, 0xc1})
	if inst != "ADD EAX,ECX" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}

func TestDisassembleModRMMemory(t *testing.T) {
	// MOV EAX,[EBX+10h]: ModR/M = 01 000 011 = 0x43
	inst, n := Disassemble([]byte{0x8b, 0x43, 0x10})
	if inst != "MOV EAX,[EBX+16]" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 3 {
		t.Errorf("wrong length, got %d want 3", n)
	}
}

func TestDisassembleRegOpFamily(t *testing.T) {
	inst, n := Disassemble([]byte{0x50}) // PUSH EAX
	if inst != "PUSH EAX" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 1 {
		t.Errorf("wrong length, got %d want 1", n)
	}

	inst, _ = Disassemble([]byte{0x41}) // INC ECX
	if inst != "INC ECX" {
		t.Errorf("wrong text, got %q", inst)
	}
}

func TestDisassembleMovRegImm(t *testing.T) {
	inst, n := Disassemble([]byte{0xb0, 0x2a}) // MOV AL,2ah
	if inst != "MOV AL,2a" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}

	inst, n = Disassemble([]byte{0xb8, 0x01, 0x00, 0x00, 0x00}) // MOV EAX,1
	if inst != "MOV EAX,00000001" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 5 {
		t.Errorf("wrong length, got %d want 5", n)
	}
}

func TestDisassembleJcc(t *testing.T) {
	inst, n := Disassemble([]byte{0x74, 0xfe}) // JE -2
	if inst != "JE -2" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}

func TestDisassembleGroup1(t *testing.T) {
	// ADD ECX,05h via Group1 83 /0: ModR/M = 11 000 001 = 0xC1
	inst, n := Disassemble([]byte{0x83, 0xc1, 0x05})
	if inst != "ADD ECX,05" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 3 {
		t.Errorf("wrong length, got %d want 3", n)
	}
}

func TestDisassembleGroup3(t *testing.T) {
	// NEG EAX via F7 /3: ModR/M = 11 011 000 = 0xD8
	inst, n := Disassemble([]byte{0xf7, 0xd8})
	if inst != "NEG EAX" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}

func TestDisassembleTwoByteBsf(t *testing.T) {
	// BSF EAX,ECX: 0F BC C1
	inst, n := Disassemble([]byte{0x0f, 0xbc, 0xc1})
	if inst != "BSF EAX,ECX" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 3 {
		t.Errorf("wrong length, got %d want 3", n)
	}
}

func TestDisassembleCpuid(t *testing.T) {
	inst, n := Disassemble([]byte{0x0f, 0xa2})
	if inst != "CPUID" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}

func TestDisassembleUndefined(t *testing.T) {
	// 0xf1 (ICEBP/INT1) is not in the opcode table; falls back to a
	// raw byte dump of what's left in the buffer.
	inst, n := Disassemble([]byte{0xf1, 0x00})
	if inst != "f1 00" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}

func TestDisassembleSkipsPrefix(t *testing.T) {
	// 66 90: operand-size prefix then NOP.
	inst, n := Disassemble([]byte{0x66, 0x90})
	if inst != "NOP" {
		t.Errorf("wrong text, got %q", inst)
	}
	if n != 2 {
		t.Errorf("wrong length, got %d want 2", n)
	}
}
