/*
   x86emu - interrupt dispatch and task switch test cases.

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

// TestTaskSwitchSavesFullStateAndTogglesBusyBit drives tssSelectorLoad
// directly (white-box, like the protected-mode scenario test) across
// two flat-code TSS descriptors, checking the fields §4.5 requires
// beyond EIP and the GPRs: EFLAGS, CR3, segment selectors, and the
// GDT busy bit on both the outgoing and incoming descriptor.
func TestTaskSwitchSavesFullStateAndTogglesBusyBit(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cr[0] |= cr0PE
	cpu.gdtr.base = 0x5000
	cpu.gdtr.limit = 0xffff

	const (
		codeSel = 0x08
		taskASel = 0x10
		taskBSel = 0x18
		taskABase = 0x6000
		taskBBase = 0x7000
	)

	// Selector 0x08: flat 32-bit ring-0 code segment, reused as CS by
	// both tasks.
	memory.WriteBytes(cpu.gdtr.base+codeSel, []byte{
		0xff, 0xff, 0x00, 0x00, 0x00, 0x9a, 0xcf, 0x00,
	})
	// Type 0x9 (32-bit TSS, available): present, S=0, type=1001.
	memory.WriteBytes(cpu.gdtr.base+taskASel, []byte{
		0x67, 0x00, 0x00, 0x60, 0x00, 0x89, 0x00, 0x00,
	})
	memory.WriteBytes(cpu.gdtr.base+taskBSel, []byte{
		0x67, 0x00, 0x00, 0x70, 0x00, 0x89, 0x00, 0x00,
	})

	// Task A's initial TSS image: CS=codeSel, EIP=0x100, EFLAGS=2, rest 0.
	memory.WriteDword(taskABase+32, 0x100)
	memory.WriteDword(taskABase+36, 0x2)
	memory.WriteWord(taskABase+76, codeSel)

	// Task B's initial TSS image: distinct EIP/EFLAGS/EAX/CR3/CS.
	memory.WriteDword(taskBBase+28, 0xabcd000)
	memory.WriteDword(taskBBase+32, 0x1234)
	memory.WriteDword(taskBBase+36, 0x2)
	memory.WriteDword(taskBBase+40, 0xbeef)
	memory.WriteWord(taskBBase+76, codeSel)

	if f := cpu.tssSelectorLoad(taskASel, false); f != nil {
		t.Fatalf("switch into task A: %v", f)
	}
	if cpu.rip != 0x100 {
		t.Errorf("rip = %#x, want 0x100 after entering task A", cpu.rip)
	}
	if access := memory.ReadByte(cpu.gdtr.base + taskASel + 5); access != 0x8b {
		t.Errorf("task A descriptor access byte = %#x, want 0x8b (busy)", access)
	}

	// Mutate live state so the switch-out has something to capture.
	cpu.WriteGPR(regRAX, 32, 0xaaaa)
	cpu.setFlagBit(flagCF, true)
	cpu.writeCR(3, 0x9000)
	cpu.rip = 0x150

	if f := cpu.tssSelectorLoad(taskBSel, false); f != nil {
		t.Fatalf("switch into task B: %v", f)
	}

	if got := memory.ReadDword(taskABase + 40); got != 0xaaaa {
		t.Errorf("task A saved EAX = %#x, want 0xaaaa", got)
	}
	if got := memory.ReadDword(taskABase + 32); got != 0x150 {
		t.Errorf("task A saved EIP = %#x, want 0x150", got)
	}
	if access := memory.ReadByte(cpu.gdtr.base + taskASel + 5); access != 0x89 {
		t.Errorf("task A descriptor access byte = %#x, want 0x89 (not busy)", access)
	}
	if access := memory.ReadByte(cpu.gdtr.base + taskBSel + 5); access != 0x8b {
		t.Errorf("task B descriptor access byte = %#x, want 0x8b (busy)", access)
	}

	if cpu.rip != 0x1234 {
		t.Errorf("rip = %#x, want 0x1234 after entering task B", cpu.rip)
	}
	if got := cpu.GPR(regRAX, 32); got != 0xbeef {
		t.Errorf("EAX = %#x, want 0xbeef (task B's saved value, not task A's)", got)
	}
	if cpu.flag(flagCF) {
		t.Error("CF should be clear: task B's EFLAGS image never set it")
	}
	if got := cpu.readCR(3); got != 0xabcd000 {
		t.Errorf("CR3 = %#x, want 0xabcd000", got)
	}
	if cpu.seg[segCS].selector != codeSel {
		t.Errorf("CS selector = %#x, want %#x", cpu.seg[segCS].selector, uint16(codeSel))
	}
	if cpu.cpl != 0 {
		t.Errorf("CPL = %d, want 0", cpu.cpl)
	}
}
