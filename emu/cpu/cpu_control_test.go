/*
   x86emu - control-transfer instruction test cases.

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

func TestJccTakenWhenConditionHolds(t *testing.T) {
	cpu := newTestCPU()
	cpu.setFlagBit(flagZF, true)
	load(cpu, 0x74, 0x05) // JE +5
	start := cpu.rip
	step(t, cpu)

	if want := start + 2 + 5; cpu.rip != want {
		t.Errorf("rip = %#x, want %#x", cpu.rip, want)
	}
}

func TestJccNotTakenWhenConditionFails(t *testing.T) {
	cpu := newTestCPU()
	cpu.setFlagBit(flagZF, false)
	load(cpu, 0x74, 0x05) // JE +5, not taken
	start := cpu.rip
	step(t, cpu)

	if want := start + 2; cpu.rip != want {
		t.Errorf("rip = %#x, want %#x (fall through)", cpu.rip, want)
	}
}

func TestJmpShortUnconditional(t *testing.T) {
	cpu := newTestCPU()
	load(cpu, 0xeb, 0x03) // JMP +3
	start := cpu.rip
	step(t, cpu)

	if want := start + 2 + 3; cpu.rip != want {
		t.Errorf("rip = %#x, want %#x", cpu.rip, want)
	}
}

func TestCallNearThenRetNearRoundTrips(t *testing.T) {
	cpu := newTestCPU()
	start := cpu.rip
	// CALL rel16=5 in default 16-bit real-mode operand size: a 3-byte
	// instruction, so the call lands 3+5=8 bytes past start; a RET sits
	// there waiting to bounce straight back to the return address
	// pushed by the call.
	load(cpu, 0xe8, 0x05, 0x00)
	memory.WriteBytes(start+8, []byte{0xc3})

	step(t, cpu) // CALL
	if want := start + 8; cpu.rip != want {
		t.Fatalf("after CALL rip = %#x, want %#x", cpu.rip, want)
	}

	step(t, cpu) // RET
	if want := start + 3; cpu.rip != want {
		t.Errorf("after RET rip = %#x, want %#x (return address)", cpu.rip, want)
	}
}

func TestLoopDecrementsCxAndBranches(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 16, 2)
	start := cpu.rip
	load(cpu, 0xe2, 0xfe) // LOOP -2, branches back to itself
	step(t, cpu)

	if got := cpu.GPR(regRCX, 16); got != 1 {
		t.Errorf("CX = %d, want 1", got)
	}
	if cpu.rip != start {
		t.Errorf("rip = %#x, want %#x (loop taken)", cpu.rip, start)
	}
}

func TestLoopFallsThroughWhenCxReachesZero(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 16, 1)
	start := cpu.rip
	load(cpu, 0xe2, 0xfe)
	step(t, cpu)

	if got := cpu.GPR(regRCX, 16); got != 0 {
		t.Errorf("CX = %d, want 0", got)
	}
	if want := start + 2; cpu.rip != want {
		t.Errorf("rip = %#x, want %#x (loop not taken)", cpu.rip, want)
	}
}

func TestJcxzBranchesWhenCxZero(t *testing.T) {
	cpu := newTestCPU()
	cpu.WriteGPR(regRCX, 16, 0)
	start := cpu.rip
	load(cpu, 0xe3, 0x02) // JCXZ +2
	step(t, cpu)

	if want := start + 2 + 2; cpu.rip != want {
		t.Errorf("rip = %#x, want %#x", cpu.rip, want)
	}
}

func TestInt3ThenIretRoundTrips(t *testing.T) {
	cpu := newTestCPU()
	cpu.setFlagBit(flagIF, true)
	start := cpu.rip

	// Real-mode IVT entry for vector 3 (the INT3 breakpoint vector)
	// points at offset 0x0200 in segment 0.
	memory.WriteWord(3*4, 0x0200)
	memory.WriteWord(3*4+2, 0)
	load(cpu, 0xcc) // INT3
	memory.WriteBytes(0x0200, []byte{0xcf})

	step(t, cpu) // INT3
	if cpu.rip != 0x0200 {
		t.Fatalf("after INT3 rip = %#x, want 0x200", cpu.rip)
	}
	if cpu.flag(flagIF) {
		t.Error("INT3 should clear IF")
	}

	step(t, cpu) // IRET
	if want := start + 1; cpu.rip != want {
		t.Errorf("after IRET rip = %#x, want %#x", cpu.rip, want)
	}
	if !cpu.flag(flagIF) {
		t.Error("IRET should restore the pushed IF")
	}
}

// TestCallFarThroughGateSwitchesStackAndCopiesParams drives callFar
// directly (white-box) against a 32-bit call gate whose target code
// segment is more privileged than the caller, exercising the
// privilege-escalation path of §4.5's gate transfer: the TSS-recorded
// ring-0 stack is switched to, two parameter dwords are copied across
// from the caller's stack, and the old SS:ESP is pushed below them.
func TestCallFarThroughGateSwitchesStackAndCopiesParams(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cpl = 3
	cpu.gdtr.base = 0x5000
	cpu.gdtr.limit = 0xffff

	const (
		ring0CodeSel = 0x08
		ring0DataSel = 0x20
		gateSel      = 0x30
		gateOffset   = 0x3000
		tssBase      = 0x6000
		ring0Stack   = 0x9000
		paramCount   = 2
	)

	// Flat 32-bit ring-0 code segment, the gate's target.
	memory.WriteBytes(cpu.gdtr.base+ring0CodeSel, []byte{
		0xff, 0xff, 0x00, 0x00, 0x00, 0x9a, 0xcf, 0x00,
	})
	// Flat ring-0 data segment, the ring-0 stack's SS.
	memory.WriteBytes(cpu.gdtr.base+ring0DataSel, []byte{
		0xff, 0xff, 0x00, 0x00, 0x00, 0x92, 0xcf, 0x00,
	})
	// 32-bit call gate: present, DPL=3, S=0, type=0xC, selector
	// ring0CodeSel:gateOffset, 2 stack parameters.
	memory.WriteBytes(cpu.gdtr.base+gateSel, []byte{
		gateOffset & 0xff, (gateOffset >> 8) & 0xff,
		ring0CodeSel, 0x00,
		paramCount,
		0xec,
		0x00, 0x00,
	})

	cpu.tr = segReg{base: tssBase}
	memory.WriteDword(tssBase+4, ring0Stack) // ESP0
	memory.WriteWord(tssBase+8, ring0DataSel) // SS0

	cpu.seg[segCS] = segReg{selector: 0x1b, base: 0, flags: segPresent | segExec | segDef32}
	cpu.seg[segSS] = segReg{selector: 0x23, base: 0, flags: segPresent | segDef32}
	cpu.rip = 0x2000
	const callerSP = 0x8000
	cpu.WriteGPR(regRSP, 32, callerSP)
	memory.WriteDword(callerSP, 0xaaaa)
	memory.WriteDword(callerSP+4, 0xbbbb)

	f := cpu.callFar(gateSel, 0, &decodeCtx{opSize: 32})
	if f != nil {
		t.Fatalf("callFar through gate: %v", f)
	}

	if cpu.rip != gateOffset {
		t.Errorf("rip = %#x, want %#x", cpu.rip, uint64(gateOffset))
	}
	if cpu.seg[segCS].selector != ring0CodeSel {
		t.Errorf("CS selector = %#x, want %#x", cpu.seg[segCS].selector, uint16(ring0CodeSel))
	}
	if cpu.cpl != 0 {
		t.Errorf("CPL = %d, want 0 after escalating through the gate", cpu.cpl)
	}
	if cpu.seg[segSS].selector != ring0DataSel {
		t.Errorf("SS selector = %#x, want %#x", cpu.seg[segSS].selector, uint16(ring0DataSel))
	}

	const pushedBytes = 6 * 4 // oldSS, oldSP, 2 params, oldCS, oldIP
	wantSP := uint64(ring0Stack - pushedBytes)
	if got := cpu.GPR(regRSP, 32); got != wantSP {
		t.Errorf("ESP = %#x, want %#x", got, wantSP)
	}

	if got := memory.ReadDword(wantSP); got != 0x2000 {
		t.Errorf("pushed return IP = %#x, want 0x2000", got)
	}
	if got := memory.ReadDword(wantSP + 4); got != 0x1b {
		t.Errorf("pushed return CS = %#x, want 0x1b", got)
	}
	if got := memory.ReadDword(wantSP + 8); got != 0xaaaa {
		t.Errorf("copied param 0 = %#x, want 0xaaaa", got)
	}
	if got := memory.ReadDword(wantSP + 12); got != 0xbbbb {
		t.Errorf("copied param 1 = %#x, want 0xbbbb", got)
	}
	if got := memory.ReadDword(wantSP + 16); got != callerSP {
		t.Errorf("pushed old ESP = %#x, want %#x", got, uint64(callerSP))
	}
	if got := memory.ReadDword(wantSP + 20); got != 0x23 {
		t.Errorf("pushed old SS = %#x, want 0x23", got)
	}
}
