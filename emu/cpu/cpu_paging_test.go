/*
   x86emu - page table walk test cases.

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

func TestWalk32TranslatesThroughPdAndPt(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cr[3] = 0x2000

	memory.WriteDword(0x2000, 0x3003)   // PDE 0: PT at 0x3000, P|RW
	memory.WriteDword(0x3004, 0x5003)   // PTE 1: page at 0x5000, P|RW

	phys, f := cpu.walkPageTables(0x1000, false)
	if f != nil {
		t.Fatalf("unexpected fault: %+v", f)
	}
	if phys != 0x5000 {
		t.Errorf("phys = %#x, want 0x5000", phys)
	}
}

func TestWalk32NotPresentPdeFaults(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cr[3] = 0x2000
	// PDE 0 left as all-zero: not present.

	_, f := cpu.walkPageTables(0x1000, false)
	if f == nil {
		t.Fatal("expected a page fault")
	}
	if f.Vector != vecPF {
		t.Errorf("vector = %d, want vecPF (14)", f.Vector)
	}
}

func TestWalk32NotPresentPteFaults(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cr[3] = 0x2000
	memory.WriteDword(0x2000, 0x3003) // PDE present, PT at 0x3000
	// PTE 1 left as all-zero: not present.

	_, f := cpu.walkPageTables(0x1000, false)
	if f == nil {
		t.Fatal("expected a page fault")
	}
	if f.Vector != vecPF {
		t.Errorf("vector = %d, want vecPF (14)", f.Vector)
	}
}

func TestWalk32LargePageWithPSE(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cr[3] = 0x2000
	cpu.cr[4] = cr4PSE
	// PDE 1 maps a 4 MiB page at physical 0x400000, present/RW/PS.
	memory.WriteDword(0x2000+4, 0x400000|pteP|pteRW|ptePS)

	linear := uint64(0x400000 + 0x1234) // within PD index 1
	phys, f := cpu.walkPageTables(linear, false)
	if f != nil {
		t.Fatalf("unexpected fault: %+v", f)
	}
	if phys != 0x400000+0x1234 {
		t.Errorf("phys = %#x, want %#x", phys, 0x400000+0x1234)
	}
}

func TestReadLinearGoesThroughPagingWhenEnabled(t *testing.T) {
	cpu := newTestCPU()
	cpu.mode = modeProtected32
	cpu.cr[0] |= cr0PG
	cpu.cr[3] = 0x2000
	memory.WriteDword(0x2000, 0x3003)
	memory.WriteDword(0x3004, 0x5003)
	memory.WriteBytes(0x5000, []byte{0xaa, 0xbb})

	buf := make([]byte, 2)
	if f := cpu.ReadLinear(0x1000, buf); f != nil {
		t.Fatalf("unexpected fault: %+v", f)
	}
	if buf[0] != 0xaa || buf[1] != 0xbb {
		t.Errorf("buf = %x, want aabb", buf)
	}
}
