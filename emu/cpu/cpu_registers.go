/*
   x86emu - GPR/segment/control register accessors.

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

// GPR returns register index at the given width (8, 16, 32, 64),
// generalizing the teacher's loadDouble register-pair read to the
// x86 sub-register alias rules of §4.3.
func (cpu *CPU) GPR(index int, width int) uint64 {
	v := cpu.regs[index&0xf]
	switch width {
	case 8:
		return v & 0xff
	case 16:
		return v & 0xffff
	case 32:
		return v & 0xffffffff
	default:
		return v
	}
}

// WriteGPR writes register index at the given width. A 32-bit write
// zeroes the upper 32 bits (long-mode rule); 8- and 16-bit writes
// preserve the upper bits of the register.
func (cpu *CPU) WriteGPR(index int, width int, value uint64) {
	i := index & 0xf
	switch width {
	case 8:
		cpu.regs[i] = (cpu.regs[i] &^ 0xff) | (value & 0xff)
	case 16:
		cpu.regs[i] = (cpu.regs[i] &^ 0xffff) | (value & 0xffff)
	case 32:
		cpu.regs[i] = value & 0xffffffff
	default:
		cpu.regs[i] = value
	}
}

// read8h reads AH/BH/CH/DH - only reachable without a REX prefix; with
// REX the byte-register space switches to SPL/BPL/SIL/DIL instead, per
// §4.3, which the decoder enforces by never routing REX-prefixed byte
// operands through this accessor.
func (cpu *CPU) read8h(index int) uint64 {
	return (cpu.regs[index&0x3] >> 8) & 0xff
}

func (cpu *CPU) write8h(index int, value uint64) {
	i := index & 0x3
	cpu.regs[i] = (cpu.regs[i] &^ 0xff00) | ((value & 0xff) << 8)
}

// RFlags returns the full RFLAGS value.
func (cpu *CPU) RFlags() uint64 { return cpu.rflags }

func (cpu *CPU) setRFlags(v uint64) { cpu.rflags = v | flagR1 }

func (cpu *CPU) flag(mask uint64) bool { return cpu.rflags&mask != 0 }

func (cpu *CPU) setFlagBit(mask uint64, set bool) {
	if set {
		cpu.rflags |= mask
	} else {
		cpu.rflags &^= mask
	}
}

// SetFlag sets a named flag bit for external inspection/use (debugger,
// BIOS collaborator).
func (cpu *CPU) SetFlag(name string, set bool) {
	if mask, ok := flagNames[name]; ok {
		cpu.setFlagBit(mask, set)
	}
}

var flagNames = map[string]uint64{
	"CF": flagCF, "PF": flagPF, "AF": flagAF, "ZF": flagZF,
	"SF": flagSF, "TF": flagTF, "IF": flagIF, "DF": flagDF,
	"OF": flagOF, "NT": flagNT, "RF": flagRF, "VM": flagVM,
}

// RIP returns the current linear code pointer.
func (cpu *CPU) RIP() uint64 { return cpu.rip }

// Push decrements (E/R)SP by width/8 bytes then writes value, per §4.3.
func (cpu *CPU) Push(width int, value uint64) *Fault {
	aw := cpu.stackAddrWidth()
	sp := (cpu.GPR(regRSP, aw) - uint64(width/8)) & widthMask(aw)
	cpu.WriteGPR(regRSP, aw, sp)
	return cpu.writeStack(sp, width, value)
}

// Pop reads (E/R)SP then increments it by width/8 bytes.
func (cpu *CPU) Pop(width int) (uint64, *Fault) {
	aw := cpu.stackAddrWidth()
	sp := cpu.GPR(regRSP, aw)
	v, f := cpu.readStack(sp, width)
	if f != nil {
		return 0, f
	}
	cpu.WriteGPR(regRSP, aw, sp+uint64(width/8))
	return v, nil
}

func (cpu *CPU) stackAddrWidth() int {
	if cpu.mode == modeLong {
		return 64
	}
	if cpu.seg[segSS].flags&segDef32 != 0 {
		return 32
	}
	return 16
}

func (cpu *CPU) writeStack(sp uint64, width int, value uint64) *Fault {
	addr := cpu.seg[segSS].base + sp
	buf := make([]byte, width/8)
	putLE(buf, value)
	return cpu.WriteLinear(addr, buf)
}

func (cpu *CPU) readStack(sp uint64, width int) (uint64, *Fault) {
	addr := cpu.seg[segSS].base + sp
	buf := make([]byte, width/8)
	if f := cpu.ReadLinear(addr, buf); f != nil {
		return 0, f
	}
	return getLE(buf), nil
}

func putLE(buf []byte, v uint64) {
	for i := range buf {
		buf[i] = byte(v >> (8 * i))
	}
}

func getLE(buf []byte) uint64 {
	var v uint64
	for i := len(buf) - 1; i >= 0; i-- {
		v = (v << 8) | uint64(buf[i])
	}
	return v
}

// read_cr / write_cr, per §4.3: on CR0 write, update protected-mode and
// paging flags; on CR3, record the page-directory base; on CR4, update
// PAE/PSE/PGE flags. The CPU's mode field is recomputed as a side effect
// exactly once here, rather than being re-derived on every memory access.
func (cpu *CPU) readCR(n int) uint64 {
	if n < 0 || n > 4 {
		return 0
	}
	return cpu.cr[n]
}

func (cpu *CPU) writeCR(n int, value uint64) {
	if n < 0 || n > 4 {
		return
	}
	cpu.cr[n] = value
	if n == 0 || n == 4 {
		cpu.recomputeMode()
	}
}

func (cpu *CPU) recomputeMode() {
	pe := cpu.cr[0]&cr0PE != 0
	lme := cpu.efer&efLME != 0
	switch {
	case !pe:
		cpu.mode = modeReal
	case pe && lme && cpu.cr[0]&cr0PG != 0:
		cpu.mode = modeLong
	case cpu.seg[segCS].flags&segDef32 != 0:
		cpu.mode = modeProtected32
	default:
		cpu.mode = modeProtected16
	}
}

const efLME = 1 << 8 // EFER.LME
