/*
   x86emu - shift/rotate: SHL/SAL/SHR/SAR/ROL/ROR/RCL/RCR.

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

// shiftMask masks the count to 5 bits for <=32-bit operands, 6 bits for
// 64-bit, per §4.4.
func shiftMask(w int) uint64 {
	if w == 64 {
		return 0x3f
	}
	return 0x1f
}

// aluShift implements one Group 2 /digit operation. If the masked
// count is zero, the operand and flags are left unchanged and memory
// is not written (caller skips the write-back in that case via the ok
// return).
func (cpu *CPU) aluShift(digit uint8, a uint64, count uint64, w int) (result uint64, ok bool) {
	n := count & shiftMask(w)
	if n == 0 {
		return a, false
	}
	m := widthMask(w)
	a &= m

	switch digit {
	case 0: // ROL
		return cpu.rol(a, n, w), true
	case 1: // ROR
		return cpu.ror(a, n, w), true
	case 2: // RCL
		return cpu.rcl(a, n, w), true
	case 3: // RCR
		return cpu.rcr(a, n, w), true
	case 4, 6: // SHL/SAL
		return cpu.shl(a, n, w), true
	case 5: // SHR
		return cpu.shr(a, n, w), true
	default: // 7: SAR
		return cpu.sar(a, n, w), true
	}
}

func (cpu *CPU) shl(a, n uint64, w int) uint64 {
	m := widthMask(w)
	var cf bool
	if n <= uint64(w) {
		if n == 0 {
			cf = false
		} else {
			cf = (a>>(uint64(w)-n))&1 != 0
		}
	}
	result := (a << n) & m
	cpu.setFlagBit(flagCF, cf)
	if n == 1 {
		cpu.setFlagBit(flagOF, (result&signBit(w) != 0) != cf)
	}
	cpu.setCC(result, w)
	return result
}

func (cpu *CPU) shr(a, n uint64, w int) uint64 {
	m := widthMask(w)
	cf := n >= 1 && n <= uint64(w) && (a>>(n-1))&1 != 0
	result := (a & m) >> n
	cpu.setFlagBit(flagCF, cf)
	if n == 1 {
		cpu.setFlagBit(flagOF, a&signBit(w) != 0)
	}
	cpu.setCC(result, w)
	return result
}

func (cpu *CPU) sar(a, n uint64, w int) uint64 {
	signExt := a & signBit(w)
	cf := n <= uint64(w) && (a>>(n-1))&1 != 0
	result := a >> n
	if signExt != 0 {
		// Fill vacated high bits with the sign bit.
		fill := widthMask(w) << (uint64(w) - min64(n, uint64(w)))
		result |= fill & widthMask(w)
	}
	cpu.setFlagBit(flagCF, cf)
	if n == 1 {
		cpu.setFlagBit(flagOF, false)
	}
	cpu.setCC(result, w)
	return result
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func (cpu *CPU) rol(a, n uint64, w int) uint64 {
	nn := n % uint64(w)
	m := widthMask(w)
	result := ((a << nn) | (a >> (uint64(w) - nn))) & m
	if nn == 0 {
		nn = uint64(w)
	}
	cf := result&1 != 0
	cpu.setFlagBit(flagCF, cf)
	if n == 1 {
		cpu.setFlagBit(flagOF, (result&signBit(w) != 0) != cf)
	}
	return result
}

func (cpu *CPU) ror(a, n uint64, w int) uint64 {
	nn := n % uint64(w)
	m := widthMask(w)
	result := ((a >> nn) | (a << (uint64(w) - nn))) & m
	cf := result&signBit(w) != 0
	cpu.setFlagBit(flagCF, cf)
	if n == 1 {
		next := (result >> (uint64(w) - 2)) & 1
		cpu.setFlagBit(flagOF, cf != (next != 0))
	}
	return result
}

func (cpu *CPU) rcl(a, n uint64, w int) uint64 {
	m := widthMask(w)
	cf := uint64(0)
	if cpu.flag(flagCF) {
		cf = 1
	}
	width := uint64(w) + 1
	nn := n % width
	val := (a & m) | (cf << w)
	var result uint64
	if nn == 0 {
		result = val
	} else {
		result = ((val << nn) | (val >> (width - nn))) & ((uint64(1) << width) - 1)
	}
	newCF := (result >> w) & 1
	cpu.setFlagBit(flagCF, newCF != 0)
	result &= m
	if n == 1 {
		cpu.setFlagBit(flagOF, (result&signBit(w) != 0) != (newCF != 0))
	}
	return result
}

func (cpu *CPU) rcr(a, n uint64, w int) uint64 {
	m := widthMask(w)
	cf := uint64(0)
	if cpu.flag(flagCF) {
		cf = 1
	}
	width := uint64(w) + 1
	nn := n % width
	val := (a & m) | (cf << w)
	var result uint64
	if nn == 0 {
		result = val
	} else {
		result = ((val >> nn) | (val << (width - nn))) & ((uint64(1) << width) - 1)
	}
	newCF := (result >> w) & 1
	if n == 1 {
		oldSign := a&signBit(w) != 0
		cpu.setFlagBit(flagOF, oldSign != (newCF != 0))
	}
	cpu.setFlagBit(flagCF, newCF != 0)
	return result & m
}
