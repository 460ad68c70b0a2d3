/*
   x86emu - ALU flag engine: ADD/ADC/SUB/SBB/CMP/AND/OR/XOR/TEST/INC/DEC/NEG.

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

import "math/bits"

func widthMask(w int) uint64 {
	if w == 64 {
		return ^uint64(0)
	}
	return (uint64(1) << w) - 1
}

func signBit(w int) uint64 { return uint64(1) << (w - 1) }

// setCC consolidates ZF, SF, PF from a result and width, the single
// routine the teacher's setCC plays for the IBM condition code,
// generalized here to three of the six x86 flags; CF/OF/AF are set
// separately by each arithmetic-class helper below since their laws
// differ per operation (§4.4).
func (cpu *CPU) setCC(result uint64, w int) {
	m := widthMask(w)
	r := result & m
	cpu.setFlagBit(flagZF, r == 0)
	cpu.setFlagBit(flagSF, r&signBit(w) != 0)
	cpu.setFlagBit(flagPF, bits.OnesCount8(uint8(r))%2 == 0)
}

// addFlags implements the ADD/ADC row of §4.4's flag-law table. CF is
// unsigned-overflow-out-of-width w: for w<64 that's "did the full-width
// sum exceed the mask", which plain uint64 arithmetic can answer
// directly since a and b are already within the mask and can't wrap a
// 64-bit accumulator; at w==64 the sum itself is computed in uint64 and
// can genuinely wrap, so the carry has to come from bits.Add64 instead
// of a comparison against (an all-ones) mask.
func (cpu *CPU) addFlags(a, b, carryIn uint64, w int) uint64 {
	m := widthMask(w)
	sum, carryOut := bits.Add64(a, b, carryIn&1)
	result := sum & m
	sa := a & signBit(w)
	sb := b & signBit(w)
	sr := result & signBit(w)

	cf := sum > m
	if w == 64 {
		cf = carryOut != 0
	}
	cpu.setFlagBit(flagCF, cf)
	cpu.setFlagBit(flagOF, (sa == sb) && (sa != sr))
	cpu.setFlagBit(flagAF, (a&0xF)+(b&0xF)+carryIn > 0xF)
	cpu.setCC(result, w)
	return result
}

// subFlags implements the SUB/SBB/CMP row of §4.4. Same w==64 wraparound
// hazard as addFlags: b+borrowIn can itself overflow uint64 when b is
// already the all-ones mask, so the borrow is computed via bits.Sub64
// rather than a direct comparison.
func (cpu *CPU) subFlags(a, b, borrowIn uint64, w int) uint64 {
	m := widthMask(w)
	diffFull, borrowOut := bits.Sub64(a, b, borrowIn&1)
	diff := diffFull & m
	sa := a & signBit(w)
	sb := b & signBit(w)
	sr := diff & signBit(w)

	cf := a < b+borrowIn
	if w == 64 {
		cf = borrowOut != 0
	}
	cpu.setFlagBit(flagCF, cf)
	cpu.setFlagBit(flagOF, (sa != sb) && (sb == sr))
	cpu.setFlagBit(flagAF, (a&0xF) < (b&0xF)+borrowIn)
	cpu.setCC(diff, w)
	return diff
}

// logicFlags implements the AND/OR/XOR/TEST row: CF=0, OF=0, AF
// undefined (specified here as cleared, per §7's blanket rule for
// unspecified flags).
func (cpu *CPU) logicFlags(result uint64, w int) uint64 {
	m := widthMask(w)
	r := result & m
	cpu.setFlagBit(flagCF, false)
	cpu.setFlagBit(flagOF, false)
	cpu.setFlagBit(flagAF, false)
	cpu.setCC(r, w)
	return r
}

// incFlags, decFlags and negFlags implement INC/DEC/NEG: CF is *unchanged* by INC/DEC
// (only NEG sets it here), per §4.4.
func (cpu *CPU) incFlags(a uint64, w int) uint64 {
	m := widthMask(w)
	result := (a + 1) & m
	cpu.setFlagBit(flagOF, result == signBit(w))
	cpu.setFlagBit(flagAF, (a&0xF)+1 > 0xF)
	cpu.setCC(result, w)
	return result
}

func (cpu *CPU) decFlags(a uint64, w int) uint64 {
	m := widthMask(w)
	result := (a - 1) & m
	cpu.setFlagBit(flagOF, result == signBit(w)-1)
	cpu.setFlagBit(flagAF, a&0xF == 0)
	cpu.setCC(result, w)
	return result
}

func (cpu *CPU) negFlags(a uint64, w int) uint64 {
	m := widthMask(w)
	result := (-a) & m
	cpu.setFlagBit(flagCF, a != 0)
	cpu.setFlagBit(flagOF, a == signBit(w))
	cpu.setFlagBit(flagAF, a&0xF != 0)
	cpu.setCC(result, w)
	return result
}

// aluBinary implements one ADD/OR/ADC/SBB/AND/SUB/XOR/CMP group
// operation (the Group 1 /digit selectors), sets the flags and returns
// the result; it does not write it back (callers do, except for CMP).
func (cpu *CPU) aluBinary(digit uint8, a, b uint64, w int) uint64 {
	carryIn := uint64(0)
	if cpu.flag(flagCF) {
		carryIn = 1
	}
	switch digit {
	case 0: // ADD
		return cpu.addFlags(a, b, 0, w)
	case 1: // OR
		return cpu.logicFlags(a|b, w)
	case 2: // ADC
		return cpu.addFlags(a, b, carryIn, w)
	case 3: // SBB
		return cpu.subFlags(a, b, carryIn, w)
	case 4: // AND
		return cpu.logicFlags(a&b, w)
	case 5: // SUB
		return cpu.subFlags(a, b, 0, w)
	case 6: // XOR
		return cpu.logicFlags(a^b, w)
	default: // 7: CMP - discard result
		cpu.subFlags(a, b, 0, w)
		return a
	}
}
