/*
   x86emu - MUL/IMUL/DIV/IDIV and BSF/BSR.

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

// mulUnsigned implements MUL: product in AX/DX:AX/EDX:EAX/RDX:RAX,
// CF=OF=1 iff the upper half is nonzero, per §4.4.
func (cpu *CPU) mulUnsigned(a uint64, w int) {
	switch w {
	case 8:
		p := (a & 0xff) * (cpu.GPR(regRAX, 8) & 0xff)
		cpu.WriteGPR(regRAX, 16, p&0xffff)
		cpu.setFlagBit(flagCF, p>>8 != 0)
		cpu.setFlagBit(flagOF, p>>8 != 0)
	case 16:
		p := (a & 0xffff) * (cpu.GPR(regRAX, 16) & 0xffff)
		cpu.WriteGPR(regRAX, 16, p&0xffff)
		cpu.WriteGPR(regRDX, 16, p>>16)
		cpu.setFlagBit(flagCF, p>>16 != 0)
		cpu.setFlagBit(flagOF, p>>16 != 0)
	case 32:
		p := (a & 0xffffffff) * (cpu.GPR(regRAX, 32) & 0xffffffff)
		cpu.WriteGPR(regRAX, 32, p&0xffffffff)
		cpu.WriteGPR(regRDX, 32, p>>32)
		cpu.setFlagBit(flagCF, p>>32 != 0)
		cpu.setFlagBit(flagOF, p>>32 != 0)
	default: // 64
		hi, lo := bits.Mul64(a, cpu.GPR(regRAX, 64))
		cpu.WriteGPR(regRAX, 64, lo)
		cpu.WriteGPR(regRDX, 64, hi)
		cpu.setFlagBit(flagCF, hi != 0)
		cpu.setFlagBit(flagOF, hi != 0)
	}
}

// mulSigned implements one-operand IMUL: CF=OF=1 iff the result does
// not fit in the lower half as a signed value, per §4.4.
func (cpu *CPU) mulSigned(a uint64, w int) {
	switch w {
	case 8:
		p := int64(int8(a)) * int64(int8(cpu.GPR(regRAX, 8)))
		cpu.WriteGPR(regRAX, 16, uint64(p)&0xffff)
		overflow := p != int64(int8(p))
		cpu.setFlagBit(flagCF, overflow)
		cpu.setFlagBit(flagOF, overflow)
	case 16:
		p := int64(int16(a)) * int64(int16(cpu.GPR(regRAX, 16)))
		cpu.WriteGPR(regRAX, 16, uint64(p)&0xffff)
		cpu.WriteGPR(regRDX, 16, uint64(p>>16)&0xffff)
		overflow := p != int64(int16(p))
		cpu.setFlagBit(flagCF, overflow)
		cpu.setFlagBit(flagOF, overflow)
	case 32:
		p := int64(int32(a)) * int64(int32(cpu.GPR(regRAX, 32)))
		cpu.WriteGPR(regRAX, 32, uint64(p)&0xffffffff)
		cpu.WriteGPR(regRDX, 32, uint64(p>>32)&0xffffffff)
		overflow := p != int64(int32(p))
		cpu.setFlagBit(flagCF, overflow)
		cpu.setFlagBit(flagOF, overflow)
	default: // 64
		hi, lo := bits.Mul64(uint64(int64(a)), cpu.GPR(regRAX, 64))
		cpu.WriteGPR(regRAX, 64, lo)
		cpu.WriteGPR(regRDX, 64, hi)
		neg := int64(lo) < 0
		overflow := hi != 0 && !(neg && hi == ^uint64(0))
		cpu.setFlagBit(flagCF, overflow)
		cpu.setFlagBit(flagOF, overflow)
	}
}

// imul3 implements the three-operand IMUL forms (0F AF, 69/6B imm):
// writes dest, CF=OF=1 on signed overflow, SF/ZF/AF/PF specified as 0
// (undefined per SDM, cleared per §7's blanket rule).
func (cpu *CPU) imul3(a, b int64, w int) uint64 {
	p := a * b
	m := int64(widthMask(w))
	truncated := p & m
	var overflow bool
	switch w {
	case 8:
		overflow = p != int64(int8(p))
	case 16:
		overflow = p != int64(int16(p))
	case 32:
		overflow = p != int64(int32(p))
	default:
		hi, _ := bits.Mul64(uint64(a), uint64(b))
		overflow = hi != 0 && hi != ^uint64(0)
	}
	cpu.setFlagBit(flagCF, overflow)
	cpu.setFlagBit(flagOF, overflow)
	cpu.setFlagBit(flagSF, false)
	cpu.setFlagBit(flagZF, false)
	cpu.setFlagBit(flagAF, false)
	cpu.setFlagBit(flagPF, false)
	return uint64(truncated)
}

// divUnsigned implements unsigned DIV, trapping #DE on zero divisor or
// quotient overflow, per §4.4.
func (cpu *CPU) divUnsigned(divisor uint64, w int) *Fault {
	if divisor == 0 {
		return fault(vecDE)
	}
	switch w {
	case 8:
		dividend := cpu.GPR(regRAX, 16) & 0xffff
		q, r := dividend/(divisor&0xff), dividend%(divisor&0xff)
		if q > 0xff {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 8, q)
		cpu.write8h(regRAX, r)
	case 16:
		dividend := (cpu.GPR(regRDX, 16) << 16) | cpu.GPR(regRAX, 16)
		d := divisor & 0xffff
		q, r := dividend/d, dividend%d
		if q > 0xffff {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 16, q)
		cpu.WriteGPR(regRDX, 16, r)
	case 32:
		dividend := (cpu.GPR(regRDX, 32) << 32) | cpu.GPR(regRAX, 32)
		d := divisor & 0xffffffff
		q, r := dividend/d, dividend%d
		if q > 0xffffffff {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 32, q)
		cpu.WriteGPR(regRDX, 32, r)
	default: // 64
		hi, lo := cpu.GPR(regRDX, 64), cpu.GPR(regRAX, 64)
		q, r, ok := divmod128(hi, lo, divisor)
		if !ok {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 64, q)
		cpu.WriteGPR(regRDX, 64, r)
	}
	return nil
}

func divmod128(hi, lo, divisor uint64) (q, r uint64, ok bool) {
	if hi >= divisor {
		return 0, 0, false
	}
	q, r = bits.Div64(hi, lo, divisor)
	return q, r, true
}

// neg128 negates a two's-complement 128-bit value, correctly wrapping
// the all-zero-magnitude edge case (hi:lo == 1<<127) the same way a
// plain int64 negation wraps at MinInt64.
func neg128(hi, lo uint64) (uint64, uint64) {
	nlo, borrow := bits.Sub64(0, lo, 0)
	nhi, _ := bits.Sub64(0, hi, borrow)
	return nhi, nlo
}

// divmod128Signed mirrors divmod128 for signed IDIV: reduce the signed
// 128-bit dividend and the signed 64-bit divisor to unsigned
// magnitudes, reuse the unsigned divider, then reapply signs and check
// that the quotient fits in int64 (the same quotient-overflow #DE the
// 8/16/32-bit cases already check via the widened dividend ranges).
func divmod128Signed(hi, lo uint64, divisor int64) (q, r int64, ok bool) {
	negDividend := int64(hi) < 0
	uhi, ulo := hi, lo
	if negDividend {
		uhi, ulo = neg128(uhi, ulo)
	}
	udivisor := uint64(divisor)
	negDivisor := divisor < 0
	if negDivisor {
		udivisor = -udivisor
	}
	uq, ur, ok := divmod128(uhi, ulo, udivisor)
	if !ok {
		return 0, 0, false
	}
	const limit = uint64(1) << 63
	if negDividend != negDivisor {
		if uq > limit {
			return 0, 0, false
		}
		q = -int64(uq)
	} else {
		if uq >= limit {
			return 0, 0, false
		}
		q = int64(uq)
	}
	if negDividend {
		r = -int64(ur)
	} else {
		r = int64(ur)
	}
	return q, r, true
}

// divSigned implements signed IDIV with sign extension, per §4.4.
func (cpu *CPU) divSigned(divisor uint64, w int) *Fault {
	d := int64(signExtend(divisor, w))
	if d == 0 {
		return fault(vecDE)
	}
	switch w {
	case 8:
		dividend := int64(int16(cpu.GPR(regRAX, 16)))
		q, r := dividend/d, dividend%d
		if q > 127 || q < -128 {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 8, uint64(q)&0xff)
		cpu.write8h(regRAX, uint64(r)&0xff)
	case 16:
		dividend := int64(int32(uint32(cpu.GPR(regRDX, 16))<<16 | uint32(cpu.GPR(regRAX, 16))))
		q, r := dividend/d, dividend%d
		if q > 32767 || q < -32768 {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 16, uint64(q)&0xffff)
		cpu.WriteGPR(regRDX, 16, uint64(r)&0xffff)
	case 32:
		dividend := (int64(int32(cpu.GPR(regRDX, 32))) << 32) | int64(cpu.GPR(regRAX, 32))
		q, r := dividend/d, dividend%d
		if q > 0x7fffffff || q < -0x80000000 {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 32, uint64(q)&0xffffffff)
		cpu.WriteGPR(regRDX, 32, uint64(r)&0xffffffff)
	default: // 64
		hi, lo := cpu.GPR(regRDX, 64), cpu.GPR(regRAX, 64)
		q, r, ok := divmod128Signed(hi, lo, d)
		if !ok {
			return fault(vecDE)
		}
		cpu.WriteGPR(regRAX, 64, uint64(q))
		cpu.WriteGPR(regRDX, 64, uint64(r))
	}
	return nil
}

// bsf/bsr implement the bit scans of §4.4: on a zero source, ZF=1 and
// the destination is left unchanged; otherwise ZF=0 and the
// destination gets the least/most significant set-bit index.
func (cpu *CPU) bsf(src uint64, w int) (uint64, bool) {
	v := src & widthMask(w)
	if v == 0 {
		cpu.setFlagBit(flagZF, true)
		return 0, false
	}
	cpu.setFlagBit(flagZF, false)
	return uint64(bits.TrailingZeros64(v)), true
}

func (cpu *CPU) bsr(src uint64, w int) (uint64, bool) {
	v := src & widthMask(w)
	if v == 0 {
		cpu.setFlagBit(flagZF, true)
		return 0, false
	}
	cpu.setFlagBit(flagZF, false)
	return uint64(63 - bits.LeadingZeros64(v)), true
}
