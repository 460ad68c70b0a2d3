/*
   x86emu - CPU opcode constants for decode and dispatch.

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

package opcodemap

// Primary opcode map. Single byte opcodes, dispatched by emu/cpu's 256
// entry handler table.
const (
	OpAddEbGb  = 0x00
	OpAddEvGv  = 0x01
	OpAddGbEb  = 0x02
	OpAddGvEv  = 0x03
	OpAddALIb  = 0x04
	OpAddAXIz  = 0x05
	OpPushES   = 0x06
	OpPopES    = 0x07
	OpOrEbGb   = 0x08
	OpOrEvGv   = 0x09
	OpOrGbEb   = 0x0A
	OpOrGvEv   = 0x0B
	OpOrALIb   = 0x0C
	OpOrAXIz   = 0x0D
	OpPushCS   = 0x0E
	OpTwoByte  = 0x0F
	OpAdcEbGb  = 0x10
	OpAdcEvGv  = 0x11
	OpAdcGbEb  = 0x12
	OpAdcGvEv  = 0x13
	OpAdcALIb  = 0x14
	OpAdcAXIz  = 0x15
	OpPushSS   = 0x16
	OpPopSS    = 0x17
	OpSbbEbGb  = 0x18
	OpSbbEvGv  = 0x19
	OpSbbGbEb  = 0x1A
	OpSbbGvEv  = 0x1B
	OpSbbALIb  = 0x1C
	OpSbbAXIz  = 0x1D
	OpPushDS   = 0x1E
	OpPopDS    = 0x1F
	OpAndEbGb  = 0x20
	OpAndEvGv  = 0x21
	OpAndGbEb  = 0x22
	OpAndGvEv  = 0x23
	OpAndALIb  = 0x24
	OpAndAXIz  = 0x25
	OpSegES    = 0x26
	OpDAA      = 0x27
	OpSubEbGb  = 0x28
	OpSubEvGv  = 0x29
	OpSubGbEb  = 0x2A
	OpSubGvEv  = 0x2B
	OpSubALIb  = 0x2C
	OpSubAXIz  = 0x2D
	OpSegCS    = 0x2E
	OpDAS      = 0x2F
	OpXorEbGb  = 0x30
	OpXorEvGv  = 0x31
	OpXorGbEb  = 0x32
	OpXorGvEv  = 0x33
	OpXorALIb  = 0x34
	OpXorAXIz  = 0x35
	OpSegSS    = 0x36
	OpAAA      = 0x37
	OpCmpEbGb  = 0x38
	OpCmpEvGv  = 0x39
	OpCmpGbEb  = 0x3A
	OpCmpGvEv  = 0x3B
	OpCmpALIb  = 0x3C
	OpCmpAXIz  = 0x3D
	OpSegDS    = 0x3E
	OpAAS      = 0x3F
	OpIncBase  = 0x40 // 0x40-0x47 INC r16/32 (legacy); REX prefix range in long mode
	OpDecBase  = 0x48 // 0x48-0x4F DEC r16/32 (legacy); REX prefix range in long mode
	OpPushBase = 0x50 // 0x50-0x57
	OpPopBase  = 0x58 // 0x58-0x5F
	OpPusha    = 0x60
	OpPopa     = 0x61
	OpBound    = 0x62
	OpArpl     = 0x63
	OpSegFS    = 0x64
	OpSegGS    = 0x65
	OpOpSize   = 0x66
	OpAddrSize = 0x67
	OpPushIz   = 0x68
	OpImulGvEvIz = 0x69
	OpPushIb   = 0x6A
	OpImulGvEvIb = 0x6B
	OpInsb     = 0x6C
	OpInsz     = 0x6D
	OpOutsb    = 0x6E
	OpOutsz    = 0x6F
	OpJccBase  = 0x70 // 0x70-0x7F Jcc rel8
	OpGrp1Eb   = 0x80
	OpGrp1Ev   = 0x81
	OpGrp1EbS  = 0x82
	OpGrp1EvIb = 0x83
	OpTestEbGb = 0x84
	OpTestEvGv = 0x85
	OpXchgEbGb = 0x86
	OpXchgEvGv = 0x87
	OpMovEbGb  = 0x88
	OpMovEvGv  = 0x89
	OpMovGbEb  = 0x8A
	OpMovGvEv  = 0x8B
	OpMovEvSw  = 0x8C
	OpLea      = 0x8D
	OpMovSwEv  = 0x8E
	OpPopEv    = 0x8F
	OpNop      = 0x90 // 0x90-0x97 XCHG AX,r / NOP
	OpCbw      = 0x98
	OpCwd      = 0x99
	OpCallFar  = 0x9A
	OpWait     = 0x9B
	OpPushf    = 0x9C
	OpPopf     = 0x9D
	OpSahf     = 0x9E
	OpLahf     = 0x9F
	OpMovALOb  = 0xA0
	OpMovAXOv  = 0xA1
	OpMovObAL  = 0xA2
	OpMovOvAX  = 0xA3
	OpMovsb    = 0xA4
	OpMovsz    = 0xA5
	OpCmpsb    = 0xA6
	OpCmpsz    = 0xA7
	OpTestALIb = 0xA8
	OpTestAXIz = 0xA9
	OpStosb    = 0xAA
	OpStosz    = 0xAB
	OpLodsb    = 0xAC
	OpLodsz    = 0xAD
	OpScasb    = 0xAE
	OpScasz    = 0xAF
	OpMovBIb   = 0xB0 // 0xB0-0xB7 MOV r8, imm8
	OpMovIz    = 0xB8 // 0xB8-0xBF MOV r16/32/64, imm
	OpGrp2Ib8  = 0xC0
	OpGrp2Ib   = 0xC1
	OpRetIw    = 0xC2
	OpRet      = 0xC3
	OpLes      = 0xC4
	OpLds      = 0xC5
	OpMovEbIb  = 0xC6
	OpMovEvIz  = 0xC7
	OpEnter    = 0xC8
	OpLeave    = 0xC9
	OpRetfIw   = 0xCA
	OpRetf     = 0xCB
	OpInt3     = 0xCC
	OpIntIb    = 0xCD
	OpInto     = 0xCE
	OpIret     = 0xCF
	OpGrp2Eb1  = 0xD0
	OpGrp2Ev1  = 0xD1
	OpGrp2EbCL = 0xD2
	OpGrp2EvCL = 0xD3
	OpAam      = 0xD4
	OpAad      = 0xD5
	OpXlat     = 0xD7
	OpLoopnz   = 0xE0
	OpLoopz    = 0xE1
	OpLoop     = 0xE2
	OpJcxz     = 0xE3
	OpInALIb   = 0xE4
	OpInAXIb   = 0xE5
	OpOutIbAL  = 0xE6
	OpOutIbAX  = 0xE7
	OpCallJz   = 0xE8
	OpJmpJz    = 0xE9
	OpJmpAp    = 0xEA
	OpJmpJb    = 0xEB
	OpInALDX   = 0xEC
	OpInAXDX   = 0xED
	OpOutDXAL  = 0xEE
	OpOutDXAX  = 0xEF
	OpLock     = 0xF0
	OpRepne    = 0xF2
	OpRep      = 0xF3
	OpHlt      = 0xF4
	OpCmc      = 0xF5
	OpGrp3Eb   = 0xF6
	OpGrp3Ev   = 0xF7
	OpClc      = 0xF8
	OpStc      = 0xF9
	OpCli      = 0xFA
	OpSti      = 0xFB
	OpCld      = 0xFC
	OpStd      = 0xFD
	OpGrp4     = 0xFE
	OpGrp5     = 0xFF
)

// Group /digit selectors (reg field of ModR/M) for the opcodes that fan
// out by sub-opcode instead of by opcode byte.
const (
	GrpAdd = 0
	GrpOr  = 1
	GrpAdc = 2
	GrpSbb = 3
	GrpAnd = 4
	GrpSub = 5
	GrpXor = 6
	GrpCmp = 7

	GrpRol = 0
	GrpRor = 1
	GrpRcl = 2
	GrpRcr = 3
	GrpShl = 4
	GrpShr = 5
	GrpSar = 7

	Grp3Test = 0
	Grp3Not  = 2
	Grp3Neg  = 3
	Grp3Mul  = 4
	Grp3IMul = 5
	Grp3Div  = 6
	Grp3IDiv = 7

	Grp5Inc     = 0
	Grp5Dec     = 1
	Grp5CallNear = 2
	Grp5CallFar  = 3
	Grp5JmpNear  = 4
	Grp5JmpFar   = 5
	Grp5Push     = 6
)

// Two-byte (0F escape) opcode map, dispatched by emu/cpu's second 256
// entry handler table.
const (
	Op0FGrp6    = 0x00 // SLDT/STR/LLDT/LTR/VERR/VERW
	Op0FGrp7    = 0x01 // SGDT/SIDT/LGDT/LIDT/SMSW/LMSW/INVLPG
	Op0FLar     = 0x02
	Op0FLsl     = 0x03
	Op0FSyscall = 0x05
	Op0FClts    = 0x06
	Op0FSysret  = 0x07
	Op0FInvd    = 0x08
	Op0FWbinvd  = 0x09
	Op0FUd2     = 0x0B
	Op0FMovRdCr = 0x20 // MOV r32, CRn
	Op0FMovRdDr = 0x21 // MOV r32, DRn
	Op0FMovCrRd = 0x22 // MOV CRn, r32
	Op0FMovDrRd = 0x23 // MOV DRn, r32
	Op0FCmovBase = 0x40 // 0x0F 0x40-0x4F CMOVcc Gv,Ev
	Op0FJccBase = 0x80 // 0x0F 0x80-0x8F Jcc rel32/16
	Op0FSetBase = 0x90 // 0x0F 0x90-0x9F SETcc
	Op0FPushFS  = 0xA0
	Op0FPopFS   = 0xA1
	Op0FCpuid   = 0xA2
	Op0FBt      = 0xA3
	Op0FShld    = 0xA4
	Op0FShldCL  = 0xA5
	Op0FPushGS  = 0xA8
	Op0FPopGS   = 0xA9
	Op0FRsm     = 0xAA
	Op0FBts     = 0xAB
	Op0FShrd    = 0xAC
	Op0FShrdCL  = 0xAD
	Op0FGrp15   = 0xAE // FXSAVE/FXRSTOR/LDMXCSR/STMXCSR
	Op0FImul    = 0xAF
	Op0FCmpxchgB = 0xB0
	Op0FCmpxchg  = 0xB1
	Op0FLss     = 0xB2
	Op0FBtr     = 0xB3
	Op0FLfs     = 0xB4
	Op0FLgs     = 0xB5
	Op0FMovzxB  = 0xB6
	Op0FMovzxW  = 0xB7
	Op0FGrp10   = 0xBA // BT/BTS/BTR/BTC with imm8
	Op0FBtc     = 0xBB
	Op0FBsf     = 0xBC
	Op0FBsr     = 0xBD
	Op0FMovsxB  = 0xBE
	Op0FMovsxW  = 0xBF
	Op0FXadd8   = 0xC0
	Op0FXadd    = 0xC1
	Op0FGrp9    = 0xC7 // CMPXCHG8B/16B
	Op0FBswap   = 0xC8 // 0xC8-0xCF BSWAP r32/64
)
