/*
   x86emu Disassembler

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

import (
	"fmt"
	"strings"

	op "github.com/rcornwell/x86emu/emu/opcodemap"
)

// Operand-format classes. Unlike the fixed-width S/370 instruction
// formats, x86 operand shape is opcode-specific; each class knows how
// many bytes past the opcode (and any ModR/M) it consumes.
const (
	fmtNone  = 1 + iota // no operands: CLC, NOP, RET...
	fmtEbGb             // r/m8, r8 (ModR/M)
	fmtEvGv             // r/m16/32, r16/32 (ModR/M)
	fmtGbEb             // r8, r/m8 (ModR/M)
	fmtGvEv             // r16/32, r/m16/32 (ModR/M)
	fmtEv               // r/m16/32 alone (ModR/M, /digit group)
	fmtEb               // r/m8 alone (ModR/M, /digit group)
	fmtALIb             // AL, imm8
	fmtEAXIz            // eAX, imm16/32
	fmtIb               // imm8 only
	fmtIz               // imm16/32 only
	fmtJb               // rel8 branch
	fmtJz               // rel16/32 branch
	fmtRegOp            // opcode low 3 bits select a register
	fmtMovRegIb         // opcode+reg, imm8
	fmtMovRegIz         // opcode+reg, imm16/32/64
	fmtGvEvIb           // r16/32, r/m16/32, imm8 (ModR/M + imm8)
	fmtGvEvIz           // r16/32, r/m16/32, imm16/32 (ModR/M + imm16/32)
	fmtEbIb             // r/m8, imm8 (ModR/M + imm8)
	fmtEvIz             // r/m16/32, imm16/32 (ModR/M + imm16/32)
)

type opcode struct {
	name string
	kind int
}

var opMap = map[uint16]opcode{
	op.OpAddEbGb: {"ADD", fmtEbGb}, op.OpAddEvGv: {"ADD", fmtEvGv},
	op.OpAddGbEb: {"ADD", fmtGbEb}, op.OpAddGvEv: {"ADD", fmtGvEv},
	op.OpAddALIb: {"ADD", fmtALIb}, op.OpAddAXIz: {"ADD", fmtEAXIz},
	op.OpOrEbGb: {"OR", fmtEbGb}, op.OpOrEvGv: {"OR", fmtEvGv},
	op.OpOrGbEb: {"OR", fmtGbEb}, op.OpOrGvEv: {"OR", fmtGvEv},
	op.OpOrALIb: {"OR", fmtALIb}, op.OpOrAXIz: {"OR", fmtEAXIz},
	op.OpAdcEbGb: {"ADC", fmtEbGb}, op.OpAdcEvGv: {"ADC", fmtEvGv},
	op.OpAdcGbEb: {"ADC", fmtGbEb}, op.OpAdcGvEv: {"ADC", fmtGvEv},
	op.OpAdcALIb: {"ADC", fmtALIb}, op.OpAdcAXIz: {"ADC", fmtEAXIz},
	op.OpSbbEbGb: {"SBB", fmtEbGb}, op.OpSbbEvGv: {"SBB", fmtEvGv},
	op.OpSbbGbEb: {"SBB", fmtGbEb}, op.OpSbbGvEv: {"SBB", fmtGvEv},
	op.OpSbbALIb: {"SBB", fmtALIb}, op.OpSbbAXIz: {"SBB", fmtEAXIz},
	op.OpAndEbGb: {"AND", fmtEbGb}, op.OpAndEvGv: {"AND", fmtEvGv},
	op.OpAndGbEb: {"AND", fmtGbEb}, op.OpAndGvEv: {"AND", fmtGvEv},
	op.OpAndALIb: {"AND", fmtALIb}, op.OpAndAXIz: {"AND", fmtEAXIz},
	op.OpSubEbGb: {"SUB", fmtEbGb}, op.OpSubEvGv: {"SUB", fmtEvGv},
	op.OpSubGbEb: {"SUB", fmtGbEb}, op.OpSubGvEv: {"SUB", fmtGvEv},
	op.OpSubALIb: {"SUB", fmtALIb}, op.OpSubAXIz: {"SUB", fmtEAXIz},
	op.OpXorEbGb: {"XOR", fmtEbGb}, op.OpXorEvGv: {"XOR", fmtEvGv},
	op.OpXorGbEb: {"XOR", fmtGbEb}, op.OpXorGvEv: {"XOR", fmtGvEv},
	op.OpXorALIb: {"XOR", fmtALIb}, op.OpXorAXIz: {"XOR", fmtEAXIz},
	op.OpCmpEbGb: {"CMP", fmtEbGb}, op.OpCmpEvGv: {"CMP", fmtEvGv},
	op.OpCmpGbEb: {"CMP", fmtGbEb}, op.OpCmpGvEv: {"CMP", fmtGvEv},
	op.OpCmpALIb: {"CMP", fmtALIb}, op.OpCmpAXIz: {"CMP", fmtEAXIz},
	op.OpTestEbGb: {"TEST", fmtEbGb}, op.OpTestEvGv: {"TEST", fmtEvGv},
	op.OpTestALIb: {"TEST", fmtALIb}, op.OpTestAXIz: {"TEST", fmtEAXIz},
	op.OpXchgEbGb: {"XCHG", fmtEbGb}, op.OpXchgEvGv: {"XCHG", fmtEvGv},
	op.OpMovEbGb: {"MOV", fmtEbGb}, op.OpMovEvGv: {"MOV", fmtEvGv},
	op.OpMovGbEb: {"MOV", fmtGbEb}, op.OpMovGvEv: {"MOV", fmtGvEv},
	op.OpMovEvSw: {"MOV", fmtEvGv}, op.OpMovSwEv: {"MOV", fmtGvEv},
	op.OpLea: {"LEA", fmtGvEv},
	op.OpPushES: {"PUSH ES", fmtNone}, op.OpPopES: {"POP ES", fmtNone},
	op.OpPushCS: {"PUSH CS", fmtNone}, op.OpPushSS: {"PUSH SS", fmtNone},
	op.OpPopSS: {"POP SS", fmtNone}, op.OpPushDS: {"PUSH DS", fmtNone},
	op.OpPopDS: {"POP DS", fmtNone},
	op.OpDAA: {"DAA", fmtNone}, op.OpDAS: {"DAS", fmtNone},
	op.OpAAA: {"AAA", fmtNone}, op.OpAAS: {"AAS", fmtNone},
	op.OpPusha: {"PUSHA", fmtNone}, op.OpPopa: {"POPA", fmtNone},
	op.OpNop: {"NOP", fmtNone}, op.OpCbw: {"CBW", fmtNone},
	op.OpCwd: {"CWD", fmtNone}, op.OpWait: {"WAIT", fmtNone},
	op.OpPushf: {"PUSHF", fmtNone}, op.OpPopf: {"POPF", fmtNone},
	op.OpSahf: {"SAHF", fmtNone}, op.OpLahf: {"LAHF", fmtNone},
	op.OpMovsb: {"MOVSB", fmtNone}, op.OpMovsz: {"MOVSD", fmtNone},
	op.OpCmpsb: {"CMPSB", fmtNone}, op.OpCmpsz: {"CMPSD", fmtNone},
	op.OpStosb: {"STOSB", fmtNone}, op.OpStosz: {"STOSD", fmtNone},
	op.OpLodsb: {"LODSB", fmtNone}, op.OpLodsz: {"LODSD", fmtNone},
	op.OpScasb: {"SCASB", fmtNone}, op.OpScasz: {"SCASD", fmtNone},
	op.OpRet: {"RET", fmtNone}, op.OpRetf: {"RETF", fmtNone},
	op.OpLeave: {"LEAVE", fmtNone}, op.OpInt3: {"INT3", fmtNone},
	op.OpInto: {"INTO", fmtNone}, op.OpIret: {"IRET", fmtNone},
	op.OpXlat: {"XLAT", fmtNone}, op.OpHlt: {"HLT", fmtNone},
	op.OpCmc: {"CMC", fmtNone}, op.OpClc: {"CLC", fmtNone},
	op.OpStc: {"STC", fmtNone}, op.OpCli: {"CLI", fmtNone},
	op.OpSti: {"STI", fmtNone}, op.OpCld: {"CLD", fmtNone},
	op.OpStd: {"STD", fmtNone},
	op.OpInALDX: {"IN AL,DX", fmtNone}, op.OpInAXDX: {"IN eAX,DX", fmtNone},
	op.OpOutDXAL: {"OUT DX,AL", fmtNone}, op.OpOutDXAX: {"OUT DX,eAX", fmtNone},
	op.OpInALIb: {"IN AL", fmtIb}, op.OpInAXIb: {"IN eAX", fmtIb},
	op.OpOutIbAL: {"OUT AL", fmtIb}, op.OpOutIbAX: {"OUT eAX", fmtIb},
	op.OpLoopnz: {"LOOPNZ", fmtJb}, op.OpLoopz: {"LOOPZ", fmtJb},
	op.OpLoop: {"LOOP", fmtJb}, op.OpJcxz: {"JCXZ", fmtJb},
	op.OpCallJz: {"CALL", fmtJz}, op.OpJmpJz: {"JMP", fmtJz},
	op.OpJmpJb: {"JMP", fmtJb},
	op.OpIntIb: {"INT", fmtIb},
	op.OpPushIb: {"PUSH", fmtIb}, op.OpPushIz: {"PUSH", fmtIz},
	op.OpImulGvEvIb: {"IMUL", fmtGvEvIb}, op.OpImulGvEvIz: {"IMUL", fmtGvEvIz},
	op.OpMovEbIb: {"MOV", fmtEbIb}, op.OpMovEvIz: {"MOV", fmtEvIz},
	op.OpBound: {"BOUND", fmtGvEv}, op.OpArpl: {"ARPL", fmtEvGv},
	op.OpInsb: {"INSB", fmtNone}, op.OpInsz: {"INSD", fmtNone},
	op.OpOutsb: {"OUTSB", fmtNone}, op.OpOutsz: {"OUTSD", fmtNone},
	op.OpLes: {"LES", fmtGvEv}, op.OpLds: {"LDS", fmtGvEv},
	op.OpAam: {"AAM", fmtIb}, op.OpAad: {"AAD", fmtIb},
}

var regGroups = map[uint16]opcode{
	op.OpIncBase:  {"INC", fmtRegOp},
	op.OpDecBase:  {"DEC", fmtRegOp},
	op.OpPushBase: {"PUSH", fmtRegOp},
	op.OpPopBase:  {"POP", fmtRegOp},
	op.OpMovBIb:   {"MOV", fmtMovRegIb},
	op.OpMovIz:    {"MOV", fmtMovRegIz},
}

var grp1Names = [8]string{"ADD", "OR", "ADC", "SBB", "AND", "SUB", "XOR", "CMP"}
var grp2Names = [8]string{"ROL", "ROR", "RCL", "RCR", "SHL", "SHR", "SAL", "SAR"}
var grp3Names = [8]string{"TEST", "TEST", "NOT", "NEG", "MUL", "IMUL", "DIV", "IDIV"}
var grp5Names = [8]string{"INC", "DEC", "CALL", "CALL FAR", "JMP", "JMP FAR", "PUSH", "?"}

var reg8 = [8]string{"AL", "CL", "DL", "BL", "AH", "CH", "DH", "BH"}
var reg32 = [8]string{"EAX", "ECX", "EDX", "EBX", "ESP", "EBP", "ESI", "EDI"}

const (
	jcc70  = uint16(op.OpJccBase)
	jccLen = 16
)

var condNames = [16]string{
	"O", "NO", "B", "AE", "E", "NE", "BE", "A",
	"S", "NS", "P", "NP", "L", "GE", "LE", "G",
}

// Disassemble formats one instruction starting at data[0], returning the
// text and the number of bytes consumed. It is a best-effort trace aid:
// operand widths are always shown as 32-bit, and it does not attempt
// prefix-driven 16-bit/64-bit resizing - adequate for a debug log, not
// for round-tripping back to machine code.
func Disassemble(data []byte) (string, int) {
	pos := 0
	for pos < len(data) && isPrefix(data[pos]) {
		pos++
	}
	if pos >= len(data) {
		return "?", pos + 1
	}
	start := pos
	b := data[pos]
	pos++

	if b == op.OpTwoByte {
		return disassemble0F(data, start)
	}
	if uint16(b) >= jcc70 && uint16(b) < jcc70+jccLen {
		return jccText("J", condNames[b-byte(jcc70)], data, start+1)
	}
	if b >= op.OpIncBase && b < op.OpIncBase+8 {
		return regText(regGroups[op.OpIncBase], b-op.OpIncBase, data, pos)
	}
	if b >= op.OpDecBase && b < op.OpDecBase+8 {
		return regText(regGroups[op.OpDecBase], b-op.OpDecBase, data, pos)
	}
	if b >= op.OpPushBase && b < op.OpPushBase+8 {
		return regText(regGroups[op.OpPushBase], b-op.OpPushBase, data, pos)
	}
	if b >= op.OpPopBase && b < op.OpPopBase+8 {
		return regText(regGroups[op.OpPopBase], b-op.OpPopBase, data, pos)
	}
	if b >= op.OpMovBIb && b < op.OpMovBIb+8 {
		return fmt.Sprintf("MOV %s,%02x", reg8[b-op.OpMovBIb], data[pos]), pos + 1
	}
	if b >= op.OpMovIz && b < op.OpMovIz+8 {
		imm := le32(data, pos)
		return fmt.Sprintf("MOV %s,%08x", reg32[b-op.OpMovIz], imm), pos + 4
	}

	switch b {
	case op.OpGrp1Eb, op.OpGrp1Ev, op.OpGrp1EbS, op.OpGrp1EvIb:
		return groupText(data, pos, grp1Names[:], true)
	case op.OpGrp2Ib8, op.OpGrp2Ib, op.OpGrp2Eb1, op.OpGrp2Ev1, op.OpGrp2EbCL, op.OpGrp2EvCL:
		return groupText(data, pos, grp2Names[:], b == op.OpGrp2Ib8 || b == op.OpGrp2Ib)
	case op.OpGrp3Eb, op.OpGrp3Ev:
		return groupText(data, pos, grp3Names[:], false)
	case op.OpGrp4, op.OpGrp5:
		return groupText(data, pos, grp5Names[:], false)
	}

	if oc, ok := opMap[uint16(b)]; ok {
		return formatOperands(oc, data, pos)
	}
	text, n := undefined(data[start:])
	return text, start + n
}

func disassemble0F(data []byte, start int) (string, int) {
	pos := start + 1
	b2 := data[pos]
	pos++
	switch {
	case b2 >= op.Op0FJccBase && b2 < op.Op0FJccBase+jccLen:
		return jccText("J", condNames[b2-op.Op0FJccBase], data, pos)
	case b2 >= op.Op0FSetBase && b2 < op.Op0FSetBase+jccLen:
		modrmLen, operands := modrmText(data, pos, false)
		return fmt.Sprintf("SET%s %s", condNames[b2-op.Op0FSetBase], operands), pos + modrmLen
	case b2 >= op.Op0FCmovBase && b2 < op.Op0FCmovBase+jccLen:
		modrmLen, operands := modrmText(data, pos, true)
		return fmt.Sprintf("CMOV%s %s", condNames[b2-op.Op0FCmovBase], operands), pos + modrmLen
	case b2 >= op.Op0FBswap && b2 < op.Op0FBswap+8:
		return fmt.Sprintf("BSWAP %s", reg32[b2-op.Op0FBswap]), pos
	}
	switch b2 {
	case op.Op0FMovzxB, op.Op0FMovzxW:
		modrmLen, operands := modrmText(data, pos, true)
		return "MOVZX " + operands, pos + modrmLen
	case op.Op0FMovsxB, op.Op0FMovsxW:
		modrmLen, operands := modrmText(data, pos, true)
		return "MOVSX " + operands, pos + modrmLen
	case op.Op0FImul:
		modrmLen, operands := modrmText(data, pos, true)
		return "IMUL " + operands, pos + modrmLen
	case op.Op0FBsf:
		modrmLen, operands := modrmText(data, pos, true)
		return "BSF " + operands, pos + modrmLen
	case op.Op0FBsr:
		modrmLen, operands := modrmText(data, pos, true)
		return "BSR " + operands, pos + modrmLen
	case op.Op0FCpuid:
		return "CPUID", pos
	case op.Op0FClts:
		return "CLTS", pos
	case op.Op0FMovRdCr:
		modrmLen, operands := modrmText(data, pos, true)
		return "MOV CRn," + operands, pos + modrmLen
	case op.Op0FMovCrRd:
		modrmLen, operands := modrmText(data, pos, true)
		return "MOV " + operands + ",CRn", pos + modrmLen
	case op.Op0FGrp7:
		modrm := data[pos]
		names := [8]string{"SGDT", "SIDT", "LGDT", "LIDT", "SMSW", "?", "LMSW", "INVLPG"}
		return names[(modrm>>3)&7], pos + 1
	}
	return fmt.Sprintf("db 0f %02x", b2), pos
}

func isPrefix(b byte) bool {
	switch b {
	case op.OpLock, op.OpRepne, op.OpRep, op.OpSegES, op.OpSegCS,
		op.OpSegSS, op.OpSegDS, op.OpSegFS, op.OpSegGS, op.OpOpSize, op.OpAddrSize:
		return true
	}
	return false // 40-4F decode as INC/DEC in 32-bit traces, not as REX
}

func regText(oc opcode, reg byte, data []byte, pos int) (string, int) {
	return fmt.Sprintf("%s %s", oc.name, reg32[reg]), pos
}

func jccText(mnemonic, cond string, data []byte, pos int) (string, int) {
	disp := int32(int8(data[pos]))
	return fmt.Sprintf("%s%s %+d", mnemonic, cond, disp), pos + 1
}

// rmOperand decodes the r/m portion of ModR/M (and any SIB/disp) alone,
// for group opcodes where the reg field is a /digit, not an operand.
func rmOperand(data []byte, pos int) (int, string) {
	modrm := data[pos]
	mod := modrm >> 6
	rm := modrm & 7
	length := 1

	if mod == 3 {
		return length, reg32[rm]
	}
	base := reg32[rm]
	if rm == 4 { // SIB byte follows
		length++
		base = "SIB"
	}
	disp := ""
	switch {
	case mod == 1:
		disp = fmt.Sprintf("%+d", int8(data[pos+length]))
		length++
	case mod == 2:
		disp = fmt.Sprintf("%+d", int32(le32(data, pos+length)))
		length += 4
	case mod == 0 && rm == 5:
		disp = fmt.Sprintf("[%08x]", le32(data, pos+length))
		length += 4
		base = ""
	}
	if base != "" {
		return length, fmt.Sprintf("[%s%s]", base, disp)
	}
	return length, disp
}

// modrmText decodes enough of ModR/M (and any SIB/disp) to describe the
// operand shape for a trace line; it assumes 32-bit addressing.
func modrmText(data []byte, pos int, regFirst bool) (int, string) {
	regField := (data[pos] >> 3) & 7
	length, rmText := rmOperand(data, pos)
	regText := reg32[regField]
	if regFirst {
		return length, fmt.Sprintf("%s,%s", regText, rmText)
	}
	return length, fmt.Sprintf("%s,%s", rmText, regText)
}

func formatOperands(oc opcode, data []byte, pos int) (string, int) {
	switch oc.kind {
	case fmtNone:
		return oc.name, pos
	case fmtEbGb, fmtEvGv:
		modrmLen, operands := modrmText(data, pos, false)
		return oc.name + " " + operands, pos + modrmLen
	case fmtGbEb, fmtGvEv:
		modrmLen, operands := modrmText(data, pos, true)
		return oc.name + " " + operands, pos + modrmLen
	case fmtALIb:
		return fmt.Sprintf("%s AL,%02x", oc.name, data[pos]), pos + 1
	case fmtEAXIz:
		return fmt.Sprintf("%s eAX,%08x", oc.name, le32(data, pos)), pos + 4
	case fmtIb:
		return fmt.Sprintf("%s %02x", oc.name, data[pos]), pos + 1
	case fmtIz:
		return fmt.Sprintf("%s %08x", oc.name, le32(data, pos)), pos + 4
	case fmtJb:
		disp := int32(int8(data[pos]))
		return fmt.Sprintf("%s %+d", oc.name, disp), pos + 1
	case fmtJz:
		disp := int32(le32(data, pos))
		return fmt.Sprintf("%s %+d", oc.name, disp), pos + 4
	case fmtGvEvIb:
		modrmLen, operands := modrmText(data, pos, true)
		pos += modrmLen
		return fmt.Sprintf("%s %s,%02x", oc.name, operands, data[pos]), pos + 1
	case fmtGvEvIz:
		modrmLen, operands := modrmText(data, pos, true)
		pos += modrmLen
		return fmt.Sprintf("%s %s,%08x", oc.name, operands, le32(data, pos)), pos + 4
	case fmtEbIb:
		// C6 /0: reg field is a /digit (always 0), not an operand.
		rmLen, rm := rmOperand(data, pos)
		pos += rmLen
		return fmt.Sprintf("%s %s,%02x", oc.name, rm, data[pos]), pos + 1
	case fmtEvIz:
		// C7 /0: reg field is a /digit (always 0), not an operand.
		rmLen, rm := rmOperand(data, pos)
		pos += rmLen
		return fmt.Sprintf("%s %s,%08x", oc.name, rm, le32(data, pos)), pos + 4
	}
	return oc.name, pos
}

// groupText decodes one Group1/2/3/4/5 instruction: ModR/M selects the
// mnemonic via the /digit (reg field), mirroring the aluBinary/aluShift
// digit dispatch in emu/cpu.
func groupText(data []byte, pos int, names []string, hasImm bool) (string, int) {
	digit := (data[pos] >> 3) & 7
	rmLen, rm := rmOperand(data, pos)
	pos += rmLen
	name := names[digit]
	if hasImm {
		return fmt.Sprintf("%s %s,%02x", name, rm, data[pos]), pos + 1
	}
	return fmt.Sprintf("%s %s", name, rm), pos
}

func le32(data []byte, pos int) uint32 {
	if pos+4 > len(data) {
		return 0
	}
	return uint32(data[pos]) | uint32(data[pos+1])<<8 | uint32(data[pos+2])<<16 | uint32(data[pos+3])<<24
}

// undefined mirrors the teacher's raw-byte fallback for an opcode this
// disassembler does not classify: emit the bytes rather than fail.
func undefined(data []byte) (string, int) {
	var b strings.Builder
	n := len(data)
	if n > 4 {
		n = 4
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%02x ", data[i])
	}
	return strings.TrimSpace(b.String()), n
}
