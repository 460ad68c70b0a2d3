/*
   x86emu - CPU state, flag bits, and fault vectors.

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

// Package cpu interprets the x86 instruction set: real-mode 16-bit,
// protected-mode 16/32-bit, and a partial IA-32e 64-bit mode, sufficient
// to boot and run DOS-era code, ISOLINUX, and small kernels.
package cpu

// RFLAGS bit positions.
const (
	flagCF = 1 << 0
	flagR1 = 1 << 1 // always set
	flagPF = 1 << 2
	flagAF = 1 << 4
	flagZF = 1 << 6
	flagSF = 1 << 7
	flagTF = 1 << 8
	flagIF = 1 << 9
	flagDF = 1 << 10
	flagOF = 1 << 11
	flagIOPLShift = 12
	flagIOPLMask  = 3 << flagIOPLShift
	flagNT = 1 << 14
	flagRF = 1 << 16
	flagVM = 1 << 17
)

// Mode the CPU is currently executing in.
type cpuMode int

const (
	modeReal cpuMode = iota
	modeProtected16
	modeProtected32
	modeLong
)

// CR0 bits of interest.
const (
	cr0PE = 1 << 0
	cr0PG = 1 << 31
)

// CR4 bits of interest.
const (
	cr4PAE = 1 << 5
	cr4PSE = 1 << 4
)

// Fault vectors, per §7.
const (
	vecDE = 0  // divide error
	vecDB = 1  // debug
	vecNMI = 2
	vecBP = 3
	vecOF = 4
	vecBR = 5
	vecUD = 6  // invalid opcode
	vecNM = 7  // device not available
	vecDF = 8  // double fault
	vecTS = 10 // invalid TSS
	vecNP = 11 // segment not present
	vecSS = 12 // stack-segment fault
	vecGP = 13 // general protection
	vecPF = 14 // page fault
)

// maxReentry bounds nested interrupt delivery; exceeding it aborts the
// current delivery without attempting double-fault semantics.
const maxReentry = 8

// Fault is the tagged error value threaded up through operand reads,
// writes, and address translation so the fetch loop can re-enter the
// interrupt dispatcher at the right vector, mirroring the teacher's
// two-result (value, irc uint16) convention generalized from a single
// code to a vector plus optional architectural error code.
type Fault struct {
	Vector uint8
	Error  *uint32
}

func fault(vector uint8) *Fault { return &Fault{Vector: vector} }

func faultCode(vector uint8, code uint32) *Fault {
	return &Fault{Vector: vector, Error: &code}
}

// haltAbort is the distinguished abort error of §7, raised for a
// CALL/JMP to linear 0, for a real-mode interrupt whose IVT entry is
// zero, and for exceeding the nested-interrupt reentry bound. It is
// reported separately from the Fault channel because it bypasses the
// IDT rather than vectoring through it.
type haltAbort struct {
	at  uint64
	why string
}

func (h *haltAbort) Error() string { return h.why }

// segReg is one of CS/DS/ES/FS/GS/SS: selector plus its hidden
// descriptor cache, reloaded only on selector write or mode change.
type segReg struct {
	selector uint16
	base     uint64
	limit    uint32
	access   uint8
	flags    uint8 // bit0 present, bit1 executable, bit2 default-size-32, bit3 long
}

const (
	segPresent = 1 << 0
	segExec    = 1 << 1
	segDef32   = 1 << 2
	segLong    = 1 << 3
)

const (
	segES = iota
	segCS
	segSS
	segDS
	segFS
	segGS
)

// descTable holds a GDTR/IDTR-style {base, limit} pair.
type descTable struct {
	base  uint64
	limit uint32
}

// decodeCtx is the prefix bag built by the decoder, mirroring the
// contract of §4.1: persists only for the one instruction being decoded.
type decodeCtx struct {
	lock        bool
	repKind     repKind
	segOverride int // -1 for none, else one of segES..segGS
	opSize      int // 16, 32, or 64 - effective operand size
	addrSize    int // 16, 32, or 64 - effective address size
	rexPresent  bool
	rexW, rexR, rexX, rexB bool

	// decode results
	start    uint64 // linear address of the first byte of this instruction
	opcode   uint16 // primary opcode, or 0x0F00|byte2 for two-byte opcodes
	modrm    uint8
	haveModRM bool
	regField uint8 // reg field, extended by REX.R
	rm       uint8 // r/m field, extended by REX.B, or group index
	mod      uint8
	eaValid  bool
	ea       uint64 // computed effective linear address, memory operand
	eaIsReg  bool   // r/m resolved to a register, not memory
	immValid bool
	imm      uint64
}

type repKind int

const (
	repNone repKind = iota
	repZ            // REP / REPE
	repNZ           // REPNE
)

// opHandler executes one decoded instruction and returns a fault, if any.
type opHandler func(cpu *CPU, ctx *decodeCtx) *Fault

// CPU holds the full architectural state of one processor, the x86
// analogue of the teacher's package-level cpuState in emu/cpu/cpu.go,
// but exported and instance-based so multiple CPUs (or test fixtures)
// can coexist.
type CPU struct {
	regs   [16]uint64 // RAX, RCX, RDX, RBX, RSP, RBP, RSI, RDI, R8-R15
	seg    [6]segReg
	rflags uint64
	rip    uint64

	cr    [5]uint64 // CR0-CR4
	efer  uint64
	msr   map[uint32]uint64

	gdtr, idtr descTable
	ldtr, tr   segReg

	cpl int

	mode cpuMode

	halted bool
	reentry int

	// External collaborators, injected rather than imported, per §6.
	bios map[uint8]BIOSHandler
}

// GPR index constants, named the way the retroenv-retrogolib reference
// names its RegisterParam values (RegAL, RegCL, ...), generalized here
// to the 16-slot long-mode register file.
const (
	regRAX = iota
	regRCX
	regRDX
	regRBX
	regRSP
	regRBP
	regRSI
	regRDI
	regR8
	regR9
	regR10
	regR11
	regR12
	regR13
	regR14
	regR15
)
