/*
   x86emu - External collaborator interfaces

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

// Package device defines the narrow interfaces the instruction execution
// engine uses to reach external collaborators: port I/O devices and the
// BIOS/DOS interrupt service layer. Neither the device bodies nor the
// BIOS/DOS handlers live here; this package only describes the shape the
// core expects of them.
package device

// PortDevice handles port mapped I/O for one or more port addresses.
// Width is in bytes (1, 2 or 4).
type PortDevice interface {
	ReadPort(port uint16, width int) uint32
	WritePort(port uint16, width int, value uint32)
}

// NoDev marks a config-file option that carries no device address,
// grounded on the teacher's device package constant of the same name.
const NoDev uint16 = 0xffff

// Inspection targets for debuggers and BIOS services, grounded on the
// Register/FPRegister/CtlRegister/PSWRegister/Memory inspection constants
// of the teacher's device package.
const (
	GPRegister = 1 + iota
	SegRegister
	CtlRegister
	MSRegister
	EFlagsRegister
	Descriptor
	Linear
)
