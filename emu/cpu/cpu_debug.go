/*
   x86emu - Debug trace options for the instruction engine.

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

import (
	"errors"

	"github.com/rcornwell/x86emu/util/debug"
)

const (
	// Debug options.
	debugTrace = 1 << iota
	debugFault
	debugPage
	debugInt
)

var debugOption = map[string]int{
	"TRACE": debugTrace,
	"FAULT": debugFault,
	"PAGE":  debugPage,
	"INT":   debugInt,
}

var debugMsk int

// Debug enables one CPU trace option by name.
func Debug(opt string) error {
	flag, ok := debugOption[opt]
	if !ok {
		return errors.New("cpu debug option invalid: " + opt)
	}
	debugMsk |= flag
	return nil
}

func (cpu *CPU) traceFetch(ctx *decodeCtx) {
	debug.Debugf("CPU", debugMsk, debugTrace, "fetch %04x op=%04x", ctx.start, ctx.opcode)
}

func (cpu *CPU) traceFault(f *Fault) {
	debug.Debugf("CPU", debugMsk, debugFault, "fault vector=%02x rip=%08x", f.Vector, cpu.rip)
}

func (cpu *CPU) traceInt(vector uint8) {
	debug.Debugf("CPU", debugMsk, debugInt, "interrupt vector=%02x rip=%08x", vector, cpu.rip)
}
