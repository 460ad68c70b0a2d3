/*
   x86emu - I/O port dispatch table.

   Copyright 2024, Richard Cornwell

   Permission is hereby granted, free of charge, to any person obtaining a copy
   of this software and associated documentation files (the "Software"), to deal
   in the Software without restriction, including without limitation the rights
   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
   copies of the Software, and to permit persons to whom the Software is
   furnished to do so, subject to the following conditions:

   The above copyright notice and this permission notice shall be included in
   all copies or substantial portions of the Software.

   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
   SOFTWARE.

*/

// Package ioport dispatches IN/OUT instructions to registered port
// devices, the same role emu/sys_channel plays for the teacher's channel
// command words: a table indexed by an external address, with a defined
// behavior for an address nothing has registered.
package ioport

import D "github.com/rcornwell/x86emu/emu/device"

var portTab = map[uint16]D.PortDevice{}

// Register installs dev as the handler for port. A later call for the
// same port replaces the previous handler.
func Register(port uint16, dev D.PortDevice) {
	portTab[port] = dev
}

// Unregister removes any handler installed for port.
func Unregister(port uint16) {
	delete(portTab, port)
}

// In dispatches an IN instruction. Unknown ports return all-ones, the
// conventional "nothing answered the bus" value.
func In(port uint16, width int) uint32 {
	if dev, ok := portTab[port]; ok {
		return dev.ReadPort(port, width)
	}
	return allOnes(width)
}

// Out dispatches an OUT instruction. Unknown ports accept the write
// silently.
func Out(port uint16, width int, value uint32) {
	if dev, ok := portTab[port]; ok {
		dev.WritePort(port, width, value)
	}
}

func allOnes(width int) uint32 {
	switch width {
	case 1:
		return 0xff
	case 2:
		return 0xffff
	default:
		return 0xffffffff
	}
}
