/*
   x86emu - Low level linear (physical) memory.

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

// Package memory implements the flat byte-addressed physical address
// space. Unlike a fixed array, pages are allocated lazily on first write;
// reads of a page never written return zero bytes. A small table of MMIO
// regions lets select address ranges (framebuffer, LAPIC) be dispatched to
// a handler instead of backing store.
package memory

const pageSize = 4096

type page = [pageSize]byte

type mem struct {
	pages map[uint32]*page
	mmio  []mmioRegion
	size  uint64
}

// MMIOHandler services reads and writes to one dispatched address range.
type MMIOHandler interface {
	ReadByte(addr uint64) byte
	WriteByte(addr uint64, value byte)
}

type mmioRegion struct {
	base    uint64
	limit   uint64 // exclusive
	handler MMIOHandler
}

var memory mem

// SetSize sets the addressable limit of memory in bytes. It does not
// allocate backing store; pages are still allocated lazily.
func SetSize(size uint64) {
	memory.size = size
}

// GetSize returns the addressable limit of memory in bytes.
func GetSize() uint64 {
	return memory.size
}

// RegisterMMIO dispatches addresses in [base, base+size) to handler instead
// of the page map.
func RegisterMMIO(base, size uint64, handler MMIOHandler) {
	memory.mmio = append(memory.mmio, mmioRegion{base: base, limit: base + size, handler: handler})
}

func findMMIO(addr uint64) MMIOHandler {
	for i := range memory.mmio {
		r := &memory.mmio[i]
		if addr >= r.base && addr < r.limit {
			return r.handler
		}
	}
	return nil
}

func (m *mem) pageFor(addr uint64, alloc bool) *page {
	idx := uint32(addr / pageSize)
	if m.pages == nil {
		if !alloc {
			return nil
		}
		m.pages = make(map[uint32]*page)
	}
	p, ok := m.pages[idx]
	if !ok {
		if !alloc {
			return nil
		}
		p = &page{}
		m.pages[idx] = p
	}
	return p
}

// ReadByte returns the byte at addr, or zero if the backing page was never
// written.
func ReadByte(addr uint64) byte {
	if h := findMMIO(addr); h != nil {
		return h.ReadByte(addr)
	}
	p := memory.pageFor(addr, false)
	if p == nil {
		return 0
	}
	return p[addr%pageSize]
}

// WriteByte stores a byte at addr, allocating backing store if needed.
func WriteByte(addr uint64, value byte) {
	if h := findMMIO(addr); h != nil {
		h.WriteByte(addr, value)
		return
	}
	p := memory.pageFor(addr, true)
	p[addr%pageSize] = value
}

// ReadBytes copies len(buf) bytes starting at addr into buf.
func ReadBytes(addr uint64, buf []byte) {
	for i := range buf {
		buf[i] = ReadByte(addr + uint64(i))
	}
}

// WriteBytes copies buf into memory starting at addr.
func WriteBytes(addr uint64, buf []byte) {
	for i, b := range buf {
		WriteByte(addr+uint64(i), b)
	}
}

// ReadWord reads a little-endian 16 bit value.
func ReadWord(addr uint64) uint16 {
	return uint16(ReadByte(addr)) | uint16(ReadByte(addr+1))<<8
}

// WriteWord writes a little-endian 16 bit value.
func WriteWord(addr uint64, value uint16) {
	WriteByte(addr, byte(value))
	WriteByte(addr+1, byte(value>>8))
}

// ReadDword reads a little-endian 32 bit value.
func ReadDword(addr uint64) uint32 {
	return uint32(ReadByte(addr)) |
		uint32(ReadByte(addr+1))<<8 |
		uint32(ReadByte(addr+2))<<16 |
		uint32(ReadByte(addr+3))<<24
}

// WriteDword writes a little-endian 32 bit value.
func WriteDword(addr uint64, value uint32) {
	WriteByte(addr, byte(value))
	WriteByte(addr+1, byte(value>>8))
	WriteByte(addr+2, byte(value>>16))
	WriteByte(addr+3, byte(value>>24))
}

// ReadQword reads a little-endian 64 bit value.
func ReadQword(addr uint64) uint64 {
	return uint64(ReadDword(addr)) | uint64(ReadDword(addr+4))<<32
}

// WriteQword writes a little-endian 64 bit value.
func WriteQword(addr uint64, value uint64) {
	WriteDword(addr, uint32(value))
	WriteDword(addr+4, uint32(value>>32))
}

// Reset discards all backing store, used between test cases.
func Reset() {
	memory.pages = nil
}
