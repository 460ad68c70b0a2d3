/*
   x86emu - Stub legacy port devices.

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

package ioport

import "time"

// These five devices are the minimal collaborators named in spec §6: the
// PIT, PIC, 8042 keyboard controller, a serial line, and the CMOS RTC/NVRAM.
// Real device behavior (video, disk, keyboard scan codes) is explicitly an
// external concern; these stubs give the core something to wire the port
// table to and enough state to satisfy boot-time probes.

// PIT models the three-channel 8253/8254 interval timer closely enough for
// probe/reload sequences: a command port and three countdown counters.
type PIT struct {
	counter [3]uint16
	latch   [3]uint16
	latched [3]bool
	hi      [3]bool
}

func NewPIT() *PIT { return &PIT{} }

func (p *PIT) ReadPort(port uint16, _ int) uint32 {
	ch := port - 0x40
	if ch > 2 {
		return 0xff
	}
	val := p.counter[ch]
	if p.latched[ch] {
		val = p.latch[ch]
	}
	if p.hi[ch] {
		p.hi[ch] = false
		p.latched[ch] = false
		return uint32(val >> 8)
	}
	p.hi[ch] = true
	return uint32(val & 0xff)
}

func (p *PIT) WritePort(port uint16, _ int, value uint32) {
	switch {
	case port == 0x43:
		ch := (value >> 6) & 0x3
		if ch <= 2 && (value&0x30) == 0 {
			p.latch[ch] = p.counter[ch]
			p.latched[ch] = true
		}
	case port-0x40 <= 2:
		ch := port - 0x40
		p.counter[ch] = uint16(value)
	}
}

// Tick decrements channel 0, the system timer tick PC BIOS polls via
// IRQ0; the core's between-instruction device poll drives this.
func (p *PIT) Tick() {
	if p.counter[0] > 0 {
		p.counter[0]--
	}
}

// PIC models one 8259A: an interrupt mask register and an in-service
// register, enough for the core's "pending unmasked IRQ" check in §5.
type PIC struct {
	mask    uint8
	irr     uint8 // interrupt request register
	isr     uint8 // in-service register
	base    uint8 // vector base programmed via ICW2
	initSeq int
}

func NewPIC() *PIC { return &PIC{mask: 0xff} }

func (p *PIC) ReadPort(port uint16, _ int) uint32 {
	if port == 0x21 || port == 0xA1 {
		return uint32(p.mask)
	}
	return uint32(p.irr)
}

func (p *PIC) WritePort(port uint16, _ int, value uint32) {
	switch port {
	case 0x20, 0xA0:
		if value&0x10 != 0 { // ICW1
			p.initSeq = 1
			return
		}
		if value == 0x20 { // non-specific EOI
			p.isr = 0
		}
	case 0x21, 0xA1:
		switch p.initSeq {
		case 1:
			p.base = uint8(value)
			p.initSeq = 2
		case 2:
			p.initSeq = 3
		case 3:
			p.initSeq = 0
		default:
			p.mask = uint8(value)
		}
	}
}

// Raise sets a request bit; Pending reports the lowest unmasked,
// highest-priority vector ready for delivery, or false if none.
func (p *PIC) Raise(irq uint8) {
	p.irr |= 1 << irq
}

func (p *PIC) Pending() (vector uint8, ok bool) {
	ready := p.irr &^ p.mask &^ p.isr
	if ready == 0 {
		return 0, false
	}
	for i := 0; i < 8; i++ {
		if ready&(1<<i) != 0 {
			p.isr |= 1 << i
			p.irr &^= 1 << i
			return p.base + uint8(i), true
		}
	}
	return 0, false
}

// KBC models the 8042 keyboard controller status/data pair: always
// reports an empty input buffer so POST probes do not spin forever.
type KBC struct {
	queue []byte
}

func NewKBC() *KBC { return &KBC{} }

func (k *KBC) ReadPort(port uint16, _ int) uint32 {
	switch port {
	case 0x64:
		if len(k.queue) > 0 {
			return 0x01 // output buffer full
		}
		return 0x00
	case 0x60:
		if len(k.queue) == 0 {
			return 0
		}
		b := k.queue[0]
		k.queue = k.queue[1:]
		return uint32(b)
	}
	return 0xff
}

func (k *KBC) WritePort(_ uint16, _ int, _ uint32) {}

// Enqueue injects a scan code for later IN AL,60h reads.
func (k *KBC) Enqueue(b byte) { k.queue = append(k.queue, b) }

// Serial models one 16450/16550 UART's line-status register as
// permanently transmit-ready and receive-empty.
type Serial struct {
	base uint16
	rx   []byte
}

func NewSerial(base uint16) *Serial { return &Serial{base: base} }

func (s *Serial) ReadPort(port uint16, _ int) uint32 {
	switch port - s.base {
	case 0: // RBR
		if len(s.rx) == 0 {
			return 0
		}
		b := s.rx[0]
		s.rx = s.rx[1:]
		return uint32(b)
	case 5: // LSR: THRE | DR if data waiting
		status := uint32(0x60)
		if len(s.rx) > 0 {
			status |= 0x01
		}
		return status
	}
	return 0
}

func (s *Serial) WritePort(_ uint16, _ int, _ uint32) {}

// CMOS models the MC146818 RTC/NVRAM register-select and data pair.
type CMOS struct {
	reg  uint8
	ram  [128]byte
	time time.Time
}

func NewCMOS(now time.Time) *CMOS { return &CMOS{time: now} }

func (c *CMOS) ReadPort(port uint16, _ int) uint32 {
	if port == 0x71 {
		return uint32(c.bcdField())
	}
	return 0
}

func (c *CMOS) WritePort(port uint16, _ int, value uint32) {
	if port == 0x70 {
		c.reg = uint8(value) & 0x7f
	}
}

func (c *CMOS) bcdField() byte {
	toBCD := func(v int) byte { return byte((v/10)<<4 | v%10) }
	switch c.reg {
	case 0x00:
		return toBCD(c.time.Second())
	case 0x02:
		return toBCD(c.time.Minute())
	case 0x04:
		return toBCD(c.time.Hour())
	case 0x06:
		return toBCD(int(c.time.Weekday()) + 1)
	case 0x07:
		return toBCD(c.time.Day())
	case 0x08:
		return toBCD(int(c.time.Month()))
	case 0x09:
		return toBCD(c.time.Year() % 100)
	default:
		if int(c.reg) < len(c.ram) {
			return c.ram[c.reg]
		}
		return 0
	}
}
