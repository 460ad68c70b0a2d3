package ioport

import (
	"testing"

	D "github.com/rcornwell/x86emu/emu/device"
)

func TestUnknownPortDefaults(t *testing.T) {
	portTab = map[uint16]D.PortDevice{}
	if v := In(0x3FF, 1); v != 0xff {
		t.Errorf("got %#x, want 0xff", v)
	}
	if v := In(0x3FF, 2); v != 0xffff {
		t.Errorf("got %#x, want 0xffff", v)
	}
	// Silent accept: no panic, no state anywhere to check.
	Out(0x3FF, 1, 0x42)
}

func TestRegisterDispatch(t *testing.T) {
	pit := NewPIT()
	Register(0x40, pit)
	defer Unregister(0x40)

	pit.counter[0] = 0x1234
	lo := In(0x40, 1)
	hi := In(0x40, 1)
	if lo != 0x34 || hi != 0x12 {
		t.Errorf("got lo=%#x hi=%#x, want 34/12", lo, hi)
	}
}

func TestPICPendingRespectsMask(t *testing.T) {
	pic := NewPIC()
	pic.mask = 0xff &^ (1 << 1) // unmask IRQ1
	pic.Raise(0)
	pic.Raise(1)

	v, ok := pic.Pending()
	if !ok || v != pic.base+1 {
		t.Errorf("got vector=%#x ok=%v, want base+1", v, ok)
	}
	// IRQ1 now in-service; the pending IRQ0 request stays masked.
	if _, ok := pic.Pending(); ok {
		t.Errorf("expected no pending vector while IRQ0 masked and IRQ1 in service")
	}
}
