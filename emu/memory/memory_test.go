package memory

import "testing"

func TestReadUnwrittenIsZero(t *testing.T) {
	Reset()
	if v := ReadByte(0x1234); v != 0 {
		t.Errorf("expected 0, got %#x", v)
	}
	if v := ReadDword(0x10000); v != 0 {
		t.Errorf("expected 0, got %#x", v)
	}
}

func TestWriteReadByte(t *testing.T) {
	Reset()
	WriteByte(0x100, 0xAB)
	if v := ReadByte(0x100); v != 0xAB {
		t.Errorf("got %#x, want 0xAB", v)
	}
	// neighboring bytes stay zero
	if v := ReadByte(0x101); v != 0 {
		t.Errorf("got %#x, want 0", v)
	}
}

func TestLittleEndianWord(t *testing.T) {
	Reset()
	WriteWord(0x200, 0x1234)
	if ReadByte(0x200) != 0x34 || ReadByte(0x201) != 0x12 {
		t.Fatalf("word not stored little-endian")
	}
	if v := ReadWord(0x200); v != 0x1234 {
		t.Errorf("got %#x, want 0x1234", v)
	}
}

func TestLittleEndianDwordQword(t *testing.T) {
	Reset()
	WriteDword(0x300, 0xdeadbeef)
	if v := ReadDword(0x300); v != 0xdeadbeef {
		t.Errorf("got %#x, want 0xdeadbeef", v)
	}
	WriteQword(0x400, 0x1122334455667788)
	if v := ReadQword(0x400); v != 0x1122334455667788 {
		t.Errorf("got %#x, want 0x1122334455667788", v)
	}
}

func TestCrossPageAccess(t *testing.T) {
	Reset()
	// Straddle the 4KiB page boundary.
	addr := uint64(pageSize - 2)
	WriteDword(addr, 0xcafef00d)
	if v := ReadDword(addr); v != 0xcafef00d {
		t.Errorf("got %#x, want 0xcafef00d", v)
	}
}

type stubMMIO struct {
	last uint64
	val  byte
}

func (s *stubMMIO) ReadByte(addr uint64) byte {
	s.last = addr
	return s.val
}

func (s *stubMMIO) WriteByte(addr uint64, value byte) {
	s.last = addr
	s.val = value
}

func TestMMIODispatch(t *testing.T) {
	Reset()
	memory.mmio = nil
	stub := &stubMMIO{val: 0x42}
	RegisterMMIO(0xA0000, 0x10000, stub)

	if v := ReadByte(0xA0010); v != 0x42 {
		t.Errorf("got %#x, want 0x42", v)
	}
	WriteByte(0xA0020, 0x99)
	if stub.val != 0x99 || stub.last != 0xA0020 {
		t.Errorf("MMIO write not dispatched: %+v", stub)
	}
	// Outside the region falls back to regular backing store.
	WriteByte(0xB0000, 0x7)
	if v := ReadByte(0xB0000); v != 0x7 {
		t.Errorf("got %#x, want 0x7", v)
	}
}
