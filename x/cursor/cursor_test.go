package cursor

import "testing"

func TestReadsAdvance(t *testing.T) {
	c := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0xFF, 0xFE})

	if v, err := c.U8(); err != nil || v != 0x01 {
		t.Fatalf("U8 = %#x, %v", v, err)
	}
	if v, err := c.U16(BigEndian); err != nil || v != 0x0203 {
		t.Fatalf("U16 BE = %#x, %v", v, err)
	}
	if v, err := c.U16(LittleEndian); err != nil || v != 0x0504 {
		t.Fatalf("U16 LE = %#x, %v", v, err)
	}
	if v, err := c.I16(BigEndian); err != nil || v != -2 {
		t.Fatalf("I16 = %d, %v", v, err)
	}
	if c.Remaining() != 0 {
		t.Fatalf("remaining = %d", c.Remaining())
	}
}

func TestU24(t *testing.T) {
	c := New([]byte{0xAA, 0xBB, 0xCC})
	v, err := c.U24(BigEndian)
	if err != nil || v != 0xAABBCC {
		t.Fatalf("U24 BE = %#x, %v", v, err)
	}
	c = New([]byte{0xAA, 0xBB, 0xCC})
	v, err = c.U24(LittleEndian)
	if err != nil || v != 0xCCBBAA {
		t.Fatalf("U24 LE = %#x, %v", v, err)
	}
}

// A read wider than the remaining bytes must fail without consuming anything.
func TestOutOfBounds(t *testing.T) {
	cases := []struct {
		name string
		buf  []byte
		read func(*Cursor) error
	}{
		{"u8 empty", nil, func(c *Cursor) error { _, err := c.U8(); return err }},
		{"u16 short", []byte{1}, func(c *Cursor) error { _, err := c.U16(BigEndian); return err }},
		{"u24 short", []byte{1, 2}, func(c *Cursor) error { _, err := c.U24(LittleEndian); return err }},
		{"i16 short", []byte{1}, func(c *Cursor) error { _, err := c.I16(BigEndian); return err }},
		{"skip past end", []byte{1, 2}, func(c *Cursor) error { return c.Skip(3) }},
		{"negative skip", []byte{1, 2}, func(c *Cursor) error { return c.Skip(-1) }},
	}
	for _, tc := range cases {
		c := New(tc.buf)
		before := c.Pos()
		if err := tc.read(c); err != ErrOutOfBounds {
			t.Errorf("%s: err = %v, want ErrOutOfBounds", tc.name, err)
		}
		if c.Pos() != before {
			t.Errorf("%s: position moved on failed read", tc.name)
		}
	}
}

// Boundary: a read of exactly the remaining width succeeds, one more fails.
func TestExactBoundary(t *testing.T) {
	c := New([]byte{0x12, 0x34})
	if v, err := c.U16(BigEndian); err != nil || v != 0x1234 {
		t.Fatalf("U16 = %#x, %v", v, err)
	}
	if _, err := c.U8(); err != ErrOutOfBounds {
		t.Fatalf("read past end: err = %v", err)
	}
}
