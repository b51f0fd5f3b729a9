// Package cursor provides a bounds-checked reader over a fixed byte buffer.
// Every decoder in drivers/ goes through it; a read wider than the remaining
// buffer fails with ErrOutOfBounds rather than truncating.
package cursor

import "errors"

// ErrOutOfBounds is returned when a read would pass the end of the buffer.
var ErrOutOfBounds = errors.New("cursor: out of bounds")

// Order selects multi-byte interpretation.
type Order uint8

const (
	BigEndian Order = iota
	LittleEndian
)

// Cursor wraps a buffer with a read position. The zero value is empty.
type Cursor struct {
	buf []byte
	pos int
}

func New(buf []byte) *Cursor { return &Cursor{buf: buf} }

// Remaining reports the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.buf) - c.pos }

// Pos reports the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Skip advances past n bytes without decoding them.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.Remaining() < n {
		return ErrOutOfBounds
	}
	c.pos += n
	return nil
}

// Bytes returns the next n bytes as a subslice of the underlying buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if n < 0 || c.Remaining() < n {
		return nil, ErrOutOfBounds
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *Cursor) U8() (uint8, error) {
	if c.Remaining() < 1 {
		return 0, ErrOutOfBounds
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *Cursor) U16(o Order) (uint16, error) {
	b, err := c.Bytes(2)
	if err != nil {
		return 0, err
	}
	if o == BigEndian {
		return uint16(b[0])<<8 | uint16(b[1]), nil
	}
	return uint16(b[1])<<8 | uint16(b[0]), nil
}

func (c *Cursor) U24(o Order) (uint32, error) {
	b, err := c.Bytes(3)
	if err != nil {
		return 0, err
	}
	if o == BigEndian {
		return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]), nil
	}
	return uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0]), nil
}

// I16 reinterprets the next two bytes as two's-complement.
func (c *Cursor) I16(o Order) (int16, error) {
	v, err := c.U16(o)
	if err != nil {
		return 0, err
	}
	return int16(v), nil
}
