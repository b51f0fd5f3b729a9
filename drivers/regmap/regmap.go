// Package regmap decodes raw register reads through declarative layout
// descriptors. Each driver states its register block once as an ordered
// field list instead of ad-hoc indexing; one generic decoder serves every
// I2C sensor in drivers/.
package regmap

import (
	"errors"

	"sensorcode-go/x/cursor"
)

// ErrShortBuffer means the register read returned fewer bytes than the
// layout requires. That is a wrong layout for the connected device or a
// corrupted transaction; retrying with the same layout cannot succeed.
var ErrShortBuffer = errors.New("regmap: buffer shorter than layout")

// Field describes one named value inside a register block.
type Field struct {
	Name   string
	Offset int          // byte offset from block start
	Width  int          // bytes, 1..3
	Order  cursor.Order // multi-byte interpretation
	Signed bool         // two's-complement reinterpretation
	Rsh    uint         // right shift after assembly (sub-byte-aligned codes)
}

// Layout is an ordered register block description.
type Layout []Field

// Size returns the minimum buffer length the layout requires.
func (l Layout) Size() int {
	n := 0
	for _, f := range l {
		if end := f.Offset + f.Width; end > n {
			n = end
		}
	}
	return n
}

// Sample maps field names to raw integer codes. Transient: built per read,
// consumed immediately by compensation.
type Sample map[string]int64

// Decode extracts every field of the layout from buf.
func (l Layout) Decode(buf []byte) (Sample, error) {
	if len(buf) < l.Size() {
		return nil, ErrShortBuffer
	}
	out := make(Sample, len(l))
	for _, f := range l {
		c := cursor.New(buf[f.Offset:])
		var v int64
		switch f.Width {
		case 1:
			u, err := c.U8()
			if err != nil {
				return nil, ErrShortBuffer
			}
			if f.Signed {
				v = int64(int8(u))
			} else {
				v = int64(u)
			}
		case 2:
			if f.Signed {
				i, err := c.I16(f.Order)
				if err != nil {
					return nil, ErrShortBuffer
				}
				v = int64(i)
			} else {
				u, err := c.U16(f.Order)
				if err != nil {
					return nil, ErrShortBuffer
				}
				v = int64(u)
			}
		case 3:
			u, err := c.U24(f.Order)
			if err != nil {
				return nil, ErrShortBuffer
			}
			v = int64(u)
		default:
			return nil, ErrShortBuffer
		}
		if f.Rsh > 0 {
			v >>= f.Rsh
		}
		out[f.Name] = v
	}
	return out, nil
}
