// Package frame turns unbounded serial byte streams into whole, verified
// frames. A Layout describes one device family's framing declaratively
// (header magic, length rule, optional tail magic, optional checksum rule);
// Sync runs the synchronization state machine over arbitrarily chunked input
// and only ever emits frames whose checks all passed. Bytes before a header
// match are link noise and are dropped silently (counted, not surfaced).
package frame

import (
	"bytes"
	"errors"
	"time"
)

// ErrTimeout is returned by Collect when no complete frame arrived in time.
var ErrTimeout = errors.New("frame: timeout")

// Port is the serial transport below the synchronizer. ReadAvailable returns
// 0..len(p) bytes and never blocks past the supplied timeout; a timeout with
// no data is (0, nil).
type Port interface {
	ReadAvailable(p []byte, timeout time.Duration) (int, error)
	Write(p []byte) (int, error)
}

// Layout describes one device family's framing.
type Layout struct {
	Header []byte // fixed magic at frame start; at least one byte

	// Explicit-length formats: total frame length = field value + LenBias.
	// Ignored when FixedLen > 0.
	LenOff   int  // offset of the length field from frame start
	LenWidth int  // 1 or 2
	LenLE    bool // 2-byte field order
	LenBias  int

	FixedLen int // total frame length for fixed-length formats

	Tail []byte // optional trailing magic

	// Optional checksum. The checksum byte sits immediately before the tail
	// (or last when there is no tail) and covers [CkStart : checksum byte).
	Checksum ChecksumFunc
	CkStart  int

	MaxLen int // bound on total length; defaults to 512
}

// minLen is the smallest total length the layout can describe.
func (l Layout) minLen() int {
	n := len(l.Header) + len(l.Tail)
	if l.Checksum != nil {
		n++
	}
	if l.FixedLen == 0 && l.LenOff+l.LenWidth > n {
		n = l.LenOff + l.LenWidth
	}
	return n
}

// Frame is a complete, verified byte sequence. Raw holds the whole frame
// including header and tail; it is a private copy, safe to retain.
type Frame struct {
	Raw []byte
}

// Payload strips the layout's header, tail and checksum byte from a frame.
func (l Layout) Payload(f Frame) []byte {
	end := len(f.Raw) - len(l.Tail)
	if l.Checksum != nil {
		end--
	}
	if end < len(l.Header) {
		return nil
	}
	return f.Raw[len(l.Header):end]
}

// Stats counts synchronizer activity. BadFrames indicates link noise or
// wiring faults when it climbs; callers surface it in their link state.
type Stats struct {
	Frames    uint32 // complete frames emitted
	BadFrames uint32 // candidates dropped on checksum/tail/length failure
	Noise     uint64 // bytes discarded while seeking a header
}

type syncState uint8

const (
	seekHeader syncState = iota
	readLength
	readPayload
)

// Sync accumulates stream chunks and emits complete frames. It is a push
// parser: Feed as bytes arrive, then drain with Next. Not safe for
// concurrent use; one Sync per port, like one Transport per device.
type Sync struct {
	l   Layout
	buf []byte
	out []Frame

	Stats Stats
}

func NewSync(l Layout) *Sync {
	if len(l.Header) == 0 {
		panic("frame: layout without header")
	}
	if l.FixedLen == 0 && l.LenWidth == 0 {
		panic("frame: layout without a length rule")
	}
	if l.MaxLen <= 0 {
		l.MaxLen = 512
	}
	return &Sync{l: l}
}

// Reset discards any partially accumulated frame. Call after a transport
// timeout so stale bytes cannot corrupt synchronization on the next cycle.
func (s *Sync) Reset() {
	s.buf = s.buf[:0]
	s.out = s.out[:0]
}

// Next pops the oldest complete frame, if any.
func (s *Sync) Next() (Frame, bool) {
	if len(s.out) == 0 {
		return Frame{}, false
	}
	f := s.out[0]
	s.out = s.out[1:]
	return f, true
}

// Feed consumes one stream chunk and returns how many complete frames became
// available. Partial frames stay buffered for the next chunk.
func (s *Sync) Feed(chunk []byte) int {
	s.buf = append(s.buf, chunk...)
	n := 0
	for s.step() {
		n++
	}
	return n
}

// step tries to extract one frame from the front of the buffer.
// Returns true when a frame was emitted; false when the stream starved.
func (s *Sync) step() bool {
	l := &s.l
	for {
		// SeekingHeader: drop noise until the magic is at offset 0.
		if !s.seek() {
			return false
		}

		// ReadingLength: establish the total frame length.
		total := l.FixedLen
		if total == 0 {
			if len(s.buf) < l.LenOff+l.LenWidth {
				return false
			}
			v := int(s.buf[l.LenOff])
			if l.LenWidth == 2 {
				if l.LenLE {
					v |= int(s.buf[l.LenOff+1]) << 8
				} else {
					v = v<<8 | int(s.buf[l.LenOff+1])
				}
			}
			total = v + l.LenBias
		}
		if total < l.minLen() || total > l.MaxLen {
			// Nonsense length: treat the header match as a false positive.
			s.slip()
			continue
		}

		// ReadingPayload: wait for the whole frame.
		if len(s.buf) < total {
			return false
		}

		// Verifying.
		if !s.verify(s.buf[:total]) {
			s.Stats.BadFrames++
			s.slip()
			continue
		}

		raw := make([]byte, total)
		copy(raw, s.buf[:total])
		s.buf = s.buf[total:]
		s.out = append(s.out, Frame{Raw: raw})
		s.Stats.Frames++
		return true
	}
}

// seek aligns the buffer on the header magic, discarding leading noise.
func (s *Sync) seek() bool {
	h := s.l.Header
	if i := bytes.Index(s.buf, h); i >= 0 {
		if i > 0 {
			s.Stats.Noise += uint64(i)
			s.buf = s.buf[i:]
		}
		return true
	}
	// Keep the longest buffer tail that is still a proper header prefix; the
	// rest is noise.
	keep := len(h) - 1
	if keep > len(s.buf) {
		keep = len(s.buf)
	}
	for ; keep > 0; keep-- {
		if bytes.Equal(s.buf[len(s.buf)-keep:], h[:keep]) {
			break
		}
	}
	s.Stats.Noise += uint64(len(s.buf) - keep)
	s.buf = s.buf[len(s.buf)-keep:]
	return false
}

// slip drops the first byte so seeking resumes just past a bad header match.
func (s *Sync) slip() {
	if len(s.buf) > 0 {
		s.Stats.Noise++
		s.buf = s.buf[1:]
	}
}

// verify runs the tail and checksum checks over a complete candidate.
func (s *Sync) verify(cand []byte) bool {
	l := &s.l
	if len(l.Tail) > 0 {
		if !bytes.Equal(cand[len(cand)-len(l.Tail):], l.Tail) {
			return false
		}
	}
	if l.Checksum != nil {
		ck := len(cand) - len(l.Tail) - 1
		if ck < l.CkStart {
			return false
		}
		if !Verify(l.Checksum, cand[l.CkStart:ck], cand[ck]) {
			return false
		}
	}
	return true
}

// Collect pulls bytes from a port until one complete frame is available or
// the timeout elapses. On timeout the partial state is discarded, so a later
// call starts clean (transport timeout == stream starvation). scratch is the
// caller's read buffer and bounds each port read.
func Collect(p Port, s *Sync, scratch []byte, timeout time.Duration) (Frame, error) {
	deadline := time.Now().Add(timeout)
	for {
		if f, ok := s.Next(); ok {
			return f, nil
		}
		left := time.Until(deadline)
		if left <= 0 {
			s.Reset()
			return Frame{}, ErrTimeout
		}
		n, err := p.ReadAvailable(scratch, left)
		if err != nil {
			s.Reset()
			return Frame{}, err
		}
		if n > 0 {
			s.Feed(scratch[:n])
		}
	}
}
