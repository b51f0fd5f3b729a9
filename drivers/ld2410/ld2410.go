// Package ld2410 provides a driver for LD2410-family 24 GHz mmWave presence
// radars. The sensor streams periodic report frames (header F4 F3 F2 F1,
// little-endian length, tail F8 F7 F6 F5) and accepts command frames under a
// separate magic (FD FC FB FA ... 04 03 02 01) answered by ACK frames.
//
// Unlike the I2C environmental sensors there is no polynomial calibration
// here: "compensation" is unit scaling and presence-flag decoding. Frame
// integrity rests on the header/tail magics; the protocol carries no
// checksum byte.
package ld2410

import (
	"errors"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/x/cursor"
)

// Serial settings.
const Baud = 256000

// TargetState is the radar's presence classification.
type TargetState uint8

const (
	NoTarget TargetState = iota
	MovingTarget
	StaticTarget
	BothTargets
	stateError // firmware error marker, never exposed in a Report
)

// Mode distinguishes normal from engineering report frames.
type Mode uint8

const (
	Normal      Mode = 0x02
	Engineering Mode = 0x01
)

// Gates is the number of distance gates the sensor resolves.
const Gates = 9

// Report is one decoded data frame.
type Report struct {
	Mode             Mode
	State            TargetState
	MovingDistanceCM uint16
	MovingEnergy     uint8 // 0..100
	StaticDistanceCM uint16
	StaticEnergy     uint8 // 0..100

	// Engineering-mode extras; nil for normal frames.
	Eng *EngineeringData
}

// EngineeringData carries per-gate energies and the light sensor value.
type EngineeringData struct {
	MovingGate     [Gates]uint8
	StaticGate     [Gates]uint8
	Photosensitive uint8
}

// Present reports whether any target is detected.
func (r Report) Present() bool {
	return r.State == MovingTarget || r.State == StaticTarget || r.State == BothTargets
}

// DistanceCM picks the distance of the active target: the moving target
// when one exists, otherwise the static one. 0 with no target.
func (r Report) DistanceCM() uint16 {
	switch r.State {
	case MovingTarget, BothTargets:
		return r.MovingDistanceCM
	case StaticTarget:
		return r.StaticDistanceCM
	}
	return 0
}

var (
	ErrBadReport = errors.New("ld2410: malformed report frame")
	ErrAck       = errors.New("ld2410: command rejected")
	ErrNoAck     = errors.New("ld2410: no matching ack")
	ErrNotConfig = errors.New("ld2410: not in config mode")
)

// ReportLayout describes data-frame framing for the synchronizer.
func ReportLayout() frame.Layout {
	return frame.Layout{
		Header:   []byte{0xF4, 0xF3, 0xF2, 0xF1},
		LenOff:   4,
		LenWidth: 2,
		LenLE:    true,
		LenBias:  10, // header(4) + length(2) + tail(4)
		Tail:     []byte{0xF8, 0xF7, 0xF6, 0xF5},
		MaxLen:   64,
	}
}

// DecodeReport parses a verified data frame. Offsets from frame start:
// mode at 6, 0xAA marker at 7, state at 8, then moving distance/energy and
// static distance/energy; engineering frames append per-gate energies from
// offset 19 and the photosensitive value at 37.
func DecodeReport(f frame.Frame) (Report, error) {
	var r Report
	c := cursor.New(f.Raw)
	if err := c.Skip(6); err != nil {
		return r, ErrBadReport
	}
	mode, err := c.U8()
	if err != nil {
		return r, ErrBadReport
	}
	marker, err := c.U8()
	if err != nil || marker != 0xAA {
		return r, ErrBadReport
	}
	state, err := c.U8()
	if err != nil || TargetState(state) >= stateError {
		return r, ErrBadReport
	}
	r.Mode = Mode(mode)
	r.State = TargetState(state)
	if r.MovingDistanceCM, err = c.U16(cursor.LittleEndian); err != nil {
		return r, ErrBadReport
	}
	if r.MovingEnergy, err = c.U8(); err != nil {
		return r, ErrBadReport
	}
	if r.StaticDistanceCM, err = c.U16(cursor.LittleEndian); err != nil {
		return r, ErrBadReport
	}
	if r.StaticEnergy, err = c.U8(); err != nil {
		return r, ErrBadReport
	}

	if r.Mode != Engineering {
		return r, nil
	}
	// Gate energies sit at fixed offsets 19 / 28; skip the intervening
	// detection-distance bytes.
	eng := &EngineeringData{}
	if err := c.Skip(19 - c.Pos()); err != nil {
		return r, ErrBadReport
	}
	for i := range eng.MovingGate {
		if eng.MovingGate[i], err = c.U8(); err != nil {
			return r, ErrBadReport
		}
	}
	for i := range eng.StaticGate {
		if eng.StaticGate[i], err = c.U8(); err != nil {
			return r, ErrBadReport
		}
	}
	if eng.Photosensitive, err = c.U8(); err != nil {
		return r, ErrBadReport
	}
	r.Eng = eng
	return r, nil
}
