// Package bh1750 provides a driver for the BH1750 ambient light sensor.
// The part needs no per-unit calibration: raw codes scale by the fixed
// datasheet factor of 1.2 counts per lux. Fixed-point helpers return
// deci-lux; the hot path stays integer-only.
package bh1750

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"sensorcode-go/x/cursor"
)

// I2C address (ADDR low; 0x5C with ADDR high).
const Address = 0x23

// Opcodes.
const (
	cmdPowerOff = 0x00
	cmdPowerOn  = 0x01
	cmdReset    = 0x07

	// Measurement modes.
	ContinuousHighRes  = 0x10
	ContinuousHighRes2 = 0x11
	ContinuousLowRes   = 0x13
	OneTimeHighRes     = 0x20
	OneTimeHighRes2    = 0x21
	OneTimeLowRes      = 0x23
)

// Documented output range in lux at the default measurement mode.
const (
	LuxMin = 1
	LuxMax = 65535
)

var ErrShortRead = errors.New("bh1750: short read")

// Config controls optional behaviour. All fields optional.
type Config struct {
	Address uint16
	Mode    byte // defaults to ContinuousHighRes
}

// Device wraps an I2C connection to a BH1750.
type Device struct {
	bus     drivers.I2C
	Address uint16
	mode    byte
}

// New creates the Device object only; it does not touch the hardware.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address, mode: ContinuousHighRes}
}

// Configure powers the sensor on and selects the measurement mode.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.Address != 0 {
			d.Address = c.Address
		}
		if c.Mode != 0 {
			d.mode = c.Mode
		}
	}
	if err := d.bus.Tx(d.Address, []byte{cmdPowerOn}, nil); err != nil {
		return err
	}
	if err := d.bus.Tx(d.Address, []byte{d.mode}, nil); err != nil {
		return err
	}
	// First high-res conversion takes up to 180 ms.
	time.Sleep(10 * time.Millisecond)
	return nil
}

// PowerOff stops measurement.
func (d *Device) PowerOff() error {
	return d.bus.Tx(d.Address, []byte{cmdPowerOff}, nil)
}

// ReadRaw returns the 16-bit big-endian measurement code.
func (d *Device) ReadRaw() (uint16, error) {
	var buf [2]byte
	if err := d.bus.Tx(d.Address, nil, buf[:]); err != nil {
		return 0, err
	}
	c := cursor.New(buf[:])
	v, err := c.U16(cursor.BigEndian)
	if err != nil {
		return 0, ErrShortRead
	}
	return v, nil
}

// DeciLux converts a raw code to tenths of a lux: lux = raw / 1.2, so
// deci-lux = raw * 100 / 12 (truncating, matching the datasheet scale).
func DeciLux(raw uint16) uint32 {
	return uint32(raw) * 100 / 12
}

// Lux converts a raw code to whole lux, truncating.
func Lux(raw uint16) uint16 {
	return uint16(uint32(raw) * 10 / 12)
}
