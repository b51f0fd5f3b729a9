// Package bme280 provides a driver for the BME280 combined
// temperature/humidity/pressure sensor. Configure probes the chip, reads the
// factory calibration blocks once, and places the part in normal mode;
// ReadSample then burst-reads the three raw codes in a single transaction.
//
// Raw codes are decoded through a regmap layout and compensated with the
// vendor fixed-point formulas on Calibration. The fixed-point accessors are
// the primary API; float helpers exist for convenience off the hot path.
package bme280

import (
	"errors"
	"time"

	"tinygo.org/x/drivers"

	"sensorcode-go/drivers/regmap"
	"sensorcode-go/x/cursor"
)

// I2C address (SDO low; 0x77 with SDO high).
const Address = 0x76

// Registers.
const (
	regID      = 0xD0
	regCtrlHum = 0xF2
	regCtrlMea = 0xF4
	regData    = 0xF7 // press msb..hum lsb, 8 bytes
	regCalTP   = 0x88 // 24 bytes
	regCalH1   = 0xA1
	regCalH2   = 0xE1 // 7 bytes

	chipID = 0x60

	// osrs_h x16; osrs_t x16, osrs_p x16, normal mode (matches the vendor
	// reference setup: 0x05 / 0xB7).
	ctrlHumVal = 0x05
	ctrlMeaVal = 0xB7
)

// Documented physical ranges. Compensation does not clamp to these; the
// driver layer flags readings outside them.
const (
	TempMinCenti = -4000
	TempMaxCenti = 8500
	PressMinPa   = 30000
	PressMaxPa   = 110000
	HumMinQ2210  = 0
	HumMaxQ2210  = 100 << 10
)

var (
	ErrNotFound      = errors.New("bme280: wrong chip id")
	ErrNotConfigured = errors.New("bme280: not configured")
)

// dataLayout decodes the 8-byte burst read at 0xF7.
var dataLayout = regmap.Layout{
	{Name: "pressure", Offset: 0, Width: 3, Order: cursor.BigEndian, Rsh: 4},
	{Name: "temperature", Offset: 3, Width: 3, Order: cursor.BigEndian, Rsh: 4},
	{Name: "humidity", Offset: 6, Width: 2, Order: cursor.BigEndian},
}

// Config controls optional behaviour.
type Config struct {
	// Address defaults to 0x76 if zero.
	Address uint16
}

// Device wraps an I2C connection to a BME280.
type Device struct {
	bus     drivers.I2C
	Address uint16

	cal   Calibration
	calOK bool
	buf   [24]byte // reused for register reads
}

// New creates the Device object only; it does not touch the hardware.
func New(bus drivers.I2C) Device {
	return Device{bus: bus, Address: Address}
}

// Configure probes the chip ID, reads the calibration blocks and starts
// normal-mode sampling. Must succeed before ReadSample.
func (d *Device) Configure(cfgs ...Config) error {
	if len(cfgs) > 0 && cfgs[0].Address != 0 {
		d.Address = cfgs[0].Address
	}

	id := d.buf[:1]
	if err := d.bus.Tx(d.Address, []byte{regID}, id); err != nil {
		return err
	}
	if id[0] != chipID {
		return ErrNotFound
	}

	tp := d.buf[:24]
	if err := d.bus.Tx(d.Address, []byte{regCalTP}, tp); err != nil {
		return err
	}
	var h1 [1]byte
	if err := d.bus.Tx(d.Address, []byte{regCalH1}, h1[:]); err != nil {
		return err
	}
	var h [7]byte
	if err := d.bus.Tx(d.Address, []byte{regCalH2}, h[:]); err != nil {
		return err
	}
	cal, err := CalibrationFromBlocks(tp, h1[0], h[:])
	if err != nil {
		return err
	}
	d.cal = cal
	d.calOK = true

	if err := d.bus.Tx(d.Address, []byte{regCtrlHum, ctrlHumVal}, nil); err != nil {
		return err
	}
	if err := d.bus.Tx(d.Address, []byte{regCtrlMea, ctrlMeaVal}, nil); err != nil {
		return err
	}
	// First conversion in normal mode needs a moment.
	time.Sleep(10 * time.Millisecond)
	return nil
}

// Calibration returns the parsed coefficient block (zero until Configure).
func (d *Device) Calibration() Calibration { return d.cal }

// Sample holds one burst of raw codes: 20-bit pressure and temperature,
// 16-bit humidity.
type Sample struct {
	RawPressure    uint32
	RawTemperature uint32
	RawHumidity    uint16
}

// ReadSample burst-reads the measurement registers into out.
func (d *Device) ReadSample(out *Sample) error {
	if !d.calOK {
		return ErrNotConfigured
	}
	data := d.buf[:8]
	if err := d.bus.Tx(d.Address, []byte{regData}, data); err != nil {
		return err
	}
	s, err := dataLayout.Decode(data)
	if err != nil {
		return err
	}
	out.RawPressure = uint32(s["pressure"])
	out.RawTemperature = uint32(s["temperature"])
	out.RawHumidity = uint16(s["humidity"])
	return nil
}

// Fixed-point compensation bound to the device calibration.

// CentiCelsius returns hundredths of a degree C plus t_fine.
func (d *Device) CentiCelsius(s Sample) (int32, int32) {
	return d.cal.CentiCelsius(int64(s.RawTemperature))
}

// PascalsQ24_8 returns pressure in Pa as Q24.8.
func (d *Device) PascalsQ24_8(s Sample, tFine int32) int64 {
	return d.cal.PascalsQ24_8(int64(s.RawPressure), tFine)
}

// RHQ22_10 returns relative humidity in % as Q22.10.
func (d *Device) RHQ22_10(s Sample, tFine int32) int32 {
	return d.cal.RHQ22_10(int64(s.RawHumidity), tFine)
}

// Float conveniences.

func (d *Device) Celsius(s Sample) float32 {
	c, _ := d.CentiCelsius(s)
	return float32(c) / 100
}

func (d *Device) HectoPascals(s Sample) float32 {
	_, tf := d.CentiCelsius(s)
	return float32(d.PascalsQ24_8(s, tf)) / 256 / 100
}

func (d *Device) RelHumidity(s Sample) float32 {
	_, tf := d.CentiCelsius(s)
	return float32(d.RHQ22_10(s, tf)) / 1024
}
