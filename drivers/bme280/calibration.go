package bme280

import (
	"errors"

	"sensorcode-go/drivers/regmap"
	"sensorcode-go/x/cursor"
)

// ErrCalibration means the factory blocks could not be parsed.
var ErrCalibration = errors.New("bme280: bad calibration block")

// Calibration holds the factory-programmed compensation coefficients, read
// once at Configure and immutable afterwards. The compensation methods are
// the vendor fixed-point formulas: int32 arithmetic for temperature and
// humidity, int64 for pressure (the pressure polynomial overflows 32 bits).
//
// None of the methods clamp. Boundary-adjacent noise is returned as-is and
// flagged by the driver layer, never silently truncated.
type Calibration struct {
	T1         uint16
	T2, T3     int16
	P1         uint16
	P2, P3, P4 int16
	P5, P6, P7 int16
	P8, P9     int16
	H1         uint8
	H2         int16
	H3         uint8
	H4, H5     int16
	H6         int8
}

// tpLayout is the 24-byte factory block at 0x88: T1..T3 then P1..P9, all
// 16-bit little-endian, T1/P1 unsigned and the rest signed.
var tpLayout = regmap.Layout{
	{Name: "t1", Offset: 0, Width: 2, Order: cursor.LittleEndian},
	{Name: "t2", Offset: 2, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "t3", Offset: 4, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p1", Offset: 6, Width: 2, Order: cursor.LittleEndian},
	{Name: "p2", Offset: 8, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p3", Offset: 10, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p4", Offset: 12, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p5", Offset: 14, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p6", Offset: 16, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p7", Offset: 18, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p8", Offset: 20, Width: 2, Order: cursor.LittleEndian, Signed: true},
	{Name: "p9", Offset: 22, Width: 2, Order: cursor.LittleEndian, Signed: true},
}

// CalibrationFromBlocks parses the three factory regions: the 24-byte
// temperature/pressure block (0x88), the single H1 byte (0xA1) and the
// 7-byte humidity block (0xE1). H4/H5 share a nibble-packed middle byte.
func CalibrationFromBlocks(tp []byte, h1 byte, h []byte) (Calibration, error) {
	var cal Calibration

	s, err := tpLayout.Decode(tp)
	if err != nil {
		return cal, ErrCalibration
	}
	cal.T1 = uint16(s["t1"])
	cal.T2 = int16(s["t2"])
	cal.T3 = int16(s["t3"])
	cal.P1 = uint16(s["p1"])
	cal.P2 = int16(s["p2"])
	cal.P3 = int16(s["p3"])
	cal.P4 = int16(s["p4"])
	cal.P5 = int16(s["p5"])
	cal.P6 = int16(s["p6"])
	cal.P7 = int16(s["p7"])
	cal.P8 = int16(s["p8"])
	cal.P9 = int16(s["p9"])

	cal.H1 = h1
	c := cursor.New(h)
	h2, err := c.I16(cursor.LittleEndian)
	if err != nil {
		return cal, ErrCalibration
	}
	h3, _ := c.U8()
	b3, _ := c.U8()
	b4, _ := c.U8()
	b5, _ := c.U8()
	h6, err := c.U8()
	if err != nil {
		return cal, ErrCalibration
	}
	cal.H2 = h2
	cal.H3 = h3
	// 12-bit signed values split around b4: H4 = b3[7:0]<<4 | b4[3:0],
	// H5 = b5<<4 | b4[7:4].
	cal.H4 = int16(int32(b3)<<4|int32(b4&0x0F)) << 4 >> 4
	cal.H5 = int16(int32(b5)<<4|int32(b4>>4)) << 4 >> 4
	cal.H6 = int8(h6)
	return cal, nil
}

// CentiCelsius compensates a raw 20-bit temperature code into hundredths of
// a degree Celsius, plus the t_fine term the other channels depend on.
// Documented range -40.00..85.00 C.
func (c *Calibration) CentiCelsius(raw int64) (centi int32, tFine int32) {
	adc := int32(raw)
	var1 := (((adc >> 3) - (int32(c.T1) << 1)) * int32(c.T2)) >> 11
	d := (adc >> 4) - int32(c.T1)
	var2 := (((d * d) >> 12) * int32(c.T3)) >> 14
	tFine = var1 + var2
	centi = (tFine*5 + 128) >> 8
	return centi, tFine
}

// PascalsQ24_8 compensates a raw 20-bit pressure code into Pascals in Q24.8
// fixed point. 64-bit intermediates throughout; the vendor formula overflows
// anything narrower. Returns 0 if the calibration degenerates (P1 == 0).
// Documented range 300..1100 hPa.
func (c *Calibration) PascalsQ24_8(raw int64, tFine int32) int64 {
	var1 := int64(tFine) - 128000
	var2 := var1 * var1 * int64(c.P6)
	var2 += (var1 * int64(c.P5)) << 17
	var2 += int64(c.P4) << 35
	var1 = ((var1 * var1 * int64(c.P3)) >> 8) + ((var1 * int64(c.P2)) << 12)
	var1 = ((int64(1) << 47) + var1) * int64(c.P1) >> 33
	if var1 == 0 {
		return 0
	}
	p := int64(1048576) - raw
	p = (((p << 31) - var2) * 3125) / var1
	var1 = (int64(c.P9) * (p >> 13) * (p >> 13)) >> 25
	var2 = (int64(c.P8) * p) >> 19
	return ((p + var1 + var2) >> 8) + (int64(c.P7) << 4)
}

// RHQ22_10 compensates a raw 16-bit humidity code into %RH in Q22.10 fixed
// point. Documented range 0..100 %.
func (c *Calibration) RHQ22_10(raw int64, tFine int32) int32 {
	v := tFine - 76800
	v = ((((int32(raw) << 14) - (int32(c.H4) << 20) - (int32(c.H5) * v)) + 16384) >> 15) *
		(((((((v*int32(c.H6))>>10)*(((v*int32(c.H3))>>11)+32768))>>10)+2097152)*int32(c.H2) + 8192) >> 14)
	v -= ((((v >> 15) * (v >> 15)) >> 7) * int32(c.H1)) >> 4
	return v >> 12
}
