// Package zphs01c provides a driver for the Winsen ZPHS01C multi-in-one air
// quality module. The device speaks a framed serial protocol at 9600 8N1:
// commands go out under header 0x11, replies come back under header 0x16
// with a one-byte length and a two's-complement checksum over the whole
// frame. One query reply carries all seven channels at once.
//
// NOTE: the checksum rule and field offsets follow the module firmware this
// driver was written against; other revisions of the family may reframe.
// Verify against the datasheet for the fitted firmware.
package zphs01c

import (
	"errors"
	"time"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/x/cursor"
)

// Serial settings.
const Baud = 9600

// Protocol constants.
const (
	headerSend = 0x11
	headerResp = 0x16

	cmdActiveUpload = 0x01
	cmdQuery        = 0x02
	cmdDustControl  = 0x0C
)

// Documented channel ranges. Decoding does not clamp to these; the driver
// layer flags readings outside them.
const (
	CO2MinPPM = 400
	CO2MaxPPM = 5000
	VOCMax    = 3
	PMMaxUgM3 = 1000
	TempMinDC = 0   // deci-C
	TempMaxDC = 650 // deci-C
)

var (
	ErrBadReply   = errors.New("zphs01c: malformed reply")
	ErrWrongReply = errors.New("zphs01c: reply for a different command")
)

// ReplyLayout describes the reply framing for the synchronizer.
func ReplyLayout() frame.Layout {
	return frame.Layout{
		Header:   []byte{headerResp},
		LenOff:   1,
		LenWidth: 1,
		LenBias:  2, // length counts everything after the length byte
		Checksum: frame.SumComplement,
		MaxLen:   64,
	}
}

// Command builds a complete outgoing frame for cmd with optional data.
func Command(cmd byte, data ...byte) []byte {
	f := make([]byte, 0, 4+len(data))
	f = append(f, headerSend, byte(1+len(data)), cmd)
	f = append(f, data...)
	return append(f, frame.SumComplement(f))
}

// Reading is one decoded query reply: every channel the module reports,
// fixed point where the wire format is.
type Reading struct {
	CO2PPM  uint16 // 400..5000 ppm
	VOC     uint16 // grade 0..3, unitless
	RHx10   uint16 // tenths of %RH
	DeciC   int16  // tenths of a degree C (wire code minus 500)
	PM25    uint16 // ug/m3
	PM10    uint16 // ug/m3
	PM1     uint16 // ug/m3
}

// DecodeReading parses a verified query reply frame. Field offsets are from
// frame start: co2 at 3, then voc, humidity, temperature, pm2.5, pm10, pm1,
// all 16-bit big-endian.
func DecodeReading(f frame.Frame) (Reading, error) {
	var r Reading
	c := cursor.New(f.Raw)
	if err := c.Skip(2); err != nil {
		return r, ErrBadReply
	}
	cmd, err := c.U8()
	if err != nil {
		return r, ErrBadReply
	}
	if cmd != cmdQuery {
		return r, ErrWrongReply
	}
	fields := []*uint16{&r.CO2PPM, &r.VOC, &r.RHx10}
	for _, p := range fields {
		v, err := c.U16(cursor.BigEndian)
		if err != nil {
			return r, ErrBadReply
		}
		*p = v
	}
	traw, err := c.U16(cursor.BigEndian)
	if err != nil {
		return r, ErrBadReply
	}
	r.DeciC = int16(traw) - 500
	for _, p := range []*uint16{&r.PM25, &r.PM10, &r.PM1} {
		v, err := c.U16(cursor.BigEndian)
		if err != nil {
			return r, ErrBadReply
		}
		*p = v
	}
	return r, nil
}

// Config controls non-hardware behaviour.
type Config struct {
	// ReadTimeout bounds one reply collection. Default 1 s.
	ReadTimeout time.Duration
}

// Device wraps a serial connection to a ZPHS01C.
type Device struct {
	port frame.Port
	sync *frame.Sync
	cfg  Config

	scratch [64]byte
}

// New creates the Device object; the port must already be configured for
// 9600 8N1.
func New(port frame.Port) *Device {
	return &Device{
		port: port,
		sync: frame.NewSync(ReplyLayout()),
		cfg:  Config{ReadTimeout: time.Second},
	}
}

func (d *Device) Configure(cfgs ...Config) {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.ReadTimeout <= 0 {
			c.ReadTimeout = time.Second
		}
		d.cfg = c
	}
}

// Stats exposes synchronizer counters; a climbing BadFrames count means
// link noise or a wiring fault.
func (d *Device) Stats() frame.Stats { return d.sync.Stats }

// request sends one command frame and collects the next valid reply.
func (d *Device) request(cmd byte, data ...byte) (frame.Frame, error) {
	// Drop any stale partial state so the reply is framed cleanly.
	d.sync.Reset()
	if _, err := d.port.Write(Command(cmd, data...)); err != nil {
		return frame.Frame{}, err
	}
	return frame.Collect(d.port, d.sync, d.scratch[:], d.cfg.ReadTimeout)
}

// Query polls all channels at once (command 0x02).
func (d *Device) Query() (Reading, error) {
	f, err := d.request(cmdQuery, 0x00)
	if err != nil {
		return Reading{}, err
	}
	return DecodeReading(f)
}

// StartActiveUpload switches the module to unsolicited periodic reporting
// (command 0x01).
func (d *Device) StartActiveUpload() error {
	_, err := d.request(cmdActiveUpload, 0x00)
	return err
}

// SetDustMeasurement starts or stops the particulate fan/laser (command
// 0x0C). The trailing byte is the vendor-fixed interval parameter.
func (d *Device) SetDustMeasurement(on bool) error {
	b := byte(0x01)
	if on {
		b = 0x02
	}
	_, err := d.request(cmdDustControl, b, 0x1E)
	return err
}
