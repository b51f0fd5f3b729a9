package ld2410

import (
	"time"

	"sensorcode-go/drivers/frame"
	"sensorcode-go/x/conv"
	"sensorcode-go/x/cursor"
)

// Command words. The ack echoes the word with bit 8 set.
const (
	cmdEnableConfig  = 0x00FF
	cmdEndConfig     = 0x00FE
	cmdMaxGates      = 0x0060
	cmdReadParams    = 0x0061
	cmdEngineerOn    = 0x0062
	cmdEngineerOff   = 0x0063
	cmdGateSens      = 0x0064
	cmdReadVersion   = 0x00A0
	cmdFactoryReset  = 0x00A2
	cmdRestart       = 0x00A3
	cmdBluetooth     = 0x00A4
	cmdSetResolution = 0x00AA
	cmdGetResolution = 0x00AB

	ackFlag = 0x0100
)

// AckLayout describes command-reply framing for the synchronizer.
func AckLayout() frame.Layout {
	return frame.Layout{
		Header:   []byte{0xFD, 0xFC, 0xFB, 0xFA},
		LenOff:   4,
		LenWidth: 2,
		LenLE:    true,
		LenBias:  10,
		Tail:     []byte{0x04, 0x03, 0x02, 0x01},
		MaxLen:   64,
	}
}

// Command builds a complete command frame: magic, little-endian length of
// command word plus value, command word, value, tail magic.
func Command(cmd uint16, value ...byte) []byte {
	n := 2 + len(value)
	f := make([]byte, 0, 10+n)
	f = append(f, 0xFD, 0xFC, 0xFB, 0xFA)
	f = append(f, byte(n), byte(n>>8))
	f = append(f, byte(cmd), byte(cmd>>8))
	f = append(f, value...)
	return append(f, 0x04, 0x03, 0x02, 0x01)
}

// u16le / u32le append little-endian words to a command value.
func u16le(b []byte, v uint16) []byte { return append(b, byte(v), byte(v>>8)) }
func u32le(b []byte, v uint32) []byte {
	return append(b, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

// VerifyAck checks that f acknowledges cmd successfully and returns a cursor
// positioned at the ack's extra data.
func VerifyAck(f frame.Frame, cmd uint16) (*cursor.Cursor, error) {
	c := cursor.New(f.Raw)
	if err := c.Skip(6); err != nil {
		return nil, ErrNoAck
	}
	word, err := c.U16(cursor.LittleEndian)
	if err != nil || word != cmd|ackFlag {
		return nil, ErrNoAck
	}
	status, err := c.U16(cursor.LittleEndian)
	if err != nil {
		return nil, ErrNoAck
	}
	if status != 0 {
		return nil, ErrAck
	}
	return c, nil
}

// Version is the firmware identity returned by ReadVersion.
type Version struct {
	Type  uint16
	Major uint16
	Minor uint32
}

// String renders the vendor's "Vx.yy.zzzzzzzz" form without allocating more
// than the result.
func (v Version) String() string {
	var num [20]byte
	out := make([]byte, 0, 16)
	out = append(out, 'V')
	out = append(out, conv.Utoa(num[:], uint64(v.Major>>8))...)
	out = append(out, '.')
	min := conv.Utoa(num[:], uint64(v.Major&0xFF))
	if len(min) < 2 {
		out = append(out, '0')
	}
	out = append(out, min...)
	out = append(out, '.')
	out = append(out, conv.U32Hex(num[:8], v.Minor)...)
	return string(out)
}

// Params is the sensor configuration returned by ReadParams.
type Params struct {
	MaxGate       uint8
	MaxMovingGate uint8
	MaxStaticGate uint8
	MovingSens    [Gates]uint8
	StaticSens    [Gates]uint8
	IdleSeconds   uint16
}

// Resolution of one distance gate.
type Resolution uint16

const (
	Gate75cm Resolution = 0x0000
	Gate20cm Resolution = 0x0001
)

// Config controls non-hardware behaviour.
type Config struct {
	// ReadTimeout bounds one frame collection. Default 1 s.
	ReadTimeout time.Duration
	// Retries is how many times a command is reissued when its ack does
	// not arrive. Default 3.
	Retries int
}

// Device wraps a serial connection to the radar. Data frames and command
// acks share the line, so the two synchronizers run over the same reads.
type Device struct {
	port     frame.Port
	dataSync *frame.Sync
	ackSync  *frame.Sync
	cfg      Config
	inConfig bool

	scratch [64]byte
}

// New creates the Device object; the port must already be configured for
// 256000 8N1.
func New(port frame.Port) *Device {
	return &Device{
		port:     port,
		dataSync: frame.NewSync(ReportLayout()),
		ackSync:  frame.NewSync(AckLayout()),
		cfg:      Config{ReadTimeout: time.Second, Retries: 3},
	}
}

func (d *Device) Configure(cfgs ...Config) {
	if len(cfgs) > 0 {
		c := cfgs[0]
		if c.ReadTimeout <= 0 {
			c.ReadTimeout = time.Second
		}
		if c.Retries <= 0 {
			c.Retries = 3
		}
		d.cfg = c
	}
}

// Stats exposes the report synchronizer's counters.
func (d *Device) Stats() frame.Stats { return d.dataSync.Stats }

// Read collects the next report frame from the data stream.
func (d *Device) Read() (Report, error) {
	f, err := frame.Collect(d.port, d.dataSync, d.scratch[:], d.cfg.ReadTimeout)
	if err != nil {
		return Report{}, err
	}
	return DecodeReport(f)
}

// command sends cmd and waits for its ack, retrying on timeout. The data
// stream keeps running between commands, so non-ack bytes are discarded by
// the ack synchronizer as noise.
func (d *Device) command(cmd uint16, value ...byte) (*cursor.Cursor, error) {
	raw := Command(cmd, value...)
	var last error = ErrNoAck
	for i := 0; i < d.cfg.Retries; i++ {
		d.ackSync.Reset()
		if _, err := d.port.Write(raw); err != nil {
			return nil, err
		}
		f, err := frame.Collect(d.port, d.ackSync, d.scratch[:], d.cfg.ReadTimeout)
		if err != nil {
			last = err
			continue
		}
		c, err := VerifyAck(f, cmd)
		if err == ErrAck {
			return nil, err
		}
		if err == nil {
			return c, nil
		}
		last = err
	}
	return nil, last
}

// EnterConfigMode opens the command session. All configuration commands
// other than EnterConfigMode itself require it.
func (d *Device) EnterConfigMode() error {
	_, err := d.command(cmdEnableConfig, 0x01, 0x00)
	if err == nil {
		d.inConfig = true
	}
	return err
}

// ExitConfigMode closes the command session; reporting resumes.
func (d *Device) ExitConfigMode() error {
	if !d.inConfig {
		return ErrNotConfig
	}
	_, err := d.command(cmdEndConfig)
	if err == nil {
		d.inConfig = false
	}
	return err
}

func (d *Device) configCommand(cmd uint16, value ...byte) (*cursor.Cursor, error) {
	if !d.inConfig {
		return nil, ErrNotConfig
	}
	return d.command(cmd, value...)
}

// SetEngineeringMode switches per-gate energy reporting on or off.
func (d *Device) SetEngineeringMode(on bool) error {
	cmd := uint16(cmdEngineerOff)
	if on {
		cmd = cmdEngineerOn
	}
	_, err := d.configCommand(cmd)
	return err
}

// ReadVersion queries the firmware identity.
func (d *Device) ReadVersion() (Version, error) {
	c, err := d.configCommand(cmdReadVersion)
	if err != nil {
		return Version{}, err
	}
	var v Version
	if v.Type, err = c.U16(cursor.LittleEndian); err != nil {
		return Version{}, ErrNoAck
	}
	if v.Major, err = c.U16(cursor.LittleEndian); err != nil {
		return Version{}, ErrNoAck
	}
	b, err := c.Bytes(4)
	if err != nil {
		return Version{}, ErrNoAck
	}
	v.Minor = uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return v, nil
}

// SetBluetooth turns the radio on or off. Takes effect after Restart.
func (d *Device) SetBluetooth(on bool) error {
	v := uint16(0x0000)
	if on {
		v = 0x0100
	}
	_, err := d.configCommand(cmdBluetooth, byte(v), byte(v>>8))
	return err
}

// SetMaxGates bounds the moving and static detection distance in gates and
// sets the no-target idle time in seconds.
func (d *Device) SetMaxGates(moving, static uint8, idle uint16) error {
	v := make([]byte, 0, 18)
	v = u16le(v, 0x0000)
	v = u32le(v, uint32(moving))
	v = u16le(v, 0x0001)
	v = u32le(v, uint32(static))
	v = u16le(v, 0x0002)
	v = u32le(v, uint32(idle))
	_, err := d.configCommand(cmdMaxGates, v...)
	return err
}

// SetGateSensitivity sets moving and static thresholds (0..100) for one
// gate, or for all gates when gate is 0xFFFF.
func (d *Device) SetGateSensitivity(gate uint16, moving, static uint8) error {
	v := make([]byte, 0, 18)
	v = u16le(v, 0x0000)
	v = u32le(v, uint32(gate))
	v = u16le(v, 0x0001)
	v = u32le(v, uint32(moving))
	v = u16le(v, 0x0002)
	v = u32le(v, uint32(static))
	_, err := d.configCommand(cmdGateSens, v...)
	return err
}

// SetResolution selects the per-gate distance step. Takes effect after
// Restart.
func (d *Device) SetResolution(r Resolution) error {
	_, err := d.configCommand(cmdSetResolution, byte(r), byte(r>>8))
	return err
}

// ReadResolution queries the configured distance step.
func (d *Device) ReadResolution() (Resolution, error) {
	c, err := d.configCommand(cmdGetResolution)
	if err != nil {
		return 0, err
	}
	v, err := c.U16(cursor.LittleEndian)
	if err != nil {
		return 0, ErrNoAck
	}
	return Resolution(v), nil
}

// ReadParams queries detection gates, per-gate sensitivities and the idle
// time.
func (d *Device) ReadParams() (Params, error) {
	c, err := d.configCommand(cmdReadParams)
	if err != nil {
		return Params{}, err
	}
	var p Params
	head, err := c.U8()
	if err != nil || head != 0xAA {
		return Params{}, ErrNoAck
	}
	if p.MaxGate, err = c.U8(); err != nil {
		return Params{}, ErrNoAck
	}
	if p.MaxMovingGate, err = c.U8(); err != nil {
		return Params{}, ErrNoAck
	}
	if p.MaxStaticGate, err = c.U8(); err != nil {
		return Params{}, ErrNoAck
	}
	for i := range p.MovingSens {
		if p.MovingSens[i], err = c.U8(); err != nil {
			return Params{}, ErrNoAck
		}
	}
	for i := range p.StaticSens {
		if p.StaticSens[i], err = c.U8(); err != nil {
			return Params{}, ErrNoAck
		}
	}
	if p.IdleSeconds, err = c.U16(cursor.LittleEndian); err != nil {
		return Params{}, ErrNoAck
	}
	return p, nil
}

// FactoryReset restores vendor defaults. Takes effect after Restart.
func (d *Device) FactoryReset() error {
	_, err := d.configCommand(cmdFactoryReset)
	return err
}

// Restart reboots the module; the config session ends with it.
func (d *Device) Restart() error {
	_, err := d.configCommand(cmdRestart)
	if err == nil {
		d.inConfig = false
	}
	return err
}
